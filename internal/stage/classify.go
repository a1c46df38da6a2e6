// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package stage

import (
	"context"
	"regexp"
	"strings"
)

// 文档类别
const (
	LabelInvoice  = "invoice"
	LabelContract = "contract"
	LabelReport   = "report"
	LabelUnknown  = "unknown"
)

// labelKeywords 关键词 -> 类别的计分表；中英混排文档两类关键词都收
var labelKeywords = map[string][]string{
	LabelInvoice:  {"invoice", "发票", "税号", "amount due", "金额"},
	LabelContract: {"contract", "合同", "甲方", "乙方", "agreement", "hereinafter"},
	LabelReport:   {"report", "报告", "summary", "结论", "findings"},
}

// entityIDPattern 正文中的主体登记编号（后续增强 Stage 据此查询登记库）
var entityIDPattern = regexp.MustCompile(`(?i)登记编号[:：]\s*([A-Z0-9-]{6,20})|registration\s+(?:no|id)\.?\s*[:：]?\s*([A-Z0-9-]{6,20})`)

// ClassifyHandler 分类 Stage：关键词计分确定文档类别，
// 并顺带抽出登记编号供增强 Stage 使用
type ClassifyHandler struct{}

// NewClassifyHandler 创建分类 Handler
func NewClassifyHandler() *ClassifyHandler { return &ClassifyHandler{} }

// Execute 实现 Handler
func (h *ClassifyHandler) Execute(ctx context.Context, payload map[string]any) (map[string]any, error) {
	text, _ := payload["text"].(string)
	lower := strings.ToLower(text)

	bestLabel := LabelUnknown
	bestScore := 0
	total := 0
	for label, keywords := range labelKeywords {
		score := 0
		for _, kw := range keywords {
			score += strings.Count(lower, kw)
		}
		total += score
		if score > bestScore {
			bestScore = score
			bestLabel = label
		}
	}

	confidence := 0.0
	if total > 0 {
		confidence = float64(bestScore) / float64(total)
	}

	result := map[string]any{
		"label":      bestLabel,
		"confidence": confidence,
	}
	if m := entityIDPattern.FindStringSubmatch(text); m != nil {
		id := m[1]
		if id == "" {
			id = m[2]
		}
		result["entity_id"] = id
	}
	return result, nil
}

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

var termPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

// IndexHandler 索引 Stage：正文分词去重后写入倒排条目。
// writer 为 nil 时只统计不落盘（最小装配）
type IndexHandler struct {
	writer IndexWriter
}

// IndexWriter 倒排条目的落盘方；实现可以是 Redis、Postgres 或内存
type IndexWriter interface {
	WriteEntry(ctx context.Context, docLabel string, terms []string) error
}

// NewIndexHandler 创建索引 Handler
func NewIndexHandler(writer IndexWriter) *IndexHandler {
	return &IndexHandler{writer: writer}
}

// Execute 实现 Handler
func (h *IndexHandler) Execute(ctx context.Context, payload map[string]any) (map[string]any, error) {
	text, _ := payload["text"].(string)
	label, _ := payload["label"].(string)

	seen := make(map[string]struct{})
	var terms []string
	for _, term := range termPattern.FindAllString(strings.ToLower(text), -1) {
		if len(term) < 2 {
			continue
		}
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		terms = append(terms, term)
	}

	if h.writer != nil {
		if err := h.writer.WriteEntry(ctx, label, terms); err != nil {
			return nil, err
		}
	}
	return map[string]any{
		"indexed": true,
		"terms":   len(terms),
	}, nil
}

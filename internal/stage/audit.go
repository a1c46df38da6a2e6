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
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// AuditHandler 稽核 Stage：为文档正文留痕。
// 摘要写入结果后，任何后续环节都能复核正文是否被篡改
type AuditHandler struct{}

// NewAuditHandler 创建稽核 Handler
func NewAuditHandler() *AuditHandler { return &AuditHandler{} }

// Execute 实现 Handler
func (h *AuditHandler) Execute(ctx context.Context, payload map[string]any) (map[string]any, error) {
	text, _ := payload["text"].(string)
	sum := sha256.Sum256([]byte(text))
	return map[string]any{
		"audit": map[string]any{
			"checksum":   hex.EncodeToString(sum[:]),
			"checked_at": time.Now().UTC().Format(time.RFC3339),
		},
	}, nil
}

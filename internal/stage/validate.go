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
	"errors"
	"fmt"
	"unicode/utf8"
)

// maxDocumentChars 单文档正文上限；超过视为异常输入而非合法大文档
const maxDocumentChars = 10 << 20

// ValidateHandler 校验 Stage：拦截空文档、非法编码与超长正文，
// 后续 Stage 可以假定 text 可用
type ValidateHandler struct{}

// NewValidateHandler 创建校验 Handler
func NewValidateHandler() *ValidateHandler { return &ValidateHandler{} }

// Execute 实现 Handler
func (h *ValidateHandler) Execute(ctx context.Context, payload map[string]any) (map[string]any, error) {
	text, _ := payload["text"].(string)
	if text == "" {
		return nil, errors.New("文档正文为空")
	}
	if !utf8.ValidString(text) {
		return nil, errors.New("文档正文不是合法 UTF-8")
	}
	if len(text) > maxDocumentChars {
		return nil, fmt.Errorf("文档正文超长: %d 字符", len(text))
	}
	return map[string]any{
		"valid":  true,
		"length": len(text),
	}, nil
}

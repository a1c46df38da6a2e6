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
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
)

// ExtractHandler 提取 Stage：从提交载荷中取出文档正文。
// 载荷支持三种来源，按序取第一个命中的：
//   - text            纯文本直传
//   - content_base64  base64 编码的文档二进制（PDF 自动识别）
//   - path            服务端本地路径
type ExtractHandler struct{}

// NewExtractHandler 创建提取 Handler
func NewExtractHandler() *ExtractHandler { return &ExtractHandler{} }

// Execute 实现 Handler
func (h *ExtractHandler) Execute(ctx context.Context, payload map[string]any) (map[string]any, error) {
	if text, ok := payload["text"].(string); ok && text != "" {
		return extractResult(text), nil
	}

	var data []byte
	switch {
	case payload["content_base64"] != nil:
		encoded, _ := payload["content_base64"].(string)
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("解码 content_base64 failed: %w", err)
		}
		data = decoded
	case payload["path"] != nil:
		path, _ := payload["path"].(string)
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("读取 %s failed: %w", path, err)
		}
		data = raw
	default:
		return nil, errors.New("载荷缺少文档来源: text / content_base64 / path")
	}

	if isPDF(data) {
		text, err := extractPDFText(data)
		if err != nil {
			return nil, err
		}
		return extractResult(text), nil
	}
	return extractResult(strings.TrimSpace(string(data))), nil
}

func extractResult(text string) map[string]any {
	return map[string]any{
		"text":  text,
		"chars": len(text),
	}
}

func isPDF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("%PDF-"))
}

// extractPDFText 从 PDF 二进制数据中提取正文文本，按页拼接
func extractPDFText(data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}

	reader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("打开 PDF failed: %w", err)
	}

	numPages, err := reader.GetNumPages()
	if err != nil {
		return "", fmt.Errorf("获取页数failed: %w", err)
	}
	if numPages == 0 {
		return "", nil
	}

	var buf strings.Builder
	for i := 1; i <= numPages; i++ {
		page, err := reader.GetPage(i)
		if err != nil {
			return buf.String(), fmt.Errorf("获取第 %d 页failed: %w", i, err)
		}
		ex, err := extractor.New(page)
		if err != nil {
			return buf.String(), fmt.Errorf("创建第 %d 页提取器failed: %w", i, err)
		}
		text, err := ex.ExtractText()
		if err != nil {
			return buf.String(), fmt.Errorf("提取第 %d 页文本failed: %w", i, err)
		}
		if text != "" {
			buf.WriteString(text)
			if i < numPages {
				buf.WriteString("\n\n")
			}
		}
	}

	return strings.TrimSpace(buf.String()), nil
}

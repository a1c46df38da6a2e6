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

package main

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"docflow/pkg/utils"
)

func apiBaseURL() string {
	return utils.CoalesceString(os.Getenv("DOCFLOW_API_URL"), "http://localhost:8080")
}

func newClient() *resty.Client {
	return resty.New().
		SetBaseURL(apiBaseURL()).
		SetTimeout(30 * time.Second).
		SetHeader("Content-Type", "application/json")
}

// buildSubmitPayload 把 CLI 参数变成提交载荷：
// --text 直传正文；其余参数视为文件路径，内容以 base64 上送
func buildSubmitPayload(args []string) (map[string]any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("缺少输入：docflow submit <file> 或 docflow submit --text <正文>")
	}
	if args[0] == "--text" {
		if len(args) < 2 {
			return nil, fmt.Errorf("--text 需要正文参数")
		}
		return map[string]any{"text": strings.Join(args[1:], " ")}, nil
	}

	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取 %s failed: %w", path, err)
	}
	return map[string]any{
		"content_base64": base64.StdEncoding.EncodeToString(data),
		"source":         filepath.Base(path),
	}, nil
}

func submitJob(payload map[string]any) (map[string]any, error) {
	var out map[string]any
	resp, err := newClient().R().
		SetBody(payload).
		SetResult(&out).
		Post("/api/jobs")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusAccepted {
		return nil, fmt.Errorf("POST /api/jobs: %s", resp.String())
	}
	return out, nil
}

func getJob(jobID string) (map[string]any, error) {
	var out map[string]any
	resp, err := newClient().R().
		SetResult(&out).
		Get("/api/jobs/" + jobID)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("GET /api/jobs/%s: %s", jobID, resp.String())
	}
	return out, nil
}

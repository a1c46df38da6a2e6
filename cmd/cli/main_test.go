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
	"os"
	"path/filepath"
	"testing"
)

func TestBuildSubmitPayloadText(t *testing.T) {
	payload, err := buildSubmitPayload([]string{"--text", "hello", "world"})
	if err != nil {
		t.Fatalf("buildSubmitPayload: %v", err)
	}
	if payload["text"] != "hello world" {
		t.Fatalf("text = %v", payload["text"])
	}
}

func TestBuildSubmitPayloadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	if err := os.WriteFile(path, []byte("content"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	payload, err := buildSubmitPayload([]string{path})
	if err != nil {
		t.Fatalf("buildSubmitPayload: %v", err)
	}
	if payload["source"] != "doc.txt" {
		t.Fatalf("source = %v", payload["source"])
	}
	decoded, err := base64.StdEncoding.DecodeString(payload["content_base64"].(string))
	if err != nil || string(decoded) != "content" {
		t.Fatalf("content_base64 解码 = %q, %v", decoded, err)
	}
}

func TestBuildSubmitPayloadErrors(t *testing.T) {
	if _, err := buildSubmitPayload(nil); err == nil {
		t.Fatal("无参数应报错")
	}
	if _, err := buildSubmitPayload([]string{"--text"}); err == nil {
		t.Fatal("--text 缺正文应报错")
	}
	if _, err := buildSubmitPayload([]string{"/no/such/file"}); err == nil {
		t.Fatal("不存在的文件应报错")
	}
}

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
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"time"

	"docflow/pkg/config"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}
	cmd := os.Args[1]
	args := os.Args[2:]
	switch cmd {
	case "version":
		fmt.Println("docflow cli 0.1.0")
	case "config":
		runConfig()
	case "server":
		if len(args) > 0 && args[0] == "start" {
			runService("./cmd/api")
		} else {
			fmt.Fprintf(os.Stderr, "Usage: docflow server start\n")
			os.Exit(1)
		}
	case "worker":
		if len(args) > 0 && args[0] == "start" {
			runService("./cmd/worker")
		} else {
			fmt.Fprintf(os.Stderr, "Usage: docflow worker start\n")
			os.Exit(1)
		}
	case "submit":
		runSubmit(args)
	case "status":
		if len(args) < 1 {
			fmt.Fprintf(os.Stderr, "Usage: docflow status <job_id>\n")
			os.Exit(1)
		}
		runStatus(args[0])
	case "watch":
		if len(args) < 1 {
			fmt.Fprintf(os.Stderr, "Usage: docflow watch <job_id>\n")
			os.Exit(1)
		}
		runWatch(args[0])
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: docflow <command> [args]")
	fmt.Println("  version                 - 显示版本")
	fmt.Println("  config                  - 显示配置概要")
	fmt.Println("  server start            - 启动 API 服务（go run ./cmd/api）")
	fmt.Println("  worker start            - 启动 Worker 服务（go run ./cmd/worker）")
	fmt.Println("  submit <file>           - 提交文档进入流水线")
	fmt.Println("  submit --text <正文>    - 直接提交文本")
	fmt.Println("  status <job_id>         - 查询 Job 状态")
	fmt.Println("  watch <job_id>          - 跟踪 Job 直到终态")
}

func runConfig() {
	cfg, err := config.LoadAPIConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("api.port=%d\n", cfg.API.Port)
	fmt.Printf("api.host=%s\n", cfg.API.Host)
	fmt.Printf("pipeline.stages=%d\n", len(cfg.Pipeline.Stages))
}

func runService(pkg string) {
	c := exec.Command("go", "run", pkg)
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	c.Dir = "."
	if err := c.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "start %s: %v\n", pkg, err)
		os.Exit(1)
	}
}

func runSubmit(args []string) {
	payload, err := buildSubmitPayload(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	job, err := submitJob(payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "提交失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("job_id=%v status=%v\n", job["id"], job["status"])
}

func runStatus(jobID string) {
	job, err := getJob(jobID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "查询失败: %v\n", err)
		os.Exit(1)
	}
	printJob(job)
}

// runWatch 轮询直到终态；WebSocket 推送面向浏览器端，CLI 用轮询即可
func runWatch(jobID string) {
	for {
		job, err := getJob(jobID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "查询失败: %v\n", err)
			os.Exit(1)
		}
		printJob(job)
		status, _ := job["status"].(string)
		if status == "completed" || status == "failed" {
			return
		}
		time.Sleep(time.Second)
	}
}

func printJob(job map[string]any) {
	fmt.Printf("job=%v status=%v\n", job["id"], job["status"])
	if stages, ok := job["pipeline"].([]any); ok {
		for _, s := range stages {
			st, _ := s.(map[string]any)
			line := fmt.Sprintf("  %-12v %v", st["name"], st["state"])
			if info, ok := st["info"].(string); ok && info != "" {
				line += "  " + info
			}
			fmt.Println(line)
		}
	}
	if result, ok := job["result"].(map[string]any); ok && len(result) > 0 {
		data, _ := json.Marshal(result)
		fmt.Printf("  result=%s\n", data)
	}
	if errMsg, ok := job["error"].(string); ok && errMsg != "" {
		fmt.Printf("  error=%s\n", errMsg)
	}
}

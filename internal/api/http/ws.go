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

package http

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/websocket"

	"docflow/internal/jobstore"
	"docflow/internal/notifier"
)

const wsWriteTimeout = 5 * time.Second

var upgrader = websocket.HertzUpgrader{
	CheckOrigin: func(ctx *app.RequestContext) bool { return true },
}

// wsConn 把 WebSocket 连接适配为 notifier.Conn；写操作串行化
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// Send 实现 notifier.Conn
func (c *wsConn) Send(msg notifier.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Ping 实现 notifier.Conn
func (c *wsConn) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout))
}

// Close 实现 notifier.Conn
func (c *wsConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}

// JobUpdates Job 状态实时推送
// GET /api/jobs/:id/ws
func (h *Handler) JobUpdates(c context.Context, ctx *app.RequestContext) {
	jobID := ctx.Param("id")
	if h.notifier == nil {
		ctx.JSON(consts.StatusServiceUnavailable, map[string]string{"error": "实时推送未启用"})
		return
	}
	err := upgrader.Upgrade(ctx, func(conn *websocket.Conn) {
		wc := &wsConn{conn: conn}
		if err := h.notifier.Subscribe(context.Background(), jobID, wc); err != nil {
			if errors.Is(err, jobstore.ErrNotFound) {
				wc.Send(notifier.Message{Type: notifier.MessageClose, Reason: "job 不存在或已过期"})
			}
			closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(wsWriteTimeout))
			return
		}
		defer h.notifier.Unsubscribe(jobID, wc)

		// 读循环只为感知对端断开；收到任何错误即退出
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	if err != nil {
		hlog.CtxWarnf(c, "websocket upgrade failed for job %s: %v", jobID, err)
	}
}

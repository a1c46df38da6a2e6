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

package middleware

import (
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/hertz-contrib/jwt"

	"docflow/pkg/config"
)

// Auth 按配置返回 JWT 鉴权中间件；auth 关闭时返回 nil（路由层跳过）
func (m *Middleware) Auth() (app.HandlerFunc, error) {
	if !m.cfg.Auth {
		return nil, nil
	}
	mw, err := jwt.New(&jwt.HertzJWTMiddleware{
		Realm:       "docflow",
		Key:         []byte(m.cfg.JWTKey),
		Timeout:     config.ParseDuration(m.cfg.JWTTimeout, time.Hour),
		MaxRefresh:  config.ParseDuration(m.cfg.JWTMaxRefresh, time.Hour),
		TokenLookup: "header: Authorization",
	})
	if err != nil {
		return nil, err
	}
	return mw.MiddlewareFunc(), nil
}

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

	"github.com/redis/go-redis/v9"
)

const indexKeyPrefix = "docflow:index:"

// RedisIndexWriter 把倒排条目写入 Redis Set：term -> 文档类别集合。
// 粒度粗，够支撑按词召回类别的运营查询
type RedisIndexWriter struct {
	client *redis.Client
}

// NewRedisIndexWriter 创建 Redis 索引写入器
func NewRedisIndexWriter(client *redis.Client) *RedisIndexWriter {
	return &RedisIndexWriter{client: client}
}

// WriteEntry 实现 IndexWriter
func (w *RedisIndexWriter) WriteEntry(ctx context.Context, docLabel string, terms []string) error {
	if docLabel == "" || len(terms) == 0 {
		return nil
	}
	pipe := w.client.Pipeline()
	for _, term := range terms {
		pipe.SAdd(ctx, indexKeyPrefix+term, docLabel)
	}
	_, err := pipe.Exec(ctx)
	return err
}

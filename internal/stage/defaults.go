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

// 默认 Stage 链使用的 Stage 名
const (
	StageExtract  = "extract"
	StageValidate = "validate"
	StageAudit    = "audit"
	StageClassify = "classify"
	StageEnrich   = "enrich"
	StageIndex    = "index"
)

// RegisterDefaults 注册默认六 Stage 的 Handler；indexWriter 可为 nil
func RegisterDefaults(reg *Registry, indexWriter IndexWriter) {
	reg.Register(StageExtract, NewExtractHandler())
	reg.Register(StageValidate, NewValidateHandler())
	reg.Register(StageAudit, NewAuditHandler())
	reg.Register(StageClassify, NewClassifyHandler())
	reg.Register(StageEnrich, NewEnrichHandler())
	reg.Register(StageIndex, NewIndexHandler(indexWriter))
}

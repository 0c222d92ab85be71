// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package conc

import (
	"time"

	ants "github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/lk2023060901/pson-go/pkg/log"
)

type poolOption struct {
	name string
	// nonBlocking 为 true 时池满立即返回 ants.ErrPoolOverload，否则等待空闲 worker。
	nonBlocking bool
	// expiry 为空闲 worker 的回收间隔，0 使用 ants 默认值。
	expiry time.Duration
	// concealPanic 为 true 时任务 panic 只记日志与返回错误，不向上抛出。
	concealPanic bool
	// onPanic 替换默认的 panic 处理。
	onPanic func(any)
	// preHandler 在每个任务执行前调用，例如为 worker 预取 arena。
	preHandler func()
}

// PoolOption 用于配置协程池行为的选项函数。
type PoolOption func(opt *poolOption)

func defaultPoolOption() *poolOption {
	return &poolOption{name: "conc"}
}

func (opt *poolOption) antsOptions() []ants.Option {
	handler := opt.onPanic
	if handler == nil {
		handler = func(v any) {
			log.Error("pool task panicked", zap.String("pool", opt.name), zap.Any("panic", v))
			if !opt.concealPanic {
				panic(v)
			}
		}
	}
	result := []ants.Option{
		ants.WithNonblocking(opt.nonBlocking),
		ants.WithPanicHandler(handler),
	}
	if opt.expiry > 0 {
		result = append(result, ants.WithExpiryDuration(opt.expiry))
	}
	return result
}

// WithName 设置协程池名称，用于日志。
func WithName(name string) PoolOption {
	return func(opt *poolOption) {
		opt.name = name
	}
}

func WithNonBlocking(v bool) PoolOption {
	return func(opt *poolOption) {
		opt.nonBlocking = v
	}
}

func WithExpiryDuration(d time.Duration) PoolOption {
	return func(opt *poolOption) {
		opt.expiry = d
	}
}

func WithConcealPanic(v bool) PoolOption {
	return func(opt *poolOption) {
		opt.concealPanic = v
	}
}

// WithPanicHandler 设置自定义 panic 处理，设置后 WithConcealPanic 不再生效。
func WithPanicHandler(fn func(any)) PoolOption {
	return func(opt *poolOption) {
		opt.onPanic = fn
	}
}

func WithPreHandler(fn func()) PoolOption {
	return func(opt *poolOption) {
		opt.preHandler = fn
	}
}

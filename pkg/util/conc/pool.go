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
	"fmt"

	ants "github.com/panjf2000/ants/v2"

	"github.com/lk2023060901/pson-go/pkg/util/hardware"
)

// Pool 是对 ants.Pool 的封装，提交任务后通过返回的 channel 获取执行结果。
type Pool struct {
	inner *ants.Pool
	opt   *poolOption
}

// NewPool 创建容量为 cap 的协程池。
func NewPool(cap int, opts ...PoolOption) *Pool {
	opt := defaultPoolOption()
	for _, o := range opts {
		o(opt)
	}

	pool, err := ants.NewPool(cap, opt.antsOptions()...)
	if err != nil {
		panic(err)
	}
	return &Pool{
		inner: pool,
		opt:   opt,
	}
}

// NewDefaultPool 创建容量为 CPU 核数的协程池。
func NewDefaultPool(opts ...PoolOption) *Pool {
	return NewPool(hardware.GetCPUNum(), opts...)
}

// Submit 提交一个任务。返回的 channel 容量为 1，任务结束后写入其错误（可能为 nil）并关闭。
// 提交本身失败（例如非阻塞模式下池已满）时，错误同样通过该 channel 返回。
func (p *Pool) Submit(fn func() error) <-chan error {
	done := make(chan error, 1)
	err := p.inner.Submit(func() {
		defer close(done)
		defer func() {
			if x := recover(); x != nil {
				done <- fmt.Errorf("conc: task panicked: %v", x)
				panic(x)
			}
		}()
		if p.opt.preHandler != nil {
			p.opt.preHandler()
		}
		done <- fn()
	})
	if err != nil {
		done <- err
		close(done)
	}
	return done
}

// Cap 返回协程池容量。
func (p *Pool) Cap() int {
	return p.inner.Cap()
}

// Running 返回正在执行任务的 worker 数。
func (p *Pool) Running() int {
	return p.inner.Running()
}

// Free 返回空闲 worker 数。
func (p *Pool) Free() int {
	return p.inner.Free()
}

// Resize 调整协程池容量。
func (p *Pool) Resize(size int) {
	if size <= 0 {
		return
	}
	p.inner.Tune(size)
}

// Release 关闭协程池，已提交的任务会继续执行完。
func (p *Pool) Release() {
	p.inner.Release()
}

// AwaitAll 等待所有结果 channel 返回，并返回第一个非空错误。
func AwaitAll(results ...<-chan error) error {
	var first error
	for _, ch := range results {
		if err := <-ch; err != nil && first == nil {
			first = err
		}
	}
	return first
}

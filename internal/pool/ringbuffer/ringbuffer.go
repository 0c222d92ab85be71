// Copyright (c) 2019 The Gnet Authors. All rights reserved.
// Copyright (c) 2016 Aliaksandr Valialkin, VertaMedia
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
//
// Use of this source code is governed by a MIT license that can be found
// at https://github.com/valyala/bytebufferpool/blob/master/LICENSE

// Package ringbuffer 实现了环形分配器的对象池，
// 为每次并发的编解码调用提供独立的 arena，并按实际用量自动校准容量。
package ringbuffer

import (
	"math/bits"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/lk2023060901/pson-go/pkg/pson"
)

const (
	minBitSize = 6 // 2**6=64，为典型 CPU cache line 大小
	steps      = 20

	minSize = 1 << minBitSize

	calibrateCallsThreshold = 42000
	maxPercentile           = 0.95
)

// Arena 是 pson.RingAllocator 的别名，便于在池中引用。
type Arena = pson.RingAllocator

// Pool 表示环形分配器的对象池。
//
// 说明：
//   - 不同用途可以使用不同的 Pool，以减少内存浪费；
//   - 内部按归还时的累计分配量校准默认容量和最大可回收容量。
type Pool struct {
	calls       [steps]uint64
	calibrating uint64

	defaultSize uint64
	maxSize     uint64

	pool sync.Pool
}

var builtinPool Pool

// Get 从默认池中获取一个已重置的环形分配器。
func Get() *Arena { return builtinPool.Get() }

// Get 从指定 Pool 中获取一个已重置的环形分配器。
//
// 使用结束后应通过 Put 归还。
func (p *Pool) Get() *Arena {
	v := p.pool.Get()
	if v != nil {
		return v.(*Arena)
	}
	return pson.NewRingAllocator(int(atomic.LoadUint64(&p.defaultSize)))
}

// GetAtLeast 返回容量不小于 size 的环形分配器。
// 池中的对象容量不足时会新建一个。
func (p *Pool) GetAtLeast(size int) *Arena {
	a := p.Get()
	if a.Cap() >= size {
		return a
	}
	p.pool.Put(a)
	return pson.NewRingAllocator(size)
}

// GetAtLeast 从默认池中获取容量不小于 size 的环形分配器。
func GetAtLeast(size int) *Arena { return builtinPool.GetAtLeast(size) }

// Put 将环形分配器归还到默认池中。
//
// 注意：归还后，所有从该分配器得到的值都不允许再被访问。
func Put(a *Arena) { builtinPool.Put(a) }

// Put 将通过 Get 获取的分配器归还到 Pool 中。
func (p *Pool) Put(a *Arena) {
	idx := index(int(a.Stats().Allocated))

	if atomic.AddUint64(&p.calls[idx], 1) > calibrateCallsThreshold {
		p.calibrate()
	}

	maxSize := int(atomic.LoadUint64(&p.maxSize))
	if maxSize == 0 || a.Cap() <= maxSize {
		a.Reset()
		p.pool.Put(a)
	}
}

func (p *Pool) calibrate() {
	if !atomic.CompareAndSwapUint64(&p.calibrating, 0, 1) {
		return
	}

	a := make(callSizes, 0, steps)
	var callsSum uint64
	for i := uint64(0); i < steps; i++ {
		calls := atomic.SwapUint64(&p.calls[i], 0)
		callsSum += calls
		a = append(a, callSize{
			calls: calls,
			size:  minSize << i,
		})
	}
	sort.Sort(a)

	defaultSize := a[0].size
	maxSize := defaultSize

	maxSum := uint64(float64(callsSum) * maxPercentile)
	callsSum = 0
	for i := 0; i < steps; i++ {
		if callsSum > maxSum {
			break
		}
		callsSum += a[i].calls
		size := a[i].size
		if size > maxSize {
			maxSize = size
		}
	}

	atomic.StoreUint64(&p.defaultSize, defaultSize)
	atomic.StoreUint64(&p.maxSize, maxSize)

	atomic.StoreUint64(&p.calibrating, 0)
}

type callSize struct {
	calls uint64
	size  uint64
}

type callSizes []callSize

func (ci callSizes) Len() int {
	return len(ci)
}

func (ci callSizes) Less(i, j int) bool {
	return ci[i].calls > ci[j].calls
}

func (ci callSizes) Swap(i, j int) {
	ci[i], ci[j] = ci[j], ci[i]
}

func index(n int) int {
	n--
	n >>= minBitSize
	idx := 0
	if n > 0 {
		idx = bits.Len(uint(n))
	}
	if idx >= steps {
		idx = steps - 1
	}
	return idx
}

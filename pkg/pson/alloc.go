package pson

import (
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/lk2023060901/pson-go/pkg/buffer/ring"
	"github.com/lk2023060901/pson-go/pkg/log"
	"github.com/lk2023060901/pson-go/pkg/metrics"
	"github.com/lk2023060901/pson-go/pkg/util/merr"
)

const (
	AllocatorKindRing = "ring"
	AllocatorKindHeap = "heap"
)

// Allocator 为字符串和字节数组载荷提供内存块。
// 实现必须是并发安全的。
type Allocator interface {
	// Allocate 返回长度为 size 的内存块，失败时返回错误而不是空块。
	Allocate(size int) ([]byte, error)
	// Deallocate 归还由 Allocate 得到的内存块。每个块只会被归还一次。
	Deallocate(block []byte)
}

// AllocatorStats 为分配器的运行统计。
type AllocatorStats struct {
	// Allocated 为累计分配的字节数。
	Allocated uint64
	// Live 为当前未释放的字节数；环形分配器为当前偏移。
	Live int
	// Wraps 为环形分配器的回绕次数。
	Wraps uint64
	// Failures 为分配失败次数。
	Failures uint64
}

// StatsReporter 由能够报告统计信息的分配器实现。
type StatsReporter interface {
	Stats() AllocatorStats
}

var (
	_ Allocator     = (*RingAllocator)(nil)
	_ Allocator     = (*HeapAllocator)(nil)
	_ StatsReporter = (*RingAllocator)(nil)
	_ StatsReporter = (*HeapAllocator)(nil)
)

// RingAllocator 是基于固定容量环形区域的分配器。
//
// 申请按顺序切分，剩余空间不足时回绕到起点，回绕会覆盖最早分配的数据。
// 释放是空操作。适用于生命周期短、总量可预估的值树。
type RingAllocator struct {
	mu       sync.Mutex
	arena    *ring.Arena
	failures atomic.Uint64
}

// NewRingAllocator 创建容量为 capacity 字节（向上取整为 2 的幂）的环形分配器。
func NewRingAllocator(capacity int) *RingAllocator {
	return &RingAllocator{arena: ring.New(capacity)}
}

func (r *RingAllocator) Allocate(size int) ([]byte, error) {
	if size < 0 {
		return nil, merr.WrapErrParameterInvalidMsg("negative allocation size %d", size)
	}

	r.mu.Lock()
	wraps := r.arena.Wraps()
	block, err := r.arena.Alloc(size)
	wrapped := r.arena.Wraps() != wraps
	offset := r.arena.Offset()
	capacity := r.arena.Cap()
	r.mu.Unlock()

	if err != nil {
		r.failures.Inc()
		metrics.AllocatorFailures.WithLabelValues(AllocatorKindRing, "block_too_large").Inc()
		return nil, merr.WrapErrAllocBlockTooLarge(size, capacity)
	}
	if wrapped {
		metrics.AllocatorWraps.Inc()
		log.RatedDebug(1, "pson: ring allocator wrapped",
			zap.Int("capacity", capacity), zap.Int("request", size))
	}
	metrics.AllocatorLiveBytes.WithLabelValues(AllocatorKindRing).Set(float64(offset))
	return block, nil
}

// Deallocate 对环形分配器无效果。
func (r *RingAllocator) Deallocate([]byte) {}

// Reset 将分配位置回到起点，之前分配的所有块都视为失效。
func (r *RingAllocator) Reset() {
	r.mu.Lock()
	r.arena.Reset()
	r.mu.Unlock()
	metrics.AllocatorLiveBytes.WithLabelValues(AllocatorKindRing).Set(0)
}

// Cap 返回环形区域的容量。
func (r *RingAllocator) Cap() int {
	return r.arena.Cap()
}

func (r *RingAllocator) Stats() AllocatorStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return AllocatorStats{
		Allocated: r.arena.Allocated(),
		Live:      r.arena.Offset(),
		Wraps:     r.arena.Wraps(),
		Failures:  r.failures.Load(),
	}
}

// HeapAllocator 从 Go 堆上分配内存块，可选地限制同时存活的总字节数。
type HeapAllocator struct {
	limit     int
	mu        sync.Mutex
	live      int
	allocated atomic.Uint64
	failures  atomic.Uint64
}

// NewHeapAllocator 创建堆分配器，limit <= 0 表示不限制。
func NewHeapAllocator(limit int) *HeapAllocator {
	if limit < 0 {
		limit = 0
	}
	return &HeapAllocator{limit: limit}
}

func (h *HeapAllocator) Allocate(size int) ([]byte, error) {
	if size < 0 {
		return nil, merr.WrapErrParameterInvalidMsg("negative allocation size %d", size)
	}

	h.mu.Lock()
	if h.limit > 0 && h.live+size > h.limit {
		live := h.live
		h.mu.Unlock()
		h.failures.Inc()
		metrics.AllocatorFailures.WithLabelValues(AllocatorKindHeap, "out_of_memory").Inc()
		return nil, merr.WrapErrAllocOutOfMemory(size, live, h.limit)
	}
	h.live += size
	live := h.live
	h.mu.Unlock()

	h.allocated.Add(uint64(size))
	metrics.AllocatorLiveBytes.WithLabelValues(AllocatorKindHeap).Set(float64(live))
	return make([]byte, size), nil
}

func (h *HeapAllocator) Deallocate(block []byte) {
	if block == nil {
		return
	}
	h.mu.Lock()
	h.live -= cap(block)
	if h.live < 0 {
		h.live = 0
	}
	live := h.live
	h.mu.Unlock()
	metrics.AllocatorLiveBytes.WithLabelValues(AllocatorKindHeap).Set(float64(live))
}

// Limit 返回存活字节上限，0 表示不限制。
func (h *HeapAllocator) Limit() int {
	return h.limit
}

func (h *HeapAllocator) Stats() AllocatorStats {
	h.mu.Lock()
	live := h.live
	h.mu.Unlock()
	return AllocatorStats{
		Allocated: h.allocated.Load(),
		Live:      live,
		Failures:  h.failures.Load(),
	}
}

// NewAllocator 按类型名创建分配器，size 对环形分配器为容量，对堆分配器为上限。
func NewAllocator(kind string, size int) (Allocator, error) {
	switch kind {
	case AllocatorKindRing:
		return NewRingAllocator(size), nil
	case AllocatorKindHeap, "":
		return NewHeapAllocator(size), nil
	default:
		return nil, merr.WrapErrAllocatorNotDefined(kind)
	}
}

type allocatorHolder struct {
	Allocator
}

var (
	installed   atomic.Pointer[allocatorHolder]
	defaultOnce sync.Once
	defaultHeap *HeapAllocator
)

// Install 安装进程级默认分配器，只能成功调用一次。
func Install(a Allocator) error {
	if a == nil {
		return merr.WrapErrParameterMissing("allocator")
	}
	if !installed.CompareAndSwap(nil, &allocatorHolder{a}) {
		return merr.ErrAllocatorInstalled
	}
	return nil
}

// Default 返回已安装的默认分配器。
// 未安装时返回一个惰性创建的、不限容量的堆分配器。
func Default() Allocator {
	if h := installed.Load(); h != nil {
		return h.Allocator
	}
	defaultOnce.Do(func() {
		defaultHeap = NewHeapAllocator(0)
	})
	return defaultHeap
}

// Installed 报告是否已经通过 Install 安装了默认分配器。
func Installed() bool {
	return installed.Load() != nil
}

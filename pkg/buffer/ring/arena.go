// Package ring 实现了一个固定容量、回绕复用的字节分配区（环形 Arena）。
//
// 与普通的 bump 分配器不同，Arena 在容量耗尽时不会报错，而是回到偏移 0 继续分配，
// 覆盖最早分配出去的数据。调用方需要保证容量足够覆盖一次编解码周期内的存活数据。
package ring

import (
	"errors"
	"math/bits"
)

const (
	// DefaultArenaSize 是 Arena 的默认容量。
	DefaultArenaSize = 4 * 1024 // 4KB
)

// ErrBlockTooLarge 表示单次申请的大小超过了 Arena 的总容量，回绕也无法满足。
var ErrBlockTooLarge = errors.New("ring-arena: block larger than capacity")

// Arena 是一个环形字节分配区。
//
// 注意：Arena 自身不是并发安全的，并发使用时需要由上层加锁或为每个协程分配独立实例。
type Arena struct {
	buf   []byte
	size  int    // 容量（始终为 2 的幂）
	off   int    // 下一次分配的起始位置
	used  uint64 // 累计分配字节数
	wraps uint64 // 回绕次数
}

// New 创建一个给定容量的 Arena。
// size 会被向上取整为 2 的幂；size <= 0 时使用 DefaultArenaSize。
func New(size int) *Arena {
	if size <= 0 {
		size = DefaultArenaSize
	}
	size = ceilToPowerOfTwo(size)
	return &Arena{
		buf:  make([]byte, size),
		size: size,
	}
}

// Alloc 从 Arena 中切出 n 个字节。
//
// 当剩余空间不足时回绕到偏移 0，原先位于该区域的数据会被后续写入覆盖。
// 返回的切片容量被截断为 n，避免 append 越界写入相邻分配块。
func (a *Arena) Alloc(n int) ([]byte, error) {
	if n < 0 || n > a.size {
		return nil, ErrBlockTooLarge
	}
	if n == 0 {
		return a.buf[a.off:a.off:a.off], nil
	}
	if a.off+n > a.size {
		a.off = 0
		a.wraps++
	}
	block := a.buf[a.off : a.off+n : a.off+n]
	clear(block)
	a.off += n
	a.used += uint64(n)
	return block, nil
}

// Offset 返回下一次分配的起始位置。
func (a *Arena) Offset() int {
	return a.off
}

// Cap 返回 Arena 的容量。
func (a *Arena) Cap() int {
	return a.size
}

// Allocated 返回自创建（或上次 Reset）以来累计分配的字节数。
func (a *Arena) Allocated() uint64 {
	return a.used
}

// Wraps 返回回绕次数。
func (a *Arena) Wraps() uint64 {
	return a.wraps
}

// Reset 将分配位置归零，并清空统计信息。之前分配出去的切片都将失效。
func (a *Arena) Reset() {
	a.off = 0
	a.used = 0
	a.wraps = 0
}

// ceilToPowerOfTwo 将 n 向上取整为最接近的 2 的幂。
// 若 n 已经是 2 的幂，则直接返回 n。
func ceilToPowerOfTwo(n int) int {
	if n <= 0 {
		return 0
	}
	if n&(n-1) == 0 {
		return n
	}
	return 1 << bits.Len(uint(n))
}

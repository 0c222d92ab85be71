package pson

// Array 为按插入顺序保存的值序列。
type Array struct {
	items nodes[Value]
	alloc Allocator
}

func newArray(a Allocator) *Array {
	return &Array{alloc: a}
}

// Len 返回元素个数，nil 数组为 0。
func (a *Array) Len() int {
	if a == nil {
		return 0
	}
	return a.items.len()
}

// Add 追加一个 null 元素并返回它。
func (a *Array) Add() *Value {
	v := a.items.push()
	v.alloc = a.alloc
	return v
}

// At 返回第 i 个元素，越界时返回 Empty()。
func (a *Array) At(i int) *Value {
	if a == nil || i < 0 || i >= a.items.len() {
		return Empty()
	}
	return a.items.items[i]
}

// Iter 返回按插入顺序遍历元素的迭代器。
func (a *Array) Iter() *Iterator[Value] {
	if a == nil {
		return &Iterator[Value]{}
	}
	return &Iterator[Value]{items: a.items.items}
}

// Range 按顺序依次调用 fn，fn 返回 false 时停止。
func (a *Array) Range(fn func(i int, v *Value) bool) {
	if a == nil {
		return
	}
	for i, v := range a.items.items {
		if !fn(i, v) {
			return
		}
	}
}

func (a *Array) release() {
	for _, v := range a.items.items {
		v.Release()
	}
	a.items.reset()
}

func (a *Array) equal(other *Array) bool {
	if a.Len() != other.Len() {
		return false
	}
	for i, v := range a.items.items {
		if !Equal(v, other.items.items[i]) {
			return false
		}
	}
	return true
}

package pson

// nodes 为容器的底层存储，按插入顺序保存节点指针，
// 已返回给调用方的节点地址在后续追加时保持不变。
type nodes[T any] struct {
	items []*T
}

func (n *nodes[T]) push() *T {
	node := new(T)
	n.items = append(n.items, node)
	return node
}

// pop 移除最后一个节点，仅用于解码时丢弃未知类型的条目。
func (n *nodes[T]) pop() {
	if len(n.items) == 0 {
		return
	}
	n.items[len(n.items)-1] = nil
	n.items = n.items[:len(n.items)-1]
}

func (n *nodes[T]) len() int {
	return len(n.items)
}

func (n *nodes[T]) reset() {
	clear(n.items)
	n.items = n.items[:0]
}

// Iterator 按插入顺序遍历容器，用法：
//
//	for it := obj.Iter(); it.Valid(); it.Next() {
//		p := it.Item()
//	}
type Iterator[T any] struct {
	items []*T
	pos   int
}

// Valid 报告当前位置是否指向一个元素。
func (it *Iterator[T]) Valid() bool {
	return it.pos < len(it.items)
}

// Next 前进一个位置。已越过末尾时返回 false 且不再移动。
func (it *Iterator[T]) Next() bool {
	if !it.Valid() {
		return false
	}
	it.pos++
	return true
}

// Item 返回当前元素，越界时返回 nil。
func (it *Iterator[T]) Item() *T {
	if !it.Valid() {
		return nil
	}
	return it.items[it.pos]
}

package pson

// Pair 为对象中的一个名称/值对。名称不要求唯一。
type Pair struct {
	name  string
	value Value
}

func (p *Pair) Name() string {
	return p.name
}

func (p *Pair) Value() *Value {
	return &p.value
}

// Object 为按插入顺序保存的名称/值序列。
type Object struct {
	pairs nodes[Pair]
	alloc Allocator
}

func newObject(a Allocator) *Object {
	return &Object{alloc: a}
}

// Len 返回成员个数，nil 对象为 0。
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return o.pairs.len()
}

// Get 返回第一个名称为 name 的成员，不存在时返回 Empty()。
func (o *Object) Get(name string) *Value {
	if p := o.find(name); p != nil {
		return &p.value
	}
	return Empty()
}

// Has 报告是否存在名称为 name 的成员。
func (o *Object) Has(name string) bool {
	return o.find(name) != nil
}

func (o *Object) find(name string) *Pair {
	if o == nil {
		return nil
	}
	for _, p := range o.pairs.items {
		if p.name == name {
			return p
		}
	}
	return nil
}

// GetOrCreate 返回第一个名称为 name 的成员，不存在时追加一个 null 成员。
func (o *Object) GetOrCreate(name string) *Value {
	if p := o.find(name); p != nil {
		return &p.value
	}
	return o.Append(name)
}

// Append 无条件追加一个 null 成员，允许与已有成员重名。
func (o *Object) Append(name string) *Value {
	p := o.pairs.push()
	p.name = name
	p.value.alloc = o.alloc
	return &p.value
}

// Iter 返回按插入顺序遍历成员的迭代器。
func (o *Object) Iter() *Iterator[Pair] {
	if o == nil {
		return &Iterator[Pair]{}
	}
	return &Iterator[Pair]{items: o.pairs.items}
}

// Range 按插入顺序依次调用 fn，fn 返回 false 时停止。
func (o *Object) Range(fn func(name string, v *Value) bool) {
	if o == nil {
		return
	}
	for _, p := range o.pairs.items {
		if !fn(p.name, &p.value) {
			return
		}
	}
}

// Names 返回所有成员名称，保持插入顺序。
func (o *Object) Names() []string {
	names := make([]string, 0, o.Len())
	o.Range(func(name string, _ *Value) bool {
		names = append(names, name)
		return true
	})
	return names
}

func (o *Object) release() {
	for _, p := range o.pairs.items {
		p.value.Release()
	}
	o.pairs.reset()
}

func (o *Object) equal(other *Object) bool {
	if o.Len() != other.Len() {
		return false
	}
	for i, p := range o.pairs.items {
		q := other.pairs.items[i]
		if p.name != q.name || !Equal(&p.value, &q.value) {
			return false
		}
	}
	return true
}

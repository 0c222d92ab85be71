package pson

import (
	"bytes"
	"fmt"
	"strconv"
)

// Value 是一个带运行时类型的动态值，零值为 null。
//
// 整数以绝对值形式保存，符号由类型区分；字符串与字节数组的载荷
// 保存在分配器申请的内存块中，不附加终止符。
// 子值继承所在容器的分配器。
type Value struct {
	typ   Type
	num   uint64
	f32   float32
	f64   float64
	buf   []byte
	obj   *Object
	arr   *Array
	alloc Allocator

	readonly bool
}

// emptyValue 为查找失败时返回的共享空值，所有写操作对它无效。
var emptyValue = Value{readonly: true}

// Empty 返回共享的只读空值。
func Empty() *Value {
	return &emptyValue
}

// NewValue 创建一个使用指定分配器的 null 值，a 为 nil 时使用 Default()。
func NewValue(a Allocator) *Value {
	return &Value{alloc: a}
}

// Allocator 返回该值使用的分配器。
func (v *Value) Allocator() Allocator {
	if v.alloc != nil {
		return v.alloc
	}
	return Default()
}

// SetAllocator 指定该值后续申请载荷时使用的分配器，已有载荷不受影响。
func (v *Value) SetAllocator(a Allocator) {
	if v.readonly {
		return
	}
	v.alloc = a
}

// IsEmpty 报告 v 是否为共享空值（查找失败的结果）。
func (v *Value) IsEmpty() bool {
	return v == &emptyValue
}

func (v *Value) Type() Type {
	return v.typ
}

func (v *Value) IsNull() bool {
	return v.typ == TypeNull
}

func (v *Value) IsObject() bool {
	return v.typ == TypeObject
}

func (v *Value) IsArray() bool {
	return v.typ == TypeArray
}

func (v *Value) IsString() bool {
	return v.typ == TypeString
}

func (v *Value) IsBytes() bool {
	return v.typ == TypeBytes
}

func (v *Value) IsBool() bool {
	return v.typ == TypeTrue || v.typ == TypeFalse
}

// IsNumber 报告 v 是否为数值类型（包括 zero/one）。
func (v *Value) IsNumber() bool {
	switch v.typ {
	case TypeVarint, TypeSvarint, TypeFloat32, TypeFloat64, TypeZero, TypeOne:
		return true
	default:
		return false
	}
}

// Release 释放 v 持有的载荷并递归释放子值，之后 v 为 null。
// 每个载荷块恰好归还一次。
func (v *Value) Release() {
	if v.readonly {
		return
	}
	switch v.typ {
	case TypeString, TypeBytes:
		if v.buf != nil {
			v.Allocator().Deallocate(v.buf)
		}
	case TypeObject:
		if v.obj != nil {
			v.obj.release()
		}
	case TypeArray:
		if v.arr != nil {
			v.arr.release()
		}
	}
	v.typ = TypeNull
	v.num, v.f32, v.f64 = 0, 0, 0
	v.buf, v.obj, v.arr = nil, nil, nil
}

// SetNull 释放原有载荷并将 v 置为 null。
func (v *Value) SetNull() {
	v.Release()
}

func (v *Value) SetBool(b bool) {
	if v.readonly {
		return
	}
	v.Release()
	if b {
		v.typ = TypeTrue
	} else {
		v.typ = TypeFalse
	}
}

// SetString 将 s 拷贝到分配器申请的块中，分配失败时 v 保持为 null。
func (v *Value) SetString(s string) error {
	return v.setBlock(TypeString, len(s), func(b []byte) { copy(b, s) })
}

// SetBytes 拷贝 p 作为字节数组载荷，分配失败时 v 保持为 null。
func (v *Value) SetBytes(p []byte) error {
	return v.setBlock(TypeBytes, len(p), func(b []byte) { copy(b, p) })
}

func (v *Value) setBlock(t Type, n int, fill func([]byte)) error {
	if v.readonly {
		return nil
	}
	v.Release()
	a := v.Allocator()
	block, err := a.Allocate(n)
	if err != nil {
		return err
	}
	fill(block)
	v.alloc = a
	v.typ = t
	v.buf = block
	return nil
}

// Str 返回字符串载荷，类型不是 string 时返回空串。
func (v *Value) Str() string {
	if v.typ != TypeString {
		return ""
	}
	return string(v.buf)
}

// Bytes 返回字节数组载荷的只读视图，类型不是 bytes 时返回 nil。
// 环形分配器回绕后视图内容可能被覆盖。
func (v *Value) Bytes() []byte {
	if v.typ != TypeBytes {
		return nil
	}
	return v.buf
}

// Len 返回字符串/字节数组的载荷长度或容器的元素个数，其他类型为 0。
func (v *Value) Len() int {
	switch v.typ {
	case TypeString, TypeBytes:
		return len(v.buf)
	case TypeObject:
		return v.obj.Len()
	case TypeArray:
		return v.arr.Len()
	default:
		return 0
	}
}

// Bool 将 v 作为布尔值读取，数值非零为 true。
func (v *Value) Bool() bool {
	switch v.typ {
	case TypeTrue:
		return true
	case TypeFalse:
		return false
	default:
		return v.IsNumber() && v.Float() != 0
	}
}

// BoolOr 在 v 不是布尔或数值时返回 def。
func (v *Value) BoolOr(def bool) bool {
	if !v.IsBool() && !v.IsNumber() {
		return def
	}
	return v.Bool()
}

// EnsureObject 将 v 转为对象（原类型不是对象时丢弃原有内容）并返回它。
// 对共享空值调用时返回一个游离的对象，其写入不会被保留。
func (v *Value) EnsureObject() *Object {
	if v.readonly {
		return newObject(nil)
	}
	if v.typ != TypeObject {
		v.Release()
		v.typ = TypeObject
		v.obj = newObject(v.alloc)
	}
	return v.obj
}

// EnsureArray 将 v 转为数组并返回它，语义同 EnsureObject。
func (v *Value) EnsureArray() *Array {
	if v.readonly {
		return newArray(nil)
	}
	if v.typ != TypeArray {
		v.Release()
		v.typ = TypeArray
		v.arr = newArray(v.alloc)
	}
	return v.arr
}

// AsObject 返回对象视图，类型不是对象时 ok 为 false。
func (v *Value) AsObject() (*Object, bool) {
	if v.typ != TypeObject {
		return nil, false
	}
	return v.obj, true
}

// AsArray 返回数组视图，类型不是数组时 ok 为 false。
func (v *Value) AsArray() (*Array, bool) {
	if v.typ != TypeArray {
		return nil, false
	}
	return v.arr, true
}

// Get 按名称查找对象成员，v 不是对象或成员不存在时返回 Empty()。
func (v *Value) Get(name string) *Value {
	if v.typ != TypeObject {
		return Empty()
	}
	return v.obj.Get(name)
}

// GetOrCreate 查找对象成员，不存在时追加一个 null 成员。
// v 不是对象时先转为对象。
func (v *Value) GetOrCreate(name string) *Value {
	return v.EnsureObject().GetOrCreate(name)
}

// At 返回数组第 i 个元素，越界或 v 不是数组时返回 Empty()。
func (v *Value) At(i int) *Value {
	if v.typ != TypeArray {
		return Empty()
	}
	return v.arr.At(i)
}

// Add 向数组追加一个 null 元素并返回它。v 不是数组时先转为数组。
func (v *Value) Add() *Value {
	return v.EnsureArray().Add()
}

// Equal 报告两棵值树在类型和内容上是否完全一致，对象成员按顺序比较。
func Equal(a, b *Value) bool {
	if a.typ != b.typ {
		return false
	}
	switch a.typ {
	case TypeVarint, TypeSvarint:
		return a.num == b.num
	case TypeFloat32:
		return a.f32 == b.f32
	case TypeFloat64:
		return a.f64 == b.f64
	case TypeString, TypeBytes:
		return bytes.Equal(a.buf, b.buf)
	case TypeObject:
		return a.obj.equal(b.obj)
	case TypeArray:
		return a.arr.equal(b.arr)
	default:
		return true
	}
}

// String 返回便于调试的文本表示。
func (v *Value) String() string {
	switch v.typ {
	case TypeNull:
		return "null"
	case TypeTrue:
		return "true"
	case TypeFalse:
		return "false"
	case TypeZero, TypeOne, TypeVarint:
		return strconv.FormatUint(v.Uint(), 10)
	case TypeSvarint:
		return strconv.FormatInt(v.Int(), 10)
	case TypeFloat32:
		return strconv.FormatFloat(float64(v.f32), 'g', -1, 32)
	case TypeFloat64:
		return strconv.FormatFloat(v.f64, 'g', -1, 64)
	case TypeString:
		return strconv.Quote(string(v.buf))
	case TypeBytes:
		return fmt.Sprintf("bytes(%d)", len(v.buf))
	case TypeObject:
		return fmt.Sprintf("object(%d)", v.obj.Len())
	case TypeArray:
		return fmt.Sprintf("array(%d)", v.arr.Len())
	default:
		return v.typ.String()
	}
}

package pson

import (
	"math"

	"golang.org/x/exp/constraints"
)

// floatTolerance 为双精度值降级为单精度时允许的最大绝对误差。
const floatTolerance = 1e-5

// Number 为可以写入 Value 的数值类型。
type Number interface {
	constraints.Integer | constraints.Float
}

// Set 按数值编码规则把 n 写入 v：
// 0 与 1 使用零载荷类型，负数使用 svarint 保存绝对值，
// 浮点数为整数值时按整数处理，否则在误差允许时降级为 float32。
func Set[T Number](v *Value, n T) {
	if T(1)/2 != 0 {
		v.SetFloat64(float64(n))
		return
	}
	if n < 0 {
		v.SetInt(int64(n))
		return
	}
	v.SetUint(uint64(n))
}

// SetInt 按整数规则写入 i。
func (v *Value) SetInt(i int64) {
	if i < 0 {
		v.setNumber(TypeSvarint, uint64(-(i+1))+1)
		return
	}
	v.SetUint(uint64(i))
}

// SetUint 按整数规则写入 u。
func (v *Value) SetUint(u uint64) {
	switch u {
	case 0:
		v.setNumber(TypeZero, 0)
	case 1:
		v.setNumber(TypeOne, 0)
	default:
		v.setNumber(TypeVarint, u)
	}
}

func (v *Value) setNumber(t Type, magnitude uint64) {
	if v.readonly {
		return
	}
	v.Release()
	v.typ = t
	v.num = magnitude
}

// SetFloat64 按浮点规则写入 f。
func (v *Value) SetFloat64(f float64) {
	if i, ok := integral(f); ok {
		v.SetInt(i)
		return
	}
	if v.readonly {
		return
	}
	v.Release()
	if math.Abs(f-float64(float32(f))) <= floatTolerance {
		v.typ = TypeFloat32
		v.f32 = float32(f)
		return
	}
	v.typ = TypeFloat64
	v.f64 = f
}

// SetFloat32 按浮点规则写入 f，非整数值总是以 float32 保存。
func (v *Value) SetFloat32(f float32) {
	if i, ok := integral(float64(f)); ok {
		v.SetInt(i)
		return
	}
	if v.readonly {
		return
	}
	v.Release()
	v.typ = TypeFloat32
	v.f32 = f
}

// integral 报告 f 是否为 int64 可表示的整数值。NaN 与 ±Inf 不是。
func integral(f float64) (int64, bool) {
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// Int 将 v 作为有符号整数读取。浮点数向零截断，非数值类型为 0。
func (v *Value) Int() int64 {
	switch v.typ {
	case TypeVarint:
		return int64(v.num)
	case TypeSvarint:
		return -int64(v.num)
	case TypeOne, TypeTrue:
		return 1
	case TypeFloat32:
		return int64(v.f32)
	case TypeFloat64:
		return int64(v.f64)
	default:
		return 0
	}
}

// Uint 将 v 作为无符号整数读取，负数按补码回绕。
func (v *Value) Uint() uint64 {
	if v.typ == TypeVarint {
		return v.num
	}
	return uint64(v.Int())
}

// Float 将 v 作为双精度浮点数读取，非数值类型为 0。
func (v *Value) Float() float64 {
	switch v.typ {
	case TypeFloat32:
		return float64(v.f32)
	case TypeFloat64:
		return v.f64
	case TypeVarint:
		return float64(v.num)
	case TypeSvarint:
		return -float64(v.num)
	case TypeOne, TypeTrue:
		return 1
	default:
		return 0
	}
}

// Float32 将 v 作为单精度浮点数读取。
func (v *Value) Float32() float32 {
	if v.typ == TypeFloat32 {
		return v.f32
	}
	return float32(v.Float())
}

// Magnitude 返回整数类型保存的绝对值，用于按线格式检查数值。
func (v *Value) Magnitude() uint64 {
	return v.num
}

// IntOr 在 v 不是数值或布尔时返回 def。
func (v *Value) IntOr(def int64) int64 {
	if !v.IsNumber() && !v.IsBool() {
		return def
	}
	return v.Int()
}

// UintOr 在 v 不是数值或布尔时返回 def。
func (v *Value) UintOr(def uint64) uint64 {
	if !v.IsNumber() && !v.IsBool() {
		return def
	}
	return v.Uint()
}

// FloatOr 在 v 不是数值或布尔时返回 def。
func (v *Value) FloatOr(def float64) float64 {
	if !v.IsNumber() && !v.IsBool() {
		return def
	}
	return v.Float()
}

// StrOr 在 v 不是字符串时返回 def。
func (v *Value) StrOr(def string) string {
	if v.typ != TypeString {
		return def
	}
	return v.Str()
}

// Get 按数值类型 T 读取 v。
func Get[T Number](v *Value) T {
	if T(1)/2 != 0 {
		return T(v.Float())
	}
	var zero T
	if zero-1 < 0 {
		return T(v.Int())
	}
	return T(v.Uint())
}

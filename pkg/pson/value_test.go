package pson

import (
	"math"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/suite"

	"github.com/lk2023060901/pson-go/pkg/util/merr"
)

type ValueSuite struct {
	suite.Suite
}

func (s *ValueSuite) TestZeroValueIsNull() {
	var v Value
	s.True(v.IsNull())
	s.Equal(TypeNull, v.Type())
	s.Equal("null", v.String())
}

func (s *ValueSuite) TestIntegerRule() {
	cases := []struct {
		in   int64
		typ  Type
		want uint64
	}{
		{0, TypeZero, 0},
		{1, TypeOne, 0},
		{2, TypeVarint, 2},
		{300, TypeVarint, 300},
		{-1, TypeSvarint, 1},
		{-300, TypeSvarint, 300},
		{math.MinInt64, TypeSvarint, 1 << 63},
	}
	for _, c := range cases {
		var v Value
		v.SetInt(c.in)
		s.Equal(c.typ, v.Type(), "input %d", c.in)
		s.Equal(c.want, v.Magnitude(), "input %d", c.in)
		s.Equal(c.in, v.Int(), "input %d", c.in)
	}

	var v Value
	v.SetUint(math.MaxUint64)
	s.Equal(TypeVarint, v.Type())
	s.Equal(uint64(math.MaxUint64), v.Uint())
}

func (s *ValueSuite) TestFloatRule() {
	var v Value

	v.SetFloat64(3.0)
	s.Equal(TypeVarint, v.Type())
	s.EqualValues(3, v.Int())

	v.SetFloat64(-1.0)
	s.Equal(TypeSvarint, v.Type())

	v.SetFloat64(0)
	s.Equal(TypeZero, v.Type())

	v.SetFloat64(1.5)
	s.Equal(TypeFloat32, v.Type())
	s.Equal(float32(1.5), v.Float32())

	v.SetFloat64(0.1)
	s.Equal(TypeFloat32, v.Type())

	v.SetFloat64(555.66)
	s.Equal(TypeFloat64, v.Type())
	s.Equal(555.66, v.Float())

	v.SetFloat64(math.NaN())
	s.True(v.Type() == TypeFloat32 || v.Type() == TypeFloat64)
	s.True(math.IsNaN(v.Float()))

	v.SetFloat64(math.Inf(1))
	s.True(math.IsInf(v.Float(), 1))

	v.SetFloat64(1e19)
	s.Equal(TypeFloat64, v.Type())

	v.SetFloat32(2.25)
	s.Equal(TypeFloat32, v.Type())
	v.SetFloat32(8)
	s.Equal(TypeVarint, v.Type())
}

func (s *ValueSuite) TestGenericSet() {
	var v Value

	Set(&v, int8(-3))
	s.Equal(TypeSvarint, v.Type())
	s.EqualValues(-3, Get[int8](&v))

	Set(&v, uint16(1))
	s.Equal(TypeOne, v.Type())

	Set(&v, float64(2))
	s.Equal(TypeVarint, v.Type())
	s.EqualValues(2, Get[uint32](&v))

	type celsius float32
	Set(&v, celsius(21.5))
	s.Equal(TypeFloat32, v.Type())
	s.Equal(celsius(21.5), Get[celsius](&v))
}

func (s *ValueSuite) TestNumericReads() {
	var v Value
	v.SetBool(true)
	s.EqualValues(1, v.Int())
	s.Equal(1.0, v.Float())
	s.True(v.Bool())

	v.SetBool(false)
	s.EqualValues(0, v.Int())
	s.False(v.Bool())

	v.SetInt(-7)
	s.Equal(-7.0, v.Float())
	s.True(v.Bool())

	_ = v.SetString("x")
	s.EqualValues(0, v.Int())
	s.EqualValues(42, v.IntOr(42))
	s.Equal(2.5, v.FloatOr(2.5))
	s.Equal("x", v.StrOr("y"))
	s.True(v.BoolOr(true))
}

func (s *ValueSuite) TestStringAndBytes() {
	var v Value
	s.Require().NoError(v.SetString("hello"))
	s.True(v.IsString())
	s.Equal("hello", v.Str())
	s.Nil(v.Bytes())
	s.Equal(5, v.Len())

	s.Require().NoError(v.SetBytes([]byte{0, 1, 2}))
	s.True(v.IsBytes())
	s.Equal([]byte{0, 1, 2}, v.Bytes())
	s.Equal("", v.Str())

	s.Require().NoError(v.SetString(""))
	s.True(v.IsString())
	s.Equal("", v.Str())
}

func (s *ValueSuite) TestAllocationFailureLeavesNull() {
	h := NewHeapAllocator(4)
	v := NewValue(h)
	err := v.SetString("hello")
	s.True(errors.Is(err, merr.ErrAllocOutOfMemory))
	s.True(v.IsNull())
}

func (s *ValueSuite) TestReleaseReturnsBlocks() {
	h := NewHeapAllocator(0)
	v := NewValue(h)
	s.Require().NoError(v.GetOrCreate("name").SetString("sensor-1"))
	s.Require().NoError(v.GetOrCreate("blob").SetBytes(make([]byte, 16)))
	arr := v.GetOrCreate("tags").EnsureArray()
	s.Require().NoError(arr.Add().SetString("a"))
	s.Equal(25, h.Stats().Live)

	v.Release()
	s.True(v.IsNull())
	s.Equal(0, h.Stats().Live)

	// 重复释放不会再次归还
	v.Release()
	s.Equal(0, h.Stats().Live)
}

func (s *ValueSuite) TestOverwriteReleasesPrevious() {
	h := NewHeapAllocator(0)
	v := NewValue(h)
	s.Require().NoError(v.SetString("abcd"))
	v.SetInt(5)
	s.Equal(0, h.Stats().Live)

	s.Require().NoError(v.SetString("abcd"))
	v.EnsureObject()
	s.Equal(0, h.Stats().Live)
}

func (s *ValueSuite) TestEmptyIgnoresWrites() {
	var root Value
	missing := root.Get("nope")
	s.True(missing.IsEmpty())
	s.True(missing.IsNull())

	missing.SetInt(5)
	s.NoError(missing.SetString("x"))
	missing.GetOrCreate("child").SetInt(1)
	missing.Add().SetInt(1)
	s.True(Empty().IsNull())
	s.Equal(0, Empty().Len())
}

func (s *ValueSuite) TestCompositeCoercion() {
	var v Value
	v.SetInt(9)
	obj := v.EnsureObject()
	s.True(v.IsObject())
	s.Same(obj, v.EnsureObject())

	_, ok := v.AsArray()
	s.False(ok)
	got, ok := v.AsObject()
	s.True(ok)
	s.Same(obj, got)

	arr := v.EnsureArray()
	s.True(v.IsArray())
	s.Equal(0, arr.Len())
	_, ok = v.AsObject()
	s.False(ok)
}

func (s *ValueSuite) TestChildInheritsAllocator() {
	r := NewRingAllocator(64)
	v := NewValue(r)
	child := v.GetOrCreate("a")
	s.Same(r, child.Allocator())
	s.Same(r, child.Add().Allocator())
}

func (s *ValueSuite) TestEqual() {
	build := func() *Value {
		var v Value
		v.GetOrCreate("n").SetInt(-12)
		v.GetOrCreate("f").SetFloat64(555.66)
		_ = v.GetOrCreate("s").SetString("x")
		arr := v.GetOrCreate("a").EnsureArray()
		arr.Add().SetBool(true)
		arr.Add()
		return &v
	}
	a, b := build(), build()
	s.True(Equal(a, b))

	b.Get("a").At(1).SetInt(1)
	s.False(Equal(a, b))
}

func TestValue(t *testing.T) {
	suite.Run(t, new(ValueSuite))
}

package pson

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Type 为值的运行时类型，直接作为线格式 tag 中的 field number 传输。
// 编码空间为 4 bit（0-15），其中 13-15 目前未定义。
type Type uint8

const (
	TypeNull Type = iota
	TypeVarint
	TypeSvarint
	TypeFloat32
	TypeFloat64
	TypeTrue
	TypeFalse
	TypeZero
	TypeOne
	TypeString
	TypeBytes
	TypeObject
	TypeArray
)

var typeNames = [...]string{
	TypeNull:    "null",
	TypeVarint:  "varint",
	TypeSvarint: "svarint",
	TypeFloat32: "float32",
	TypeFloat64: "float64",
	TypeTrue:    "true",
	TypeFalse:   "false",
	TypeZero:    "zero",
	TypeOne:     "one",
	TypeString:  "string",
	TypeBytes:   "bytes",
	TypeObject:  "object",
	TypeArray:   "array",
}

// Known 表示该类型是否为当前版本定义的类型。
func (t Type) Known() bool {
	return t <= TypeArray
}

func (t Type) String() string {
	if t.Known() {
		return typeNames[t]
	}
	return fmt.Sprintf("unknown(%d)", uint8(t))
}

// WireKind 为 tag 低 3 位表示的载荷帧格式，与 protobuf wire type 一致。
type WireKind uint8

const (
	WireVarint          = WireKind(protowire.VarintType)
	WireFixed64         = WireKind(protowire.Fixed64Type)
	WireLengthDelimited = WireKind(protowire.BytesType)
	WireFixed32         = WireKind(protowire.Fixed32Type)
)

func (k WireKind) String() string {
	switch k {
	case WireVarint:
		return "varint"
	case WireFixed64:
		return "fixed64"
	case WireLengthDelimited:
		return "length-delimited"
	case WireFixed32:
		return "fixed32"
	default:
		return fmt.Sprintf("wire(%d)", uint8(k))
	}
}

// WireKind 返回该类型编码时使用的载荷帧格式。
// 零载荷类型（null/true/false/zero/one）与整数一样使用 varint 帧。
func (t Type) WireKind() WireKind {
	switch t {
	case TypeFloat32:
		return WireFixed32
	case TypeFloat64:
		return WireFixed64
	case TypeString, TypeBytes, TypeObject, TypeArray:
		return WireLengthDelimited
	default:
		return WireVarint
	}
}

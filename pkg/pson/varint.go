package pson

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// maxVarintLen 为 64 位整数 varint 编码的最大字节数。
const maxVarintLen = 10

// SizeVarint 返回 v 的 varint 编码字节数，至少为 1。
func SizeVarint(v uint64) int {
	return protowire.SizeVarint(v)
}

// AppendVarint 将 v 的 varint 编码追加到 b。
func AppendVarint(b []byte, v uint64) []byte {
	return protowire.AppendVarint(b, v)
}

// ConsumeVarint 从 b 的开头解析一个 varint，返回值与消耗的字节数。
// 数据不完整或溢出时 n < 0。
func ConsumeVarint(b []byte) (v uint64, n int) {
	return protowire.ConsumeVarint(b)
}

// makeTag 按 (type << 3) | wire 组合 tag。
func makeTag(t Type, k WireKind) uint64 {
	return protowire.EncodeTag(protowire.Number(t), protowire.Type(k))
}

// splitTag 将 tag 拆分为类型与帧格式。
func splitTag(tag uint64) (Type, WireKind, bool) {
	num, typ := protowire.DecodeTag(tag)
	if uint64(num) > 0xff {
		return 0, WireKind(typ), false
	}
	return Type(num), WireKind(typ), true
}

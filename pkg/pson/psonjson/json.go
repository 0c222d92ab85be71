// Package psonjson 在 PSON 值树与 JSON 文本之间转换，成员顺序保持不变。
//
// 字节数组输出为标准 base64 字符串；读入 JSON 时整数按整数规则保存，
// 其余数值按浮点规则保存。
package psonjson

import (
	"bytes"
	"encoding/base64"
	"io"
	"math"
	"strconv"

	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"

	"github.com/lk2023060901/pson-go/pkg/pson"
	"github.com/lk2023060901/pson-go/pkg/util/merr"
)

var (
	compact  = jsoniter.Config{EscapeHTML: false}.Froze()
	indented = jsoniter.Config{EscapeHTML: false, IndentionStep: 2}.Froze()
)

// Encode 将 v 以 JSON 文本写入 w。
func Encode(w io.Writer, v *pson.Value) error {
	return encode(compact, w, v)
}

// EncodeIndent 与 Encode 相同，但使用两个空格缩进。
func EncodeIndent(w io.Writer, v *pson.Value) error {
	return encode(indented, w, v)
}

// Marshal 返回 v 的 JSON 文本。
func Marshal(v *pson.Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encode(api jsoniter.API, w io.Writer, v *pson.Value) error {
	stream := jsoniter.NewStream(api, w, 512)
	writeValue(stream, v)
	if stream.Error != nil {
		return stream.Error
	}
	return stream.Flush()
}

func writeValue(stream *jsoniter.Stream, v *pson.Value) {
	switch v.Type() {
	case pson.TypeTrue:
		stream.WriteTrue()
	case pson.TypeFalse:
		stream.WriteFalse()
	case pson.TypeZero, pson.TypeOne, pson.TypeVarint:
		stream.WriteUint64(v.Uint())
	case pson.TypeSvarint:
		if v.Magnitude() > 1<<63 {
			// 超出 int64 的负数只能以浮点形式表示
			stream.WriteFloat64(-float64(v.Magnitude()))
			return
		}
		stream.WriteInt64(v.Int())
	case pson.TypeFloat32:
		f := v.Float32()
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			stream.WriteNil()
			return
		}
		stream.WriteFloat32(f)
	case pson.TypeFloat64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			stream.WriteNil()
			return
		}
		stream.WriteFloat64(f)
	case pson.TypeString:
		stream.WriteString(v.Str())
	case pson.TypeBytes:
		stream.WriteString(base64.StdEncoding.EncodeToString(v.Bytes()))
	case pson.TypeObject:
		obj, _ := v.AsObject()
		stream.WriteObjectStart()
		first := true
		obj.Range(func(name string, child *pson.Value) bool {
			if !first {
				stream.WriteMore()
			}
			first = false
			stream.WriteObjectField(name)
			writeValue(stream, child)
			return true
		})
		stream.WriteObjectEnd()
	case pson.TypeArray:
		arr, _ := v.AsArray()
		stream.WriteArrayStart()
		arr.Range(func(i int, child *pson.Value) bool {
			if i > 0 {
				stream.WriteMore()
			}
			writeValue(stream, child)
			return true
		})
		stream.WriteArrayEnd()
	default:
		stream.WriteNil()
	}
}

// Decode 解析 JSON 文本 data 并写入 v，v 原有内容会被释放。
func Decode(data []byte, v *pson.Value) error {
	v.Release()
	iter := jsoniter.ParseBytes(compact, data)
	d := &decoder{iter: iter}
	d.readValue(v, 0)
	if d.err != nil {
		return d.err
	}
	if iter.Error != nil && !errors.Is(iter.Error, io.EOF) {
		return merr.WrapErrParameterInvalidMsg("invalid json: %s", iter.Error.Error())
	}
	return nil
}

// DecodeReader 从 r 读取全部 JSON 文本后调用 Decode。
func DecodeReader(r io.Reader, v *pson.Value) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return Decode(data, v)
}

type decoder struct {
	iter *jsoniter.Iterator
	err  error
}

func (d *decoder) fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

func (d *decoder) readValue(v *pson.Value, depth int) {
	if d.err != nil || d.iter.Error != nil {
		return
	}
	switch d.iter.WhatIsNext() {
	case jsoniter.NilValue:
		d.iter.ReadNil()
		v.SetNull()
	case jsoniter.BoolValue:
		v.SetBool(d.iter.ReadBool())
	case jsoniter.NumberValue:
		d.readNumber(v, string(d.iter.ReadNumber()))
	case jsoniter.StringValue:
		if err := v.SetString(d.iter.ReadString()); err != nil {
			d.fail(err)
		}
	case jsoniter.ArrayValue:
		if depth >= pson.DefaultMaxDepth {
			d.fail(merr.WrapErrParameterInvalidMsg("json nested deeper than %d", pson.DefaultMaxDepth))
			return
		}
		arr := v.EnsureArray()
		for d.iter.ReadArray() {
			d.readValue(arr.Add(), depth+1)
			if d.err != nil {
				return
			}
		}
	case jsoniter.ObjectValue:
		if depth >= pson.DefaultMaxDepth {
			d.fail(merr.WrapErrParameterInvalidMsg("json nested deeper than %d", pson.DefaultMaxDepth))
			return
		}
		obj := v.EnsureObject()
		d.iter.ReadObjectCB(func(_ *jsoniter.Iterator, field string) bool {
			d.readValue(obj.Append(field), depth+1)
			return d.err == nil
		})
	default:
		d.fail(merr.WrapErrParameterInvalidMsg("unexpected json token"))
	}
}

func (d *decoder) readNumber(v *pson.Value, text string) {
	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		v.SetInt(i)
		return
	}
	if u, err := strconv.ParseUint(text, 10, 64); err == nil {
		v.SetUint(u)
		return
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		d.fail(merr.WrapErrParameterInvalidMsg("invalid json number %q", text))
		return
	}
	v.SetFloat64(f)
}

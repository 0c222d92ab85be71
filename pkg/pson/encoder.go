package pson

import (
	"io"
	"math"

	"github.com/valyala/bytebufferpool"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/lk2023060901/pson-go/pkg/metrics"
	"github.com/lk2023060901/pson-go/pkg/util/merr"
)

// DefaultMaxDepth 为编解码允许的默认最大嵌套层数。
const DefaultMaxDepth = 64

// Strategy 决定对象与数组子消息长度的计算方式。
type Strategy int

const (
	// StrategyTwoPass 先用计数编码器计算子消息长度，再正式写出。
	StrategyTwoPass Strategy = iota
	// StrategyBuffered 将子消息编码到池化缓冲区，再连同长度一起写出。
	StrategyBuffered
)

func (s Strategy) String() string {
	if s == StrategyBuffered {
		return "buffered"
	}
	return "two_pass"
}

// ParseStrategy 解析配置中的策略名，空串为 StrategyTwoPass。
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "", "two_pass":
		return StrategyTwoPass, nil
	case "buffered":
		return StrategyBuffered, nil
	default:
		return StrategyTwoPass, merr.WrapErrParameterInvalid("two_pass|buffered", name, "encoder strategy")
	}
}

// EncoderOptions 为编码器配置，零值可用。
type EncoderOptions struct {
	Strategy Strategy
	// MaxDepth <= 0 时使用 DefaultMaxDepth。
	MaxDepth int
}

func (o EncoderOptions) maxDepth() int {
	if o.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return o.MaxDepth
}

// Encoder 将值树写入 io.Writer。w 为 nil 时只计数不写出。
type Encoder struct {
	w       io.Writer
	opts    EncoderOptions
	written int64
	scratch []byte
}

// NewEncoder 使用默认配置创建编码器。
func NewEncoder(w io.Writer) *Encoder {
	return NewEncoderWithOptions(w, EncoderOptions{})
}

func NewEncoderWithOptions(w io.Writer, opts EncoderOptions) *Encoder {
	return &Encoder{
		w:       w,
		opts:    opts,
		scratch: make([]byte, 0, 2*maxVarintLen),
	}
}

// BytesWritten 返回自创建以来写出（或计数）的总字节数。
func (e *Encoder) BytesWritten() int64 {
	return e.written
}

// Encode 编码 v，返回本次写出的字节数。
// 写入失败时返回已写出的字节数与错误。
func (e *Encoder) Encode(v *Value) (int64, error) {
	start := e.written
	err := e.encodeValue(v, 0)
	n := e.written - start
	if e.w != nil {
		metrics.EncodedBytes.WithLabelValues(e.opts.Strategy.String()).Add(float64(n))
		if err == nil {
			metrics.DocumentSize.Observe(float64(n))
		}
	}
	return n, err
}

func (e *Encoder) write(p []byte) error {
	if e.w == nil {
		e.written += int64(len(p))
		return nil
	}
	n, err := e.w.Write(p)
	e.written += int64(n)
	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return merr.WrapErrEncodeWriteFailed(e.written, err)
	}
	return nil
}

// writeHeader 写出 tag 以及可选的 varint 载荷（长度或整数）。
func (e *Encoder) writeHeader(t Type, k WireKind, withVarint bool, x uint64) error {
	b := protowire.AppendVarint(e.scratch[:0], makeTag(t, k))
	if withVarint {
		b = protowire.AppendVarint(b, x)
	}
	return e.write(b)
}

func (e *Encoder) encodeValue(v *Value, depth int) error {
	switch v.typ {
	case TypeTrue, TypeFalse, TypeZero, TypeOne:
		return e.writeHeader(v.typ, WireVarint, false, 0)
	case TypeVarint, TypeSvarint:
		return e.writeHeader(v.typ, WireVarint, true, v.num)
	case TypeFloat32:
		b := protowire.AppendVarint(e.scratch[:0], makeTag(TypeFloat32, WireFixed32))
		return e.write(protowire.AppendFixed32(b, math.Float32bits(v.f32)))
	case TypeFloat64:
		b := protowire.AppendVarint(e.scratch[:0], makeTag(TypeFloat64, WireFixed64))
		return e.write(protowire.AppendFixed64(b, math.Float64bits(v.f64)))
	case TypeString, TypeBytes:
		if err := e.writeHeader(v.typ, WireLengthDelimited, true, uint64(len(v.buf))); err != nil {
			return err
		}
		return e.write(v.buf)
	case TypeObject, TypeArray:
		if depth >= e.opts.maxDepth() {
			return merr.WrapErrEncodeTooDeep(e.opts.maxDepth())
		}
		if e.opts.Strategy == StrategyBuffered {
			return e.encodeBuffered(v, depth)
		}
		return e.encodeTwoPass(v, depth)
	default:
		return e.writeHeader(TypeNull, WireVarint, false, 0)
	}
}

func (e *Encoder) encodeTwoPass(v *Value, depth int) error {
	counter := &Encoder{opts: e.opts, scratch: make([]byte, 0, 2*maxVarintLen)}
	if err := counter.encodeChildren(v, depth+1); err != nil {
		return err
	}
	if err := e.writeHeader(v.typ, WireLengthDelimited, true, uint64(counter.written)); err != nil {
		return err
	}
	// 只计数时子树已经数过一遍，不再重复，否则嵌套每深一层耗时翻倍。
	if e.w == nil {
		e.written += counter.written
		return nil
	}
	return e.encodeChildren(v, depth+1)
}

func (e *Encoder) encodeBuffered(v *Value, depth int) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	sub := &Encoder{w: buf, opts: e.opts, scratch: make([]byte, 0, 2*maxVarintLen)}
	if err := sub.encodeChildren(v, depth+1); err != nil {
		return err
	}
	if err := e.writeHeader(v.typ, WireLengthDelimited, true, uint64(buf.Len())); err != nil {
		return err
	}
	return e.write(buf.B)
}

// encodeChildren 写出容器的内容（不含外层 tag 与长度）。
// 对象成员为 varint(名称长度) + 名称 + 编码后的值，名称前没有 tag。
func (e *Encoder) encodeChildren(v *Value, depth int) error {
	switch v.typ {
	case TypeObject:
		for _, p := range v.obj.pairs.items {
			b := protowire.AppendVarint(e.scratch[:0], uint64(len(p.name)))
			if err := e.write(b); err != nil {
				return err
			}
			if err := e.writeString(p.name); err != nil {
				return err
			}
			if err := e.encodeValue(&p.value, depth); err != nil {
				return err
			}
		}
	case TypeArray:
		for _, item := range v.arr.items.items {
			if err := e.encodeValue(item, depth); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Encoder) writeString(s string) error {
	if e.w == nil {
		e.written += int64(len(s))
		return nil
	}
	if sw, ok := e.w.(io.StringWriter); ok {
		n, err := sw.WriteString(s)
		e.written += int64(n)
		if err == nil && n < len(s) {
			err = io.ErrShortWrite
		}
		if err != nil {
			return merr.WrapErrEncodeWriteFailed(e.written, err)
		}
		return nil
	}
	return e.write([]byte(s))
}

// Size 返回 v 编码后的字节数。嵌套超过默认深度时返回 -1。
func Size(v *Value) int {
	counter := NewEncoder(nil)
	if err := counter.encodeValue(v, 0); err != nil {
		return -1
	}
	return int(counter.written)
}

// Marshal 将 v 编码为字节切片。
func Marshal(v *Value) ([]byte, error) {
	return MarshalWithOptions(v, EncoderOptions{})
}

func MarshalWithOptions(v *Value, opts EncoderOptions) ([]byte, error) {
	counter := NewEncoderWithOptions(nil, opts)
	if err := counter.encodeValue(v, 0); err != nil {
		return nil, err
	}
	w := &sliceWriter{buf: make([]byte, 0, counter.written)}
	if _, err := NewEncoderWithOptions(w, opts).Encode(v); err != nil {
		return nil, err
	}
	return w.buf, nil
}

// AppendMarshal 将 v 的编码追加到 dst 之后。
func AppendMarshal(dst []byte, v *Value) ([]byte, error) {
	w := &sliceWriter{buf: dst}
	if _, err := NewEncoder(w).Encode(v); err != nil {
		return dst, err
	}
	return w.buf, nil
}

type sliceWriter struct {
	buf []byte
}

func (w *sliceWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

func (w *sliceWriter) WriteString(s string) (int, error) {
	w.buf = append(w.buf, s...)
	return len(s), nil
}

package pson

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/lk2023060901/pson-go/pkg/log"
	"github.com/lk2023060901/pson-go/pkg/metrics"
	"github.com/lk2023060901/pson-go/pkg/util/merr"
)

// DecoderOptions 为解码器配置，零值可用。
type DecoderOptions struct {
	// MaxDepth <= 0 时使用 DefaultMaxDepth。
	MaxDepth int
	// MaxLength 限制单个长度前缀声明的字节数，0 表示不限制。
	MaxLength uint64
	// Allocator 非空时覆盖目标值的分配器。
	Allocator Allocator
}

func (o DecoderOptions) maxDepth() int {
	if o.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return o.MaxDepth
}

// chunkSize 为无法得知剩余长度的 source 上单次读取载荷的上限，
// 内存占用随实际到达的字节增长，而不是随声明的长度。
const chunkSize = 64 << 10

// lener 由 bytes.Reader、bytes.Buffer、strings.Reader 等实现，返回未读字节数。
type lener interface {
	Len() int
}

// Decoder 从 io.Reader 读取并解码值树。
type Decoder struct {
	r    io.Reader
	br   io.ByteReader
	lr   lener
	opts DecoderOptions
	read int64
	buf  [8]byte
}

// NewDecoder 使用默认配置创建解码器。
func NewDecoder(r io.Reader) *Decoder {
	return NewDecoderWithOptions(r, DecoderOptions{})
}

func NewDecoderWithOptions(r io.Reader, opts DecoderOptions) *Decoder {
	d := &Decoder{r: r, opts: opts}
	if br, ok := r.(io.ByteReader); ok {
		d.br = br
	}
	if lr, ok := r.(lener); ok {
		d.lr = lr
	}
	return d
}

// BytesRead 返回自创建以来从 source 消耗的总字节数。
func (d *Decoder) BytesRead() int64 {
	return d.read
}

// Decode 解码一个值到 v，返回本次消耗的字节数。
//
// v 原有内容会先被释放。source 在第一个字节前即已耗尽时返回 io.EOF。
// 解码失败时 v 保留已经构建的部分值树。
// 顶层为未知类型时 v 为 null。
func (d *Decoder) Decode(v *Value) (int64, error) {
	if v.readonly {
		return 0, merr.WrapErrParameterInvalidMsg("cannot decode into the shared empty value")
	}
	v.Release()
	if d.opts.Allocator != nil {
		v.alloc = d.opts.Allocator
	}

	start := d.read
	_, err := d.decodeValue(v, 0)
	n := d.read - start
	metrics.DecodedBytes.Add(float64(n))
	if err != nil {
		if n == 0 && errors.Is(err, io.EOF) {
			return 0, io.EOF
		}
		metrics.DecodeFailures.WithLabelValues(failureReason(err)).Inc()
		return n, err
	}
	return n, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, merr.ErrDecodeTruncated):
		return "truncated"
	case errors.Is(err, merr.ErrDecodeVarintOverflow):
		return "varint_overflow"
	case errors.Is(err, merr.ErrDecodeLengthMismatch):
		return "length_mismatch"
	case errors.Is(err, merr.ErrDecodeTooDeep):
		return "too_deep"
	case errors.Is(err, merr.ErrDecodeTooLarge):
		return "too_large"
	case errors.Is(err, merr.ErrAllocOutOfMemory), errors.Is(err, merr.ErrAllocBlockTooLarge):
		return "allocation"
	default:
		return "other"
	}
}

func (d *Decoder) readByte() (byte, error) {
	if d.br != nil {
		b, err := d.br.ReadByte()
		if err != nil {
			return 0, err
		}
		d.read++
		return b, nil
	}
	n, err := io.ReadFull(d.r, d.buf[:1])
	d.read += int64(n)
	if err != nil {
		return 0, err
	}
	return d.buf[0], nil
}

func (d *Decoder) readFull(p []byte, what string) error {
	n, err := io.ReadFull(d.r, p)
	d.read += int64(n)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return merr.WrapErrDecodeTruncated(d.read, what)
		}
		return err
	}
	return nil
}

// readVarint 读取一个 LEB128 varint。
// 首字节前即遇到 EOF 时原样返回 io.EOF，由调用方决定其含义。
func (d *Decoder) readVarint(what string) (uint64, error) {
	var x uint64
	for i := 0; i < maxVarintLen; i++ {
		b, err := d.readByte()
		if err != nil {
			if i == 0 && errors.Is(err, io.EOF) {
				return 0, io.EOF
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return 0, merr.WrapErrDecodeTruncated(d.read, what)
			}
			return 0, err
		}
		if i == maxVarintLen-1 && b > 1 {
			return 0, merr.WrapErrDecodeVarintOverflow(d.read)
		}
		x |= uint64(b&0x7f) << (7 * i)
		if b < 0x80 {
			return x, nil
		}
	}
	return 0, merr.WrapErrDecodeVarintOverflow(d.read)
}

// mustVarint 与 readVarint 相同，但把任何 EOF 都视为截断。
func (d *Decoder) mustVarint(what string) (uint64, error) {
	x, err := d.readVarint(what)
	if errors.Is(err, io.EOF) {
		return 0, merr.WrapErrDecodeTruncated(d.read, what)
	}
	return x, err
}

func (d *Decoder) readLength(what string) (uint64, error) {
	n, err := d.mustVarint(what)
	if err != nil {
		return 0, err
	}
	if d.opts.MaxLength > 0 && n > d.opts.MaxLength {
		return 0, merr.WrapErrDecodeTooLarge(d.read, n, d.opts.MaxLength)
	}
	return n, nil
}

// ensureAvailable 在 source 能报告剩余长度时，拒绝超过剩余字节数的声明长度。
// 剩余字节会被消耗掉，使消耗的字节数与逐字节读到末尾时一致。
func (d *Decoder) ensureAvailable(n uint64, what string) error {
	if d.lr == nil {
		return nil
	}
	left := d.lr.Len()
	if n <= uint64(left) {
		return nil
	}
	if err := d.skip(uint64(left), what); err != nil {
		return err
	}
	return merr.WrapErrDecodeTruncated(d.read, what)
}

// readChunked 读取 n 字节载荷到新的切片，每次最多读 chunkSize 字节。
func (d *Decoder) readChunked(n uint64, what string) ([]byte, error) {
	if err := d.ensureAvailable(n, what); err != nil {
		return nil, err
	}
	if n <= chunkSize {
		p := make([]byte, n)
		if err := d.readFull(p, what); err != nil {
			return nil, err
		}
		return p, nil
	}
	var buf bytes.Buffer
	for remain := n; remain > 0; {
		step := min(remain, chunkSize)
		copied, err := buf.ReadFrom(io.LimitReader(d.r, int64(step)))
		d.read += copied
		if err != nil {
			return nil, err
		}
		if uint64(copied) < step {
			return nil, merr.WrapErrDecodeTruncated(d.read, what)
		}
		remain -= step
	}
	return buf.Bytes(), nil
}

func (d *Decoder) skip(n uint64, what string) error {
	copied, err := io.CopyN(io.Discard, d.r, int64(n))
	d.read += copied
	if err != nil {
		if errors.Is(err, io.EOF) {
			return merr.WrapErrDecodeTruncated(d.read, what)
		}
		return err
	}
	return nil
}

// decodeValue 解码一个带 tag 的值到 v。返回 false 表示遇到未知类型，v 保持为 null。
func (d *Decoder) decodeValue(v *Value, depth int) (bool, error) {
	tag, err := d.readVarint("tag")
	if err != nil {
		return false, err
	}
	t, kind, ok := splitTag(tag)

	if kind == WireLengthDelimited {
		length, err := d.readLength("length")
		if err != nil {
			return false, err
		}
		if !ok {
			return false, d.skipUnknown(t, kind, length)
		}
		switch t {
		case TypeString, TypeBytes:
			return true, d.decodeBlock(v, t, length)
		case TypeObject, TypeArray:
			if depth >= d.opts.maxDepth() {
				return false, merr.WrapErrDecodeTooDeep(d.read, d.opts.maxDepth())
			}
			return true, d.decodeComposite(v, t, length, depth+1)
		default:
			return false, d.skipUnknown(t, kind, length)
		}
	}

	switch {
	case !ok:
		return false, d.skipUnknown(t, kind, 0)
	case t == TypeVarint || t == TypeSvarint:
		x, err := d.mustVarint(t.String())
		if err != nil {
			return false, err
		}
		v.typ, v.num = t, x
	case t == TypeFloat32:
		if err := d.readFull(d.buf[:4], "float32 payload"); err != nil {
			return false, err
		}
		v.typ, v.f32 = t, math.Float32frombits(binary.LittleEndian.Uint32(d.buf[:4]))
	case t == TypeFloat64:
		if err := d.readFull(d.buf[:8], "float64 payload"); err != nil {
			return false, err
		}
		v.typ, v.f64 = t, math.Float64frombits(binary.LittleEndian.Uint64(d.buf[:8]))
	case t == TypeNull || t == TypeTrue || t == TypeFalse || t == TypeZero || t == TypeOne:
		v.typ = t
	default:
		// 未定义类型或载荷类型与帧格式不匹配，都没有可读的载荷。
		return false, d.skipUnknown(t, kind, 0)
	}
	return true, nil
}

func (d *Decoder) skipUnknown(t Type, kind WireKind, length uint64) error {
	metrics.UnknownTypeSkips.Inc()
	log.RatedDebug(1, "pson: skip unknown value",
		log.FieldType(t.String()),
		zap.Stringer("wire", kind),
		zap.Uint64("length", length),
		log.FieldOffset(d.read))
	if length == 0 {
		return nil
	}
	return d.skip(length, "unknown payload")
}

func (d *Decoder) decodeBlock(v *Value, t Type, length uint64) error {
	if length > math.MaxInt {
		return merr.WrapErrDecodeTooLarge(d.read, length, math.MaxInt)
	}
	what := t.String() + " payload"
	if err := d.ensureAvailable(length, what); err != nil {
		return err
	}
	// 长度未知的 source 上，大载荷先按块读入，确认完整到达后再向分配器申请。
	var staged []byte
	if d.lr == nil && length > chunkSize {
		var err error
		if staged, err = d.readChunked(length, what); err != nil {
			return err
		}
	}
	a := v.Allocator()
	block, err := a.Allocate(int(length))
	if err != nil {
		return err
	}
	if staged != nil {
		copy(block, staged)
	} else if err := d.readFull(block, what); err != nil {
		a.Deallocate(block)
		return err
	}
	v.typ, v.buf, v.alloc = t, block, a
	return nil
}

// decodeComposite 解码对象或数组内容，直到恰好消耗 length 字节。
// 容器先挂到 v 上，失败时已解码的部分仍可访问。
func (d *Decoder) decodeComposite(v *Value, t Type, length uint64, depth int) error {
	start := d.read
	var (
		obj *Object
		arr *Array
	)
	if t == TypeObject {
		obj = newObject(v.alloc)
		v.typ, v.obj = TypeObject, obj
	} else {
		arr = newArray(v.alloc)
		v.typ, v.arr = TypeArray, arr
	}

	for {
		consumed := uint64(d.read - start)
		if consumed == length {
			return nil
		}
		if consumed > length {
			return merr.WrapErrDecodeLengthMismatch(d.read, length, consumed)
		}

		var child *Value
		if obj != nil {
			nameLen, err := d.mustVarint("name length")
			if err != nil {
				return err
			}
			consumed = uint64(d.read - start)
			if consumed > length || nameLen > length-consumed {
				return merr.WrapErrDecodeLengthMismatch(d.read, length, consumed+nameLen)
			}
			name, err := d.readChunked(nameLen, "name")
			if err != nil {
				return err
			}
			child = obj.Append(string(name))
		} else {
			child = arr.Add()
		}

		known, err := d.decodeValue(child, depth)
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = merr.WrapErrDecodeTruncated(d.read, "tag")
			}
			return err
		}
		if !known {
			if obj != nil {
				obj.pairs.pop()
			} else {
				arr.items.pop()
			}
		}
	}
}

// Unmarshal 从 data 解码一个值到 v。
func Unmarshal(data []byte, v *Value) error {
	return UnmarshalWithOptions(data, v, DecoderOptions{})
}

func UnmarshalWithOptions(data []byte, v *Value, opts DecoderOptions) error {
	_, err := NewDecoderWithOptions(bytes.NewReader(data), opts).Decode(v)
	if errors.Is(err, io.EOF) {
		return merr.WrapErrDecodeTruncated(0, "tag")
	}
	return err
}

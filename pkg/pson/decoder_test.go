package pson

import (
	"bytes"
	"io"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/lk2023060901/pson-go/pkg/log"
	"github.com/lk2023060901/pson-go/pkg/util/merr"
)

type DecoderSuite struct {
	suite.Suite

	oldLogger *zap.Logger
	oldProps  *log.ZapProperties
}

// 跳过未知类型等调试日志输出到 testing.T。
func (s *DecoderSuite) SetupSuite() {
	s.oldLogger, s.oldProps = log.L(), log.Props()
	lg, props, err := log.InitTestLogger(s.T(), &log.Config{Level: "debug", DisableStacktrace: true})
	s.Require().NoError(err)
	log.ReplaceGlobals(lg, props)
}

func (s *DecoderSuite) TearDownSuite() {
	log.ReplaceGlobals(s.oldLogger, s.oldProps)
}

func (s *DecoderSuite) decode(data []byte, opts DecoderOptions) (*Value, int64, error) {
	v := NewValue(nil)
	n, err := NewDecoderWithOptions(bytes.NewReader(data), opts).Decode(v)
	return v, n, err
}

func (s *DecoderSuite) TestUnknownSkippedInObject() {
	data := []byte{
		0x5a, 0x09,
		0x01, 'a', 0x6a, 0x02, 0xff, 0xff, // 类型 13，长度前缀载荷
		0x01, 'b', 0x40,
	}
	v, n, err := s.decode(data, DecoderOptions{})
	s.Require().NoError(err)
	s.EqualValues(len(data), n)
	s.Equal(1, v.Len())
	s.True(v.Get("a").IsEmpty())
	s.EqualValues(1, v.Get("b").Int())
}

func (s *DecoderSuite) TestUnknownSkippedInArray() {
	// 类型 14 使用 varint 帧，不读取任何载荷
	data := []byte{0x62, 0x03, 0x38, 0x70, 0x28}
	v, _, err := s.decode(data, DecoderOptions{})
	s.Require().NoError(err)
	s.Equal(2, v.Len())
	s.EqualValues(0, v.At(0).Int())
	s.True(v.At(1).Bool())
}

func (s *DecoderSuite) TestUnknownTopLevelIsNull() {
	v, n, err := s.decode([]byte{0x7a, 0x01, 0x00}, DecoderOptions{})
	s.Require().NoError(err)
	s.EqualValues(3, n)
	s.True(v.IsNull())
}

func (s *DecoderSuite) TestTruncatedPayload() {
	cases := []struct {
		name string
		data []byte
		read int64
	}{
		{"float32", []byte{0x1d}, 1},
		{"float64", []byte{0x21, 0x00, 0x00}, 3},
		{"varint", []byte{0x08}, 1},
		{"varint continuation", []byte{0x08, 0x80}, 2},
		{"string", []byte{0x4a, 0x05, 'h', 'i'}, 4},
		{"length", []byte{0x4a}, 1},
		{"object child", []byte{0x5a, 0x05, 0x01, 'a'}, 4},
		{"unknown payload", []byte{0x6a, 0x04, 0x00}, 3},
	}
	for _, c := range cases {
		_, n, err := s.decode(c.data, DecoderOptions{})
		s.True(errors.Is(err, merr.ErrDecodeTruncated), "%s: %v", c.name, err)
		s.Equal(c.read, n, c.name)
		s.True(merr.IsInputError(err), c.name)
	}
}

func (s *DecoderSuite) TestTruncatedChildKeepsPartialTree() {
	// 外层长度正确，第二个成员的字符串载荷被截断
	data := []byte{0x5a, 0x0a, 0x01, 'a', 0x40, 0x01, 'b', 0x4a, 0x04, 'x', 'y'}
	v, n, err := s.decode(data, DecoderOptions{})
	s.True(errors.Is(err, merr.ErrDecodeTruncated))
	s.EqualValues(len(data), n)
	s.Require().True(v.IsObject())
	s.EqualValues(1, v.Get("a").Int())
	s.True(v.Get("b").IsNull())
}

func (s *DecoderSuite) TestLengthMismatch() {
	data := []byte{0x5a, 0x02, 0x01, 'a', 0x40}
	_, n, err := s.decode(data, DecoderOptions{})
	s.True(errors.Is(err, merr.ErrDecodeLengthMismatch))
	s.EqualValues(5, n)

	// 名称长度超过剩余长度
	_, _, err = s.decode([]byte{0x5a, 0x02, 0x05, 'a', 'b'}, DecoderOptions{})
	s.True(errors.Is(err, merr.ErrDecodeLengthMismatch))
}

func (s *DecoderSuite) TestNameLengthCountsItsOwnVarint() {
	// 名称长度等于外层长度，但长度 varint 本身已占用 1 字节
	data := []byte{0x5a, 0x02, 0x02, 'a', 0x40}
	_, n, err := s.decode(data, DecoderOptions{})
	s.True(errors.Is(err, merr.ErrDecodeLengthMismatch))
	s.EqualValues(3, n)
}

func (s *DecoderSuite) TestHugeDeclaredLength() {
	// 字符串声明 2^40 字节，实际没有载荷
	data := []byte{0x4a, 0x80, 0x80, 0x80, 0x80, 0x80, 0x20}

	var v Value
	err := Unmarshal(data, &v)
	s.True(errors.Is(err, merr.ErrDecodeTruncated))
	s.True(v.IsNull())

	_, n, err := s.decode(data, DecoderOptions{})
	s.True(errors.Is(err, merr.ErrDecodeTruncated))
	s.EqualValues(len(data), n)

	// 无法得知剩余长度的 source 按块读取
	n, err = NewDecoder(struct{ io.Reader }{bytes.NewReader(data)}).Decode(NewValue(nil))
	s.True(errors.Is(err, merr.ErrDecodeTruncated))
	s.EqualValues(len(data), n)

	// 对象成员名声明 2^40 字节
	name := []byte{0x5a, 0x80, 0x80, 0x80, 0x80, 0x80, 0x40, 0x80, 0x80, 0x80, 0x80, 0x80, 0x20, 'x'}
	n, err = NewDecoder(&oneByteReader{data: name}).Decode(NewValue(nil))
	s.True(errors.Is(err, merr.ErrDecodeTruncated))
	s.EqualValues(len(name), n)
}

func (s *DecoderSuite) TestLargePayloadOverPlainReader() {
	src := NewValue(nil)
	payload := bytes.Repeat([]byte("pson"), 3*chunkSize/4+7)
	s.Require().NoError(src.GetOrCreate("blob").SetBytes(payload))
	data, err := Marshal(src)
	s.Require().NoError(err)

	out := NewValue(nil)
	n, err := NewDecoder(struct{ io.Reader }{bytes.NewReader(data)}).Decode(out)
	s.Require().NoError(err)
	s.EqualValues(len(data), n)
	s.Equal(payload, out.Get("blob").Bytes())
}

func (s *DecoderSuite) TestVarintOverflow() {
	data := []byte{0x08, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x02}
	_, n, err := s.decode(data, DecoderOptions{})
	s.True(errors.Is(err, merr.ErrDecodeVarintOverflow))
	s.EqualValues(len(data), n)

	// 十字节且最高位为 1 的最大值合法
	data[len(data)-1] = 0x01
	v, _, err := s.decode(data, DecoderOptions{})
	s.Require().NoError(err)
	s.Equal(uint64(1<<64-1), v.Uint())
}

func (s *DecoderSuite) TestTooDeep() {
	data := []byte{0x62, 0x04, 0x62, 0x02, 0x62, 0x00}
	_, _, err := s.decode(data, DecoderOptions{MaxDepth: 2})
	s.True(errors.Is(err, merr.ErrDecodeTooDeep))

	v, _, err := s.decode(data, DecoderOptions{MaxDepth: 3})
	s.Require().NoError(err)
	s.True(v.At(0).At(0).IsArray())
}

func (s *DecoderSuite) TestTooLarge() {
	_, n, err := s.decode([]byte{0x4a, 0x80, 0x08}, DecoderOptions{MaxLength: 512})
	s.True(errors.Is(err, merr.ErrDecodeTooLarge))
	s.EqualValues(3, n)
}

func (s *DecoderSuite) TestDecodeIntoRingAllocator() {
	r := NewRingAllocator(64)
	var src Value
	_ = src.GetOrCreate("k").SetString("value")
	data, err := Marshal(&src)
	s.Require().NoError(err)

	v := NewValue(nil)
	_, err = NewDecoderWithOptions(bytes.NewReader(data), DecoderOptions{Allocator: r}).Decode(v)
	s.Require().NoError(err)
	s.Equal("value", v.Get("k").Str())
	s.Same(r, v.Get("k").Allocator())
	s.EqualValues(5, r.Stats().Allocated)
}

func (s *DecoderSuite) TestDecodeAllocationFailure() {
	var src Value
	_ = src.SetString("too long for the limit")
	data, err := Marshal(&src)
	s.Require().NoError(err)

	v := NewValue(NewHeapAllocator(4))
	err = UnmarshalWithOptions(data, v, DecoderOptions{})
	s.True(errors.Is(err, merr.ErrAllocOutOfMemory))
	s.True(v.IsNull())
}

func (s *DecoderSuite) TestDecodeReplacesPrevious() {
	h := NewHeapAllocator(0)
	v := NewValue(h)
	s.Require().NoError(v.SetString("stale"))
	s.Require().NoError(Unmarshal([]byte{0x40}, v))
	s.EqualValues(1, v.Int())
	s.Equal(0, h.Stats().Live)
}

func (s *DecoderSuite) TestEmptyInput() {
	err := Unmarshal(nil, NewValue(nil))
	s.True(errors.Is(err, merr.ErrDecodeTruncated))

	_, err = NewDecoder(bytes.NewReader(nil)).Decode(Empty())
	s.True(errors.Is(err, merr.ErrParameterInvalid))
}

// oneByteReader 不实现 io.ByteReader，覆盖逐字节 ReadFull 的路径。
type oneByteReader struct {
	data []byte
}

func (r *oneByteReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	p[0] = r.data[0]
	r.data = r.data[1:]
	return 1, nil
}

func (s *DecoderSuite) TestPlainReader() {
	root := buildSample()
	data, err := Marshal(root)
	s.Require().NoError(err)

	var out Value
	n, err := NewDecoder(&oneByteReader{data: data}).Decode(&out)
	s.Require().NoError(err)
	s.EqualValues(len(data), n)
	s.True(Equal(root, &out))
}

func TestDecoder(t *testing.T) {
	suite.Run(t, new(DecoderSuite))
}

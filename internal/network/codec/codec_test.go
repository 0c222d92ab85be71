package codec

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	crdberrors "github.com/cockroachdb/errors"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/lk2023060901/pson-go/internal/network"
	"github.com/lk2023060901/pson-go/internal/network/compressor"
	"github.com/lk2023060901/pson-go/internal/network/crypto"
	"github.com/lk2023060901/pson-go/internal/network/framer"
	"github.com/lk2023060901/pson-go/internal/network/serializer"
	"github.com/lk2023060901/pson-go/pkg/log"
	"github.com/lk2023060901/pson-go/pkg/pson"
	"github.com/lk2023060901/pson-go/pkg/util/merr"
)

type CodecSuite struct {
	suite.Suite
	ctx context.Context
}

func (s *CodecSuite) SetupSuite() {
	s.ctx = context.Background()
}

func sample(i int) *pson.Value {
	v := pson.NewValue(nil)
	_ = v.GetOrCreate("device").SetString("thermo")
	v.GetOrCreate("seq").SetInt(int64(i))
	arr := v.GetOrCreate("samples").EnsureArray()
	for j := 0; j < 50; j++ {
		arr.Add().SetFloat64(float64(j) + 0.5)
	}
	return v
}

func (s *CodecSuite) newCodec(compress, encrypt bool) Codec {
	opts := Options{EnableCompression: compress, EnableEncryption: encrypt}
	if compress {
		z, err := compressor.NewZstdCompressor()
		s.Require().NoError(err)
		opts.Compressor = z
	}
	if encrypt {
		e, err := crypto.NewAESGCMHMACCodecFromSecret([]byte("stream secret"))
		s.Require().NoError(err)
		opts.Encryptor = e
	}
	c, err := New(opts)
	s.Require().NoError(err)
	return c
}

func (s *CodecSuite) TestStreamRoundTrip() {
	for _, mode := range []struct{ compress, encrypt bool }{
		{false, false}, {true, false}, {false, true}, {true, true},
	} {
		c := s.newCodec(mode.compress, mode.encrypt)
		var buf bytes.Buffer
		for i := 0; i < 3; i++ {
			s.Require().NoError(c.Encode(s.ctx, &buf, sample(i)))
		}

		for i := 0; i < 3; i++ {
			doc, err := c.Decode(s.ctx, &buf)
			s.Require().NoError(err, "%+v", mode)
			s.True(pson.Equal(sample(i), doc.Value))
			s.EqualValues(1, doc.Version.Major)
			s.Equal(mode.compress, doc.Flags&FlagCompressed != 0)
			s.Equal(mode.encrypt, doc.Flags&FlagEncrypted != 0)
			doc.Release()
			doc.Release()
		}

		_, err := c.Decode(s.ctx, &buf)
		s.True(errors.Is(err, io.EOF))
	}
}

func (s *CodecSuite) TestFlagsMismatch() {
	var buf bytes.Buffer
	s.Require().NoError(s.newCodec(true, false).Encode(s.ctx, &buf, sample(0)))
	_, err := s.newCodec(false, false).Decode(s.ctx, &buf)
	s.True(crdberrors.Is(err, merr.ErrStreamFlagsMismatch))

	buf.Reset()
	s.Require().NoError(s.newCodec(false, true).Encode(s.ctx, &buf, sample(0)))
	_, err = s.newCodec(false, false).Decode(s.ctx, &buf)
	s.True(crdberrors.Is(err, merr.ErrStreamFlagsMismatch))
}

func (s *CodecSuite) TestVersionMismatch() {
	var buf bytes.Buffer
	f := framer.NewLengthPrefixedFramer(0)
	s.Require().NoError(f.WriteFrame(&buf, &framer.Frame{Version: 2, Payload: []byte{0x40}}))
	_, err := s.newCodec(false, false).Decode(s.ctx, &buf)
	s.True(crdberrors.Is(err, merr.ErrStreamVersionMismatch))
}

func (s *CodecSuite) TestTamperedFrame() {
	var buf bytes.Buffer
	s.Require().NoError(s.newCodec(false, true).Encode(s.ctx, &buf, sample(0)))
	data := buf.Bytes()
	data[len(data)-1] ^= 0x01
	_, err := s.newCodec(false, true).Decode(s.ctx, bytes.NewReader(data))
	s.True(errors.Is(err, network.ErrDecodeFailed))
	s.True(errors.Is(err, crypto.ErrInvalidMAC))
	s.Equal(network.ErrCodeDecodeFailed, network.ErrorCode(err))
}

func (s *CodecSuite) TestDecodeRaw() {
	var buf bytes.Buffer
	c := s.newCodec(true, false)
	s.Require().NoError(c.Encode(s.ctx, &buf, sample(7)))

	frame, data, err := c.DecodeRaw(s.ctx, &buf)
	s.Require().NoError(err)
	s.Equal(FlagCompressed, frame.Flags)

	out := pson.NewValue(nil)
	s.Require().NoError(pson.Unmarshal(data, out))
	s.True(pson.Equal(sample(7), out))
}

func (s *CodecSuite) TestJSONPayload() {
	c, err := New(Options{Serializer: serializer.JSONSerializer{}})
	s.Require().NoError(err)
	var buf bytes.Buffer
	s.Require().NoError(c.Encode(s.ctx, &buf, sample(1)))
	s.Contains(buf.String(), `"device":"thermo"`)

	doc, err := c.Decode(s.ctx, &buf)
	s.Require().NoError(err)
	defer doc.Release()
	s.True(pson.Equal(sample(1), doc.Value))
}

func (s *CodecSuite) TestExplicitAllocator() {
	h := pson.NewHeapAllocator(0)
	c, err := New(Options{Allocator: h})
	s.Require().NoError(err)
	var buf bytes.Buffer
	s.Require().NoError(c.Encode(s.ctx, &buf, sample(2)))
	doc, err := c.Decode(s.ctx, &buf)
	s.Require().NoError(err)
	s.Equal(6, h.Stats().Live)
	doc.Release()
	s.Equal(0, h.Stats().Live)
}

func (s *CodecSuite) TestBoundLogger() {
	core, logs := observer.New(zapcore.DebugLevel)
	c, err := New(Options{Logger: &log.MLogger{Logger: zap.New(core)}})
	s.Require().NoError(err)

	var buf bytes.Buffer
	s.Require().NoError(c.Encode(s.ctx, &buf, sample(3)))
	s.Equal(1, logs.FilterMessage("pson frame written").Len())

	// ctx 中的 Logger 优先于绑定的 Logger。
	other, otherLogs := observer.New(zapcore.DebugLevel)
	ctx := context.WithValue(s.ctx, log.CtxLogKey, &log.MLogger{Logger: zap.New(other)})
	doc, err := c.Decode(ctx, &buf)
	s.Require().NoError(err)
	doc.Release()
	s.Equal(0, logs.FilterMessage("pson frame decoded").Len())
	s.Equal(1, otherLogs.FilterMessage("pson frame decoded").Len())
}

func (s *CodecSuite) TestInvalidArgs() {
	_, err := New(Options{EnableEncryption: true})
	s.Error(err)

	c := s.newCodec(false, false)
	s.Error(c.Encode(s.ctx, nil, sample(0)))
	s.Error(c.Encode(s.ctx, io.Discard, nil))
	_, err = c.Decode(s.ctx, nil)
	s.Error(err)
}

func TestCodec(t *testing.T) {
	suite.Run(t, new(CodecSuite))
}

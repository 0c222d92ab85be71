package codec

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/blang/semver/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/lk2023060901/pson-go/internal/network"
	"github.com/lk2023060901/pson-go/internal/network/compressor"
	"github.com/lk2023060901/pson-go/internal/network/crypto"
	"github.com/lk2023060901/pson-go/internal/network/framer"
	"github.com/lk2023060901/pson-go/internal/network/serializer"
	"github.com/lk2023060901/pson-go/internal/pool/ringbuffer"
	"github.com/lk2023060901/pson-go/pkg/log"
	"github.com/lk2023060901/pson-go/pkg/pson"
	"github.com/lk2023060901/pson-go/pkg/util/merr"
)

// FormatVersion 为文档流格式版本，帧中只携带主版本号，主版本号不同即不兼容。
var FormatVersion = semver.MustParse("1.0.0")

const (
	FlagCompressed byte = 1 << 0
	FlagEncrypted  byte = 1 << 1
)

const tracerName = "github.com/lk2023060901/pson-go/codec"

// Codec 抽象了“值树 <-> 帧”的完整编解码流程，一帧承载一个文档。
//
// Pipeline（写出 Encode）：
//
//	value --> serializer --> [compress?] --> [encrypt?] --> Frame{flags,version,payload} --> framer.WriteFrame
//
// Pipeline（读入 Decode）：
//
//	framer.ReadFrame --> Frame --> [decrypt?] --> [decompress?] --> serializer --> value
type Codec interface {
	// Encode 将 v 编码为一帧并写入 w。
	Encode(ctx context.Context, w io.Writer, v *pson.Value) error

	// Decode 从 r 中读取一帧并解码为文档。
	// 流在帧边界结束时返回的错误满足 errors.Is(err, io.EOF)。
	Decode(ctx context.Context, r io.Reader) (*Document, error)

	// DecodeRaw 读取一帧，返回帧信息与已完成验签/解密/解压的 payload，不做反序列化。
	DecodeRaw(ctx context.Context, r io.Reader) (*framer.Frame, []byte, error)
}

// Document 为解码得到的一个文档。
//
// 未指定分配器时，Value 的载荷位于从池中取得的 arena 上，
// 使用完毕必须调用 Release，之后不能再访问 Value。
type Document struct {
	Value     *pson.Value
	Flags     byte
	Version   semver.Version
	FrameSize int

	arena *ringbuffer.Arena
}

// Release 释放值树并归还 arena，可重复调用。
func (d *Document) Release() {
	if d == nil || d.Value == nil {
		return
	}
	d.Value.Release()
	d.Value = nil
	if d.arena != nil {
		ringbuffer.Put(d.arena)
		d.arena = nil
	}
}

// Options 用于构造 Codec 的依赖注入参数。
type Options struct {
	Framer     framer.Framer         // 为 nil 时使用默认大小的 LengthPrefixedFramer
	Serializer serializer.Serializer // 为 nil 时使用 PSONSerializer
	Compressor compressor.Compressor // 为 nil 时使用 NopCompressor
	Encryptor  crypto.Encryptor      // 为 nil 时使用 NopEncryptor

	EnableCompression bool
	EnableEncryption  bool

	// Allocator 非空时解码出的文档使用该分配器，否则每次调用从 arena 池中取一个。
	Allocator pson.Allocator

	// Logger 为空时使用全局 Logger；ctx 中携带的 Logger 优先。
	Logger *log.MLogger
}

type codec struct {
	log.Binder

	framer     framer.Framer
	serializer serializer.Serializer
	compressor compressor.Compressor
	encryptor  crypto.Encryptor
	allocator  pson.Allocator

	compress bool
	encrypt  bool
	tracer   trace.Tracer
}

var _ Codec = (*codec)(nil)

// New 创建一个基于给定依赖的 Codec。
func New(opts Options) (Codec, error) {
	if opts.EnableEncryption && opts.Encryptor == nil {
		return nil, fmt.Errorf("codec: encryption enabled but encryptor is nil")
	}

	c := &codec{
		framer:     opts.Framer,
		serializer: opts.Serializer,
		compressor: opts.Compressor,
		encryptor:  opts.Encryptor,
		allocator:  opts.Allocator,
		compress:   opts.EnableCompression,
		encrypt:    opts.EnableEncryption,
		tracer:     otel.Tracer(tracerName),
	}
	if opts.Logger != nil {
		c.SetLogger(opts.Logger)
	}
	if c.framer == nil {
		c.framer = framer.NewLengthPrefixedFramer(0)
	}
	if c.serializer == nil {
		c.serializer = serializer.PSONSerializer{}
	}
	if c.compressor == nil {
		c.compressor = compressor.NopCompressor{}
	}
	if c.encryptor == nil {
		c.encryptor = crypto.NopEncryptor{}
	}
	return c, nil
}

func (c *codec) Encode(ctx context.Context, w io.Writer, v *pson.Value) error {
	ctx, span := c.tracer.Start(ctx, "codec.Encode")
	defer span.End()

	if w == nil {
		return c.fail(span, fmt.Errorf("codec: writer is nil"))
	}
	if v == nil {
		return c.fail(span, fmt.Errorf("codec: value is nil"))
	}

	body, err := c.serializer.Marshal(v)
	if err != nil {
		return c.fail(span, stageErr(network.StageSerialize, network.ErrEncodeFailed, err))
	}
	rawSize := len(body)

	var flags byte
	if c.compress && len(body) > 0 {
		body, err = c.compressor.Compress(nil, body)
		if err != nil {
			return c.fail(span, stageErr(network.StageCompress, network.ErrEncodeFailed, err))
		}
		flags |= FlagCompressed
	}

	version := byte(FormatVersion.Major)
	if c.encrypt {
		flags |= FlagEncrypted
		body, err = c.encryptor.Encrypt(body, buildAAD(flags, version))
		if err != nil {
			return c.fail(span, stageErr(network.StageEncrypt, network.ErrEncodeFailed, err))
		}
	}

	if err := c.framer.WriteFrame(w, &framer.Frame{Flags: flags, Version: version, Payload: body}); err != nil {
		return c.fail(span, stageErr(network.StageFrame, network.ErrFrameFailed, err))
	}

	span.SetAttributes(
		attribute.Int("pson.raw_size", rawSize),
		attribute.Int("pson.frame_size", len(body)),
		attribute.Int("pson.flags", int(flags)),
	)
	c.logger(ctx).Debug("pson frame written",
		zap.Int("rawSize", rawSize),
		zap.Int("frameSize", len(body)),
		zap.Uint8("flags", flags))
	return nil
}

func (c *codec) DecodeRaw(ctx context.Context, r io.Reader) (*framer.Frame, []byte, error) {
	_, span := c.tracer.Start(ctx, "codec.DecodeRaw")
	defer span.End()

	frame, data, err := c.decodeFrame(r)
	if err != nil {
		return nil, nil, c.fail(span, err)
	}
	return frame, data, nil
}

// decodeFrame 完成从底层流到“帧信息 + payload 明文”的解码。
func (c *codec) decodeFrame(r io.Reader) (*framer.Frame, []byte, error) {
	if r == nil {
		return nil, nil, fmt.Errorf("codec: reader is nil")
	}

	frame, err := c.framer.ReadFrame(r)
	if err != nil {
		return nil, nil, stageErr(network.StageFrame, network.ErrFrameFailed, err)
	}

	if uint64(frame.Version) != FormatVersion.Major {
		return nil, nil, merr.WrapErrStreamVersionMismatch(uint64(frame.Version), FormatVersion.Major)
	}

	data := frame.Payload

	if frame.Flags&FlagEncrypted != 0 {
		if !c.encrypt {
			return nil, nil, merr.WrapErrStreamFlagsMismatch("encrypted")
		}
		data, err = c.encryptor.Decrypt(data, buildAAD(frame.Flags, frame.Version))
		if err != nil {
			return nil, nil, stageErr(network.StageDecrypt, network.ErrDecodeFailed, err)
		}
	}

	if frame.Flags&FlagCompressed != 0 {
		if !c.compress {
			return nil, nil, merr.WrapErrStreamFlagsMismatch("compressed")
		}
		if len(data) == 0 {
			return nil, nil, stageErr(network.StageDecompress, network.ErrDecodeFailed, fmt.Errorf("compressed payload is empty"))
		}
		data, err = c.compressor.Decompress(nil, data)
		if err != nil {
			return nil, nil, stageErr(network.StageDecompress, network.ErrDecodeFailed, err)
		}
	}

	return frame, data, nil
}

func (c *codec) Decode(ctx context.Context, r io.Reader) (*Document, error) {
	ctx, span := c.tracer.Start(ctx, "codec.Decode")
	defer span.End()

	frame, data, err := c.decodeFrame(r)
	if err != nil {
		return nil, c.fail(span, err)
	}

	doc := &Document{
		Flags:     frame.Flags,
		Version:   semver.Version{Major: uint64(frame.Version)},
		FrameSize: len(frame.Payload),
	}
	alloc := c.allocator
	if alloc == nil {
		// 解码出的载荷总量不超过 payload 长度，arena 不会回绕
		doc.arena = ringbuffer.GetAtLeast(len(data))
		alloc = doc.arena
	}
	doc.Value = pson.NewValue(alloc)

	if err := c.serializer.Unmarshal(data, doc.Value); err != nil {
		doc.Release()
		return nil, c.fail(span, stageErr(network.StageDeserialize, network.ErrDecodeFailed, err))
	}

	span.SetAttributes(attribute.Int("pson.payload_size", len(data)))
	c.logger(ctx).Debug("pson frame decoded",
		zap.Int("payloadSize", len(data)),
		zap.Uint8("flags", frame.Flags))
	return doc, nil
}

func (c *codec) logger(ctx context.Context) *log.MLogger {
	if l, ok := ctx.Value(log.CtxLogKey).(*log.MLogger); ok {
		return l
	}
	return c.Logger()
}

func (c *codec) fail(span trace.Span, err error) error {
	if !errors.Is(err, io.EOF) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func stageErr(stage network.Stage, kind, err error) error {
	return fmt.Errorf("codec: %s failed: %w: %w", stage, kind, err)
}

// buildAAD 将帧头编码为关联数据，使 flags 与版本号受签名保护。
func buildAAD(flags, version byte) []byte {
	return []byte{flags, version}
}

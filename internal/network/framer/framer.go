package framer

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/valyala/bytebufferpool"

	"github.com/lk2023060901/pson-go/pkg/util/merr"
)

// Frame 为一帧解包后的内容。
//
// 帧体格式：1 字节 flags + 1 字节格式主版本号 + payload。
type Frame struct {
	Flags   byte
	Version byte
	Payload []byte
}

// frameHeaderSize 为帧体中 flags 与版本号占用的字节数。
const frameHeaderSize = 2

// Framer 抽象了帧的打包/解包能力。
//
// 约定：一帧数据的格式为 4 字节大端无符号整型（帧体长度）+ 帧体。
type Framer interface {
	// WriteFrame 将 Frame 打包为一帧并写入到 w 中。
	WriteFrame(w io.Writer, f *Frame) error

	// ReadFrame 从 r 中读取一帧数据。
	// 在帧边界上遇到流结束时返回的错误满足 errors.Is(err, io.EOF)。
	ReadFrame(r io.Reader) (*Frame, error)
}

// LengthPrefixedFramer 使用长度前缀（4 字节大端）作为帧边界。
// 适用于文件、管道、TCP 等基于流的载体。
type LengthPrefixedFramer struct {
	// MaxFrameSize 为允许的最大帧体大小，单位字节。
	// 为 0 时使用默认值 DefaultMaxFrameSize。
	MaxFrameSize uint32
}

var _ Framer = (*LengthPrefixedFramer)(nil)

const DefaultMaxFrameSize uint32 = 16 * 1024 * 1024 // 16MB

// NewLengthPrefixedFramer 创建一个长度前缀帧编码器。
// maxFrameSize 为 0 时使用默认值。
func NewLengthPrefixedFramer(maxFrameSize uint32) *LengthPrefixedFramer {
	if maxFrameSize == 0 {
		maxFrameSize = DefaultMaxFrameSize
	}
	return &LengthPrefixedFramer{
		MaxFrameSize: maxFrameSize,
	}
}

// WriteFrame 将长度前缀、帧头与 payload 拼接后一次性写出。
func (f *LengthPrefixedFramer) WriteFrame(w io.Writer, frame *Frame) error {
	if frame == nil {
		return fmt.Errorf("framer: frame is nil")
	}

	size := uint64(frameHeaderSize) + uint64(len(frame.Payload))
	if size > uint64(f.effectiveMaxSize()) {
		return fmt.Errorf("framer: %w", merr.WrapErrStreamFrameTooLarge(uint32(min(size, 1<<32-1)), f.effectiveMaxSize()))
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	buf.B = binary.BigEndian.AppendUint32(buf.B, uint32(size))
	buf.B = append(buf.B, frame.Flags, frame.Version)
	buf.B = append(buf.B, frame.Payload...)

	if _, err := w.Write(buf.B); err != nil {
		return fmt.Errorf("framer: write frame failed: %w", err)
	}
	return nil
}

// ReadFrame 从流中读取一帧。
func (f *LengthPrefixedFramer) ReadFrame(r io.Reader) (*Frame, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("framer: read header failed: %w", err)
	}

	size := binary.BigEndian.Uint32(header[:])
	if size > f.effectiveMaxSize() {
		return nil, fmt.Errorf("framer: %w", merr.WrapErrStreamFrameTooLarge(size, f.effectiveMaxSize()))
	}
	if size < frameHeaderSize {
		return nil, fmt.Errorf("framer: frame size %d shorter than frame header", size)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("framer: read body failed: %w", err)
	}

	return &Frame{
		Flags:   body[0],
		Version: body[1],
		Payload: body[frameHeaderSize:],
	}, nil
}

func (f *LengthPrefixedFramer) effectiveMaxSize() uint32 {
	if f == nil || f.MaxFrameSize == 0 {
		return DefaultMaxFrameSize
	}
	return f.MaxFrameSize
}

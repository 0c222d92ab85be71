package compressor

import (
	"github.com/lk2023060901/pson-go/pkg/util/merr"
)

const (
	KindNone = "none"
	KindZstd = "zstd"
)

// Compressor 抽象了“单次压缩/解压”能力，作用于一帧的 payload。
type Compressor interface {
	// Compress 将 src 压缩后追加到 dst[:0] 并返回。
	// dst 可为 nil，也可以传入一个可复用的缓冲区。
	Compress(dst, src []byte) (packet []byte, err error)

	// Decompress 将 Compress 的输出 src 解压后追加到 dst[:0] 并返回。
	Decompress(dst, src []byte) (plain []byte, err error)
}

// NopCompressor 不做任何压缩/解压，直接返回输入内容。
// 未开启压缩时作为默认值。
type NopCompressor struct{}

func (NopCompressor) Compress(_ []byte, src []byte) ([]byte, error) {
	return src, nil
}

func (NopCompressor) Decompress(_ []byte, src []byte) ([]byte, error) {
	return src, nil
}

var _ Compressor = NopCompressor{}

// New 按配置中的名称创建压缩器，空串与 "none" 返回 NopCompressor。
func New(kind string) (Compressor, error) {
	switch kind {
	case "", KindNone:
		return NopCompressor{}, nil
	case KindZstd:
		return NewZstdCompressor()
	default:
		return nil, merr.WrapErrParameterInvalid("none|zstd", kind, "stream compression")
	}
}

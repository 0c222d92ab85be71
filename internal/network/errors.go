package network

import "errors"

// Stage 表示文档流编解码链路中的处理阶段，用于日志与指标中标记错误位置。
type Stage string

const (
	StageSerialize   Stage = "serialize"   // 值树 -> payload
	StageCompress    Stage = "compress"    // payload 压缩
	StageEncrypt     Stage = "encrypt"     // payload 加密
	StageFrame       Stage = "frame"       // 帧读写
	StageDecrypt     Stage = "decrypt"     // 验签与解密
	StageDecompress  Stage = "decompress"  // 解压
	StageDeserialize Stage = "deserialize" // payload -> 值树
)

// 统一的错误码常量，用于日志/监控的稳定字符串。
const (
	ErrCodeEncodeFailed = "stream:encode_failed"
	ErrCodeDecodeFailed = "stream:decode_failed"
	ErrCodeFrameFailed  = "stream:frame_failed"
)

var (
	// ErrEncodeFailed 表示在序列化、压缩或加密阶段失败。
	ErrEncodeFailed = errors.New(ErrCodeEncodeFailed)

	// ErrDecodeFailed 表示在验签、解密、解压或反序列化阶段失败。
	ErrDecodeFailed = errors.New(ErrCodeDecodeFailed)

	// ErrFrameFailed 表示读写帧失败。
	ErrFrameFailed = errors.New(ErrCodeFrameFailed)
)

// ErrorCode 返回 err 对应的错误码，未知错误返回空串。
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrEncodeFailed):
		return ErrCodeEncodeFailed
	case errors.Is(err, ErrDecodeFailed):
		return ErrCodeDecodeFailed
	case errors.Is(err, ErrFrameFailed):
		return ErrCodeFrameFailed
	default:
		return ""
	}
}

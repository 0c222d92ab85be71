package serializer

// Serializer 抽象了“对象 <-> 字节流”的序列化能力，作用于一帧的 payload。
type Serializer interface {
	// Marshal 将对象编码为字节序列。
	Marshal(v any) ([]byte, error)

	// Unmarshal 将字节序列解码到目标对象，v 通常为指针类型。
	Unmarshal(data []byte, v any) error
}

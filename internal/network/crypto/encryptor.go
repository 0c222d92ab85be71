package crypto

// Encryptor 抽象了单一加密方案：
//   - Encrypt：加密并签名，生成完整报文
//   - Decrypt：验签并解密，还原明文
//
// aad 为关联数据，不加密但需要完整性保护（例如帧 flags 与格式版本号）。
type Encryptor interface {
	Encrypt(plaintext, aad []byte) (packet []byte, err error)
	Decrypt(packet, aad []byte) (plaintext []byte, err error)
}

// NopEncryptor 不做加密也不做验签，直接透传数据。
type NopEncryptor struct{}

func (NopEncryptor) Encrypt(plaintext, _ []byte) ([]byte, error) {
	return plaintext, nil
}

func (NopEncryptor) Decrypt(packet, _ []byte) ([]byte, error) {
	return packet, nil
}

var _ Encryptor = NopEncryptor{}

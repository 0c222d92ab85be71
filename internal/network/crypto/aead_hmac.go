package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hkdf"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"
)

var (
	// ErrPacketTooShort 表示报文长度不足以包含 nonce 与 MAC。
	ErrPacketTooShort = errors.New("crypto: packet too short")

	// ErrInvalidMAC 表示 HMAC 签名校验失败。
	ErrInvalidMAC = errors.New("crypto: invalid mac")
)

const (
	aes256KeySizeBytes = 32

	encKeyInfo = "pson-stream/aes-256-gcm"
	macKeyInfo = "pson-stream/hmac-sha256"
)

// AEADHMACCodec 使用 AES-256-GCM 加密 payload，并用 HMAC-SHA256 对
// nonce、密文与关联数据再做一层签名。
//
// 报文格式：nonce || ciphertext || mac
type AEADHMACCodec struct {
	aead    cipher.AEAD
	hmacKey []byte
}

var _ Encryptor = (*AEADHMACCodec)(nil)

// NewAESGCMHMACCodec 使用显式的加密密钥与签名密钥创建编码器。
// encKey 必须为 32 字节，macKey 不能为空。
func NewAESGCMHMACCodec(encKey, macKey []byte) (*AEADHMACCodec, error) {
	if len(encKey) != aes256KeySizeBytes {
		return nil, errors.New("crypto: encKey must be 32 bytes for AES-256-GCM")
	}
	if len(macKey) == 0 {
		return nil, errors.New("crypto: macKey must not be empty")
	}
	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &AEADHMACCodec{
		aead:    aead,
		hmacKey: append([]byte(nil), macKey...),
	}, nil
}

// NewAESGCMHMACCodecFromSecret 用 HKDF-SHA256 从同一个共享密钥派生出加密与签名两把密钥。
// 配置文件中只需要保存一个 secret。
func NewAESGCMHMACCodecFromSecret(secret []byte) (*AEADHMACCodec, error) {
	if len(secret) == 0 {
		return nil, errors.New("crypto: secret must not be empty")
	}
	encKey, err := hkdf.Key(sha256.New, secret, nil, encKeyInfo, aes256KeySizeBytes)
	if err != nil {
		return nil, err
	}
	macKey, err := hkdf.Key(sha256.New, secret, nil, macKeyInfo, sha256.Size)
	if err != nil {
		return nil, err
	}
	return NewAESGCMHMACCodec(encKey, macKey)
}

func (c *AEADHMACCodec) sign(nonce, ciphertext, aad []byte) []byte {
	m := hmac.New(sha256.New, c.hmacKey)
	_, _ = m.Write(nonce)
	_, _ = m.Write(ciphertext)
	_, _ = m.Write(aad)
	return m.Sum(nil)
}

// Encrypt 加密 plaintext 并附加签名，aad 不加密但受完整性保护。
func (c *AEADHMACCodec) Encrypt(plaintext, aad []byte) ([]byte, error) {
	nonceSize := c.aead.NonceSize()
	packet := make([]byte, nonceSize, nonceSize+len(plaintext)+c.aead.Overhead()+sha256.Size)
	if _, err := io.ReadFull(rand.Reader, packet); err != nil {
		return nil, err
	}

	packet = c.aead.Seal(packet, packet[:nonceSize], plaintext, aad)
	mac := c.sign(packet[:nonceSize], packet[nonceSize:], aad)
	return append(packet, mac...), nil
}

// Decrypt 校验签名后解密，aad 必须与加密时一致。
func (c *AEADHMACCodec) Decrypt(packet, aad []byte) ([]byte, error) {
	nonceSize := c.aead.NonceSize()
	if len(packet) < nonceSize+sha256.Size {
		return nil, ErrPacketTooShort
	}

	nonce := packet[:nonceSize]
	macOffset := len(packet) - sha256.Size
	ciphertext := packet[nonceSize:macOffset]

	if !hmac.Equal(c.sign(nonce, ciphertext, aad), packet[macOffset:]) {
		return nil, ErrInvalidMAC
	}
	return c.aead.Open(nil, nonce, ciphertext, aad)
}

package serializer

import (
	"fmt"

	"github.com/lk2023060901/pson-go/pkg/pson"
)

// PSONSerializer 以 PSON 二进制格式编码 *pson.Value。
type PSONSerializer struct {
	Encoder pson.EncoderOptions
	Decoder pson.DecoderOptions
}

var _ Serializer = (*PSONSerializer)(nil)

func (s PSONSerializer) Marshal(v any) ([]byte, error) {
	value, ok := v.(*pson.Value)
	if !ok {
		return nil, fmt.Errorf("serializer: PSONSerializer requires *pson.Value, got %T", v)
	}
	return pson.MarshalWithOptions(value, s.Encoder)
}

// Unmarshal 解码到 *pson.Value，载荷使用目标值自身的分配器。
func (s PSONSerializer) Unmarshal(data []byte, v any) error {
	value, ok := v.(*pson.Value)
	if !ok {
		return fmt.Errorf("serializer: PSONSerializer requires *pson.Value, got %T", v)
	}
	return pson.UnmarshalWithOptions(data, value, s.Decoder)
}

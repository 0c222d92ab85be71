package serializer

import (
	"github.com/lk2023060901/pson-go/internal/json"
	"github.com/lk2023060901/pson-go/pkg/pson"
	"github.com/lk2023060901/pson-go/pkg/pson/psonjson"
)

// JSONSerializer 以 JSON 文本编码 payload。
// *pson.Value 经 psonjson 转换以保持成员顺序，其余对象使用 internal/json（基于 bytedance/sonic）。
type JSONSerializer struct{}

var _ Serializer = (*JSONSerializer)(nil)

func (JSONSerializer) Marshal(v any) ([]byte, error) {
	if value, ok := v.(*pson.Value); ok {
		return psonjson.Marshal(value)
	}
	return json.Marshal(v)
}

func (JSONSerializer) Unmarshal(data []byte, v any) error {
	if value, ok := v.(*pson.Value); ok {
		return psonjson.Decode(data, value)
	}
	return json.Unmarshal(data, v)
}

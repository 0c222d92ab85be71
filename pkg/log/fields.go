package log

import (
	"go.uber.org/zap"
)

const (
	FieldNameModule    = "module"
	FieldNameComponent = "component"
	FieldNameType      = "psonType"
	FieldNameOffset    = "offset"
)

// FieldModule 返回一个包含模块名的 zap 字段。
func FieldModule(module string) zap.Field {
	return zap.String(FieldNameModule, module)
}

// FieldComponent 返回一个包含组件名的 zap 字段。
func FieldComponent(component string) zap.Field {
	return zap.String(FieldNameComponent, component)
}

// FieldType 返回一个包含 PSON 类型名的 zap 字段。
func FieldType(name string) zap.Field {
	return zap.String(FieldNameType, name)
}

// FieldOffset 返回一个包含流内字节偏移量的 zap 字段。
func FieldOffset(offset int64) zap.Field {
	return zap.Int64(FieldNameOffset, offset)
}

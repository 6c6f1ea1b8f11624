package log

import (
	"go.uber.org/zap"
)

const (
	FieldNameComponent = "component"
	FieldNameSessionID = "sessionID"
	FieldNameRemote    = "remote"
	FieldNameUser      = "user"
)

// FieldComponent 返回一个包含组件名的 zap 字段。
func FieldComponent(component string) zap.Field {
	return zap.String(FieldNameComponent, component)
}

// FieldSessionID 返回一个包含会话编号的 zap 字段。
func FieldSessionID(id uint64) zap.Field {
	return zap.Uint64(FieldNameSessionID, id)
}

// FieldRemote 返回一个包含对端地址的 zap 字段。
func FieldRemote(addr string) zap.Field {
	return zap.String(FieldNameRemote, addr)
}

// FieldUser 返回一个包含用户昵称的 zap 字段。
func FieldUser(name string) zap.Field {
	return zap.String(FieldNameUser, name)
}

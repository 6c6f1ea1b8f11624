// Copyright 2019 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxLogKeyType struct{}

// CtxLogKey 是上下文中保存 *MLogger 的键。
var CtxLogKey = ctxLogKeyType{}

// Info 使用全局 Logger 输出一条 Info 日志，用于进程级事件（启动、停止）。
// 连接相关的日志应使用 Ctx(ctx)。
func Info(msg string, fields ...zap.Field) {
	L().Info(msg, fields...)
}

// Warn 使用全局 Logger 输出一条 Warn 日志。
func Warn(msg string, fields ...zap.Field) {
	L().Warn(msg, fields...)
}

// Error 使用全局 Logger 输出一条 Error 日志。
func Error(msg string, fields ...zap.Field) {
	L().Error(msg, fields...)
}

// Fatal 输出一条 Fatal 日志后调用 os.Exit(1)。
func Fatal(msg string, fields ...zap.Field) {
	L().Fatal(msg, fields...)
}

// With 基于全局 Logger 创建一个携带额外字段的 MLogger。
func With(fields ...zap.Field) *MLogger {
	return &MLogger{
		Logger: L().With(fields...).WithOptions(zap.AddCallerSkip(-1)),
	}
}

// WithFields 返回一个附加了指定字段的上下文。
func WithFields(ctx context.Context, fields ...zap.Field) context.Context {
	return context.WithValue(ctx, CtxLogKey, &MLogger{Logger: Ctx(ctx).Logger.With(fields...)})
}

// WithSession 为 ctx 中的 Logger 添加会话编号与对端地址字段。
func WithSession(ctx context.Context, sessionID uint64, remote string) context.Context {
	return WithFields(ctx, FieldSessionID(sessionID), FieldRemote(remote))
}

// WithLevel 返回一个日志级别不低于 level 的上下文，已附加的字段保留。
//
// 说明：
//   - 只能提高级别，低于全局级别的 level 不生效；
//   - 用于单独压低连接相关日志的输出量。
func WithLevel(ctx context.Context, level zapcore.Level) context.Context {
	if Ctx(ctx).Core().Enabled(level - 1) {
		return context.WithValue(ctx, CtxLogKey, &MLogger{
			Logger: Ctx(ctx).Logger.WithOptions(zap.IncreaseLevel(level)),
		})
	}
	return ctx
}

// Ctx 返回 ctx 上附加的 Logger；没有附加时返回全局级别对应的 Logger。
func Ctx(ctx context.Context) *MLogger {
	if ctx == nil {
		return &MLogger{Logger: ctxL()}
	}
	if ctxLogger, ok := ctx.Value(CtxLogKey).(*MLogger); ok {
		return ctxLogger
	}
	return &MLogger{Logger: ctxL()}
}

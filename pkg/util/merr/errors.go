// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package merr

import (
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

const (
	CanceledCode int32 = 10000
	TimeoutCode  int32 = 10001
)

type ErrorType int32

const (
	SystemError ErrorType = 0
	InputError  ErrorType = 1
)

var ErrorTypeName = map[ErrorType]string{
	SystemError: "system_error",
	InputError:  "input_error",
}

func (err ErrorType) String() string {
	return ErrorTypeName[err]
}

// 叶子错误统一定义在这里。
// WARN: 新增错误前请先确认下面已有的错误是否可以复用。
// 命名规则：Err + 所属模块前缀 + 错误名
var (
	// Service 相关
	ErrServiceNotReady   = newRelayError("service not ready", 1)
	ErrServiceRateLimit  = newRelayError("rate limit exceeded", 8)
	ErrServiceStopped    = newRelayError("service stopped", 13)
	ErrServiceListenFail = newRelayError("listen failed", 14)

	// Name 相关
	ErrNameInvalid = newRelayError("nickname is invalid", 100, WithErrorType(InputError))
	ErrNameTaken   = newRelayError("nickname already taken", 101, WithErrorType(InputError))

	// User 相关
	ErrUserNotFound = newRelayError("user not found", 200, WithErrorType(InputError))

	// Message 相关
	ErrMessageMalformed   = newRelayError("malformed message", 300, WithErrorType(InputError))
	ErrMessageUnknownType = newRelayError("unknown message type", 301, WithErrorType(InputError))
	ErrMessageRoute       = newRelayError("route registration conflict", 302)

	// Session 相关
	ErrSessionClosed       = newRelayError("session closed", 400)
	ErrSessionSendFull     = newRelayError("session send queue is full", 401)
	ErrSessionPhase        = newRelayError("session phase unexpected", 402)
	ErrSessionLineTooLong  = newRelayError("line exceeds max size", 403)
	ErrSessionWriteTimeout = newRelayError("session write timeout", 404)

	// IO 相关
	ErrIoFailed      = newRelayError("IO failed", 1001)

	// Parameter 相关
	ErrParameterInvalid = newRelayError("invalid parameter", 1100)
	ErrParameterMissing = newRelayError("missing parameter", 1101)

	// 不要导出该错误，
	// 仅用于把未知错误转换为 relayError。
	errUnexpected = newRelayError("unexpected error", (1<<16)-1)
)

type errorOption func(*relayError)

func WithErrorType(etype ErrorType) errorOption {
	return func(err *relayError) {
		err.errType = etype
	}
}

type relayError struct {
	msg     string
	errCode int32
	errType ErrorType
}

func newRelayError(msg string, code int32, options ...errorOption) relayError {
	err := relayError{
		msg:     msg,
		errCode: code,
	}

	for _, option := range options {
		option(&err)
	}
	return err
}

func (e relayError) code() int32 {
	return e.errCode
}

func (e relayError) Error() string {
	return e.msg
}

func (e relayError) Is(err error) bool {
	cause := errors.Cause(err)
	if cause, ok := cause.(relayError); ok {
		return e.errCode == cause.errCode
	}
	return false
}

type multiErrors struct {
	errs []error
}

func (e multiErrors) Unwrap() error {
	if len(e.errs) <= 1 {
		return nil
	}
	// 为了让 merr 能识别组合错误，
	// 这里把最后一个错误视为组合错误的 cause。
	if len(e.errs) == 2 {
		return e.errs[1]
	}

	return multiErrors{
		errs: e.errs[1:],
	}
}

func (e multiErrors) Error() string {
	final := e.errs[0]
	for i := 1; i < len(e.errs); i++ {
		final = errors.Wrap(e.errs[i], final.Error())
	}
	return final.Error()
}

func (e multiErrors) Is(err error) bool {
	for _, item := range e.errs {
		if errors.Is(item, err) {
			return true
		}
	}
	return false
}

// Combine 将多个错误合并为一个，nil 会被忽略；全部为 nil 时返回 nil。
func Combine(errs ...error) error {
	errs = lo.Filter(errs, func(err error, _ int) bool { return err != nil })
	if len(errs) == 0 {
		return nil
	}
	return multiErrors{
		errs,
	}
}

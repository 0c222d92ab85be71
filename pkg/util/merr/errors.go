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

// 在此处定义叶子错误。
// WARN: 新增错误前请先确认下方已有错误是否可以复用。
// 命名规则：Err + 所属模块前缀 + 错误名
var (
	// Allocator 相关
	ErrAllocOutOfMemory    = newPSONError("allocator out of memory", 100, true)
	ErrAllocBlockTooLarge  = newPSONError("allocation larger than arena capacity", 101, false)
	ErrAllocatorInstalled  = newPSONError("allocator already installed", 102, false)
	ErrAllocatorNotDefined = newPSONError("unknown allocator kind", 103, false)

	// Decode 相关，均视为输入错误
	ErrDecodeTruncated      = newPSONError("truncated input", 200, false, WithErrorType(InputError))
	ErrDecodeVarintOverflow = newPSONError("varint overflows 64 bits", 201, false, WithErrorType(InputError))
	ErrDecodeLengthMismatch = newPSONError("declared length does not match consumed bytes", 202, false, WithErrorType(InputError))
	ErrDecodeTooDeep        = newPSONError("document too deeply nested", 203, false, WithErrorType(InputError))
	ErrDecodeTooLarge       = newPSONError("declared length exceeds limit", 204, false, WithErrorType(InputError))

	// Encode 相关
	ErrEncodeWriteFailed = newPSONError("write to sink failed", 300, true)
	ErrEncodeTooDeep     = newPSONError("document too deeply nested", 301, false)

	// Stream 相关
	ErrStreamFrameTooLarge   = newPSONError("frame exceeds max size", 400, false)
	ErrStreamVersionMismatch = newPSONError("unsupported format version", 401, false)
	ErrStreamFlagsMismatch   = newPSONError("frame flags not enabled on this codec", 402, false)

	// Parameter 相关
	ErrParameterInvalid = newPSONError("invalid parameter", 1100, false)
	ErrParameterMissing = newPSONError("missing parameter", 1101, false)

	// Do NOT export this,
	// never allow programmer using this, keep only for converting unknown error to psonError
	errUnexpected = newPSONError("unexpected error", (1<<16)-1, false)
)

type errorOption func(*psonError)

func WithDetail(detail string) errorOption {
	return func(err *psonError) {
		err.detail = detail
	}
}

func WithErrorType(etype ErrorType) errorOption {
	return func(err *psonError) {
		err.errType = etype
	}
}

type psonError struct {
	msg       string
	detail    string
	retriable bool
	errCode   int32
	errType   ErrorType
}

func newPSONError(msg string, code int32, retriable bool, options ...errorOption) psonError {
	err := psonError{
		msg:       msg,
		detail:    msg,
		retriable: retriable,
		errCode:   code,
	}

	for _, option := range options {
		option(&err)
	}
	return err
}

func (e psonError) code() int32 {
	return e.errCode
}

func (e psonError) Error() string {
	return e.msg
}

func (e psonError) Detail() string {
	return e.detail
}

func (e psonError) Is(err error) bool {
	cause := errors.Cause(err)
	if cause, ok := cause.(psonError); ok {
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
	// 以最后一个错误作为 multiErrors 的 cause。
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

func Combine(errs ...error) error {
	errs = lo.Filter(errs, func(err error, _ int) bool { return err != nil })
	if len(errs) == 0 {
		return nil
	}
	return multiErrors{
		errs,
	}
}

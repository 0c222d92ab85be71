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
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

const (
	CanceledCode int32 = 10000
	TimeoutCode  int32 = 10001
)

// Code 返回给定错误对应的错误码。
func Code(err error) int32 {
	if err == nil {
		return 0
	}

	cause := errors.Cause(err)
	switch specificErr := cause.(type) {
	case psonError:
		return specificErr.code()

	default:
		if errors.Is(specificErr, context.Canceled) {
			return CanceledCode
		} else if errors.Is(specificErr, context.DeadlineExceeded) {
			return TimeoutCode
		} else {
			return errUnexpected.code()
		}
	}
}

func IsRetryableErr(err error) bool {
	var perr psonError
	if errors.As(err, &perr) {
		return perr.retriable
	}
	return false
}

func IsCanceledOrTimeout(err error) bool {
	return errors.IsAny(err, context.Canceled, context.DeadlineExceeded)
}

func GetErrorType(err error) ErrorType {
	var perr psonError
	if errors.As(err, &perr) {
		return perr.errType
	}
	return SystemError
}

// IsInputError 表示错误由输入数据引起（例如损坏的编码流），而非系统故障。
func IsInputError(err error) bool {
	return err != nil && GetErrorType(err) == InputError
}

// Allocator 相关错误封装。
func WrapErrAllocOutOfMemory(requested, inUse, limit int, msg ...string) error {
	err := wrapFields(ErrAllocOutOfMemory,
		value("requested", requested),
		bound("inUse", inUse+requested, 0, limit),
	)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrAllocBlockTooLarge(size, capacity int, msg ...string) error {
	err := wrapFields(ErrAllocBlockTooLarge, bound("size", size, 0, capacity))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrAllocatorNotDefined(kind string, msg ...string) error {
	err := wrapFields(ErrAllocatorNotDefined, value("kind", kind))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

// Decode 相关错误封装，offset 为出错时已经读取的字节数。
func WrapErrDecodeTruncated(offset int64, what string) error {
	return wrapFieldsWithDesc(ErrDecodeTruncated, what, value("offset", offset))
}

func WrapErrDecodeVarintOverflow(offset int64) error {
	return wrapFields(ErrDecodeVarintOverflow, value("offset", offset))
}

func WrapErrDecodeLengthMismatch(offset int64, declared, consumed uint64) error {
	return wrapFields(ErrDecodeLengthMismatch,
		value("offset", offset),
		value("declared", declared),
		value("consumed", consumed),
	)
}

func WrapErrDecodeTooDeep(offset int64, maxDepth int) error {
	return wrapFields(ErrDecodeTooDeep, value("offset", offset), value("maxDepth", maxDepth))
}

func WrapErrDecodeTooLarge(offset int64, length, limit uint64) error {
	return wrapFields(ErrDecodeTooLarge, value("offset", offset), bound("length", length, 0, limit))
}

// Encode 相关错误封装。
func WrapErrEncodeWriteFailed(written int64, cause error) error {
	return wrapFieldsWithDesc(ErrEncodeWriteFailed, cause.Error(), value("written", written))
}

func WrapErrEncodeTooDeep(maxDepth int) error {
	return wrapFields(ErrEncodeTooDeep, value("maxDepth", maxDepth))
}

// Stream 相关错误封装。
func WrapErrStreamFrameTooLarge(size, limit uint32) error {
	return wrapFields(ErrStreamFrameTooLarge, bound("size", size, 0, limit))
}

func WrapErrStreamVersionMismatch(got, want uint64) error {
	return wrapFields(ErrStreamVersionMismatch, value("got", got), value("want", want))
}

func WrapErrStreamFlagsMismatch(flag string, msg ...string) error {
	err := wrapFields(ErrStreamFlagsMismatch, value("flag", flag))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

// Parameter 相关错误封装。
func WrapErrParameterInvalid[T any](expected, actual T, msg ...string) error {
	err := wrapFields(ErrParameterInvalid,
		value("expected", expected),
		value("actual", actual),
	)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrParameterInvalidMsg(fmtstr string, args ...any) error {
	return errors.Wrapf(ErrParameterInvalid, fmtstr, args...)
}

func WrapErrParameterMissing[T any](param T, msg ...string) error {
	err := wrapFields(ErrParameterMissing,
		value("missing_param", param),
	)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func wrapFields(err psonError, fields ...errorField) error {
	for i := range fields {
		err.msg += fmt.Sprintf("[%s]", fields[i].String())
	}
	err.detail = err.msg
	return err
}

func wrapFieldsWithDesc(err psonError, desc string, fields ...errorField) error {
	for i := range fields {
		err.msg += fmt.Sprintf("[%s]", fields[i].String())
	}
	err.msg += ": " + desc
	err.detail = err.msg
	return err
}

type errorField interface {
	String() string
}

type valueField struct {
	name  string
	value any
}

func value(name string, value any) valueField {
	return valueField{
		name,
		value,
	}
}

func (f valueField) String() string {
	return fmt.Sprintf("%s=%v", f.name, f.value)
}

type boundField struct {
	name  string
	value any
	lower any
	upper any
}

func bound(name string, value, lower, upper any) boundField {
	return boundField{
		name,
		value,
		lower,
		upper,
	}
}

func (f boundField) String() string {
	return fmt.Sprintf("%v out of range %v <= %s <= %v", f.value, f.lower, f.name, f.upper)
}

package errs

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

// WrapError 带错误码和调用位置的错误类型
type WrapError struct {
	msg   string
	code  int
	site  string
	cause error
}

// New 创建新错误，不包含 cause
func New(msg string) error {
	return &WrapError{
		msg:  msg,
		site: callerSite(2),
	}
}

// NewCode 创建带错误码的新错误
func NewCode(code int, msg string) error {
	return &WrapError{
		msg:  msg,
		code: code,
		site: callerSite(2),
	}
}

// Wrap 包装错误，msg 可为空
func Wrap(err error, msgs ...string) error {
	if err == nil {
		return nil
	}
	msg := ""
	if len(msgs) > 0 {
		msg = msgs[0]
	}
	return &WrapError{
		msg:   msg,
		code:  CodeOf(err), // 保留内层错误码
		site:  callerSite(2),
		cause: err,
	}
}

// WithCode 包一层带指定 code 的错误，不修改原错误。
// 原错误可能是共享的哨兵值，原地改 code 会污染其它持有方。
func WithCode(err error, code int) error {
	if err == nil {
		return nil
	}
	return &WrapError{
		code:  code,
		site:  callerSite(2),
		cause: err,
	}
}

func (e *WrapError) Error() string {
	var b strings.Builder
	b.WriteString(e.site)
	if e.code != 0 {
		fmt.Fprintf(&b, " [%d]", e.code)
	}
	if e.msg != "" {
		b.WriteString(" " + e.msg)
	}
	if e.cause != nil {
		b.WriteString(": " + e.cause.Error())
	}
	return b.String()
}

func (e *WrapError) Unwrap() error {
	return e.cause
}

func (e *WrapError) Code() int {
	return e.code
}

// CodeOf 提取错误链上最外层的错误码，非 WrapError 返回 0
func CodeOf(err error) int {
	var w *WrapError
	if errors.As(err, &w) {
		return w.code
	}
	return 0
}

// IsCode 判断错误链上是否携带指定错误码
func IsCode(err error, code int) bool {
	for err != nil {
		var w *WrapError
		if !errors.As(err, &w) {
			return false
		}
		if w.code == code {
			return true
		}
		err = w.Unwrap()
	}
	return false
}

// callerSite 返回 file:line，文件路径只保留最后两级目录
func callerSite(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown:0"
	}
	parts := strings.Split(filepath.ToSlash(file), "/")
	if len(parts) > 2 {
		file = strings.Join(parts[len(parts)-2:], "/")
	}
	return fmt.Sprintf("%s:%d", file, line)
}

// Package errors carries the numeric error taxonomy the quiz API speaks on
// the wire. Codes are stable: clients match on them, not on messages.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is the numeric code carried in the `error` field of API responses.
type Code int

const (
	CodeOK Code = iota
	CodeMissingQuizID
	CodeMissingAnswer
	CodeSessionClosed
	CodeAlreadyDecided
	CodeWrongAnswer
	CodeWriteFailed
	CodeReadFailed
)

var code2msg = map[Code]string{
	CodeOK:             "OK",
	CodeMissingQuizID:  "wrong parameter(s)",
	CodeMissingAnswer:  "wrong parameter(s)",
	CodeSessionClosed:  "the party is over",
	CodeAlreadyDecided: "the party is over",
	CodeWrongAnswer:    "wrong answer!!",
	CodeWriteFailed:    "update error",
	CodeReadFailed:     "get error",
}

// A wrong answer is a normal negative outcome, not a failure, so it rides
// on 200. Everything else that carries a code is a 403.
var code2http = map[Code]int{
	CodeOK:          http.StatusOK,
	CodeWrongAnswer: http.StatusOK,
}

// Message is the default wire message for the code.
func (c Code) Message() string {
	return code2msg[c]
}

type Error struct {
	Code    Code   `json:"error"`
	Message string `json:"message"`
	err     error
}

func New(code Code, opts ...Option) *Error {
	e := &Error{
		Code:    code,
		Message: code.Message(),
	}

	for _, opt := range opts {
		opt.apply(e)
	}

	return e
}

func (e *Error) Error() string {
	s := fmt.Sprintf("code: %d, message: %s", e.Code, e.Message)
	if e.err != nil {
		s += fmt.Sprintf(", err: %s", e.err)
	}

	return s
}

func (e *Error) Unwrap() error {
	return e.err
}

func (e *Error) HTTPStatusCode() int {
	if c, ok := code2http[e.Code]; ok {
		return c
	}

	return http.StatusForbidden
}

// Convert folds any error into an *Error. Errors without a code become
// pre-check read failures, the catch-all of the original taxonomy.
func Convert(err error) *Error {
	var e *Error
	if !errors.As(err, &e) {
		return ReadFailed(err)
	}

	return e
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

func ReadFailed(err error) *Error {
	return New(CodeReadFailed, WithCause(err), WithMessagef("get error: %v", err))
}

func WriteFailed(err error) *Error {
	return New(CodeWriteFailed, WithCause(err), WithMessagef("update error: %v", err))
}

type Option interface {
	apply(*Error)
}

type optionFunc func(*Error)

func (f optionFunc) apply(e *Error) {
	f(e)
}

func WithCause(err error) Option {
	return optionFunc(func(e *Error) {
		e.err = err
	})
}

func WithMessagef(format string, args ...any) Option {
	return optionFunc(func(e *Error) {
		e.Message = fmt.Sprintf(format, args...)
	})
}

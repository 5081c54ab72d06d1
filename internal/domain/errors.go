package domain

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorKind string

const (
	InvalidInput      ErrorKind = "invalid_input"
	SourceUnavailable ErrorKind = "source_unavailable"
	StreamError       ErrorKind = "stream_error"
	RelocationFailed  ErrorKind = "relocation_failed"
	DecodeError       ErrorKind = "decode_error"
	WriteFailure      ErrorKind = "write_failure"
	PublishFailure    ErrorKind = "publish_failure"
)

var ErrNotFound = errors.New("not found")

type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

// Message devolve só a causa, sem op e kind, para respostas ao cliente.
func (e *Error) Message() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf retorna o tipo do primeiro *Error na cadeia, ou "" se não houver.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if KindOf(err) == InvalidInput {
		return http.StatusBadRequest
	}
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

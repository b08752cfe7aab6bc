package fiberhelpers

import (
	"fmt"

	"klinechart/utils/fiberhelper/response"
)

// ErrorBase : HTTP status 와 code 가 정해진 에러. 핸들러가 그대로 return 하면 DefaultErrorHandler 가 응답으로 바꾼다
type ErrorBase struct {
	Status int
	Code   string
	Err    error
}

func NewError(status int, code string, err error) *ErrorBase {
	return &ErrorBase{Status: status, Code: code, Err: err}
}

func (e *ErrorBase) Error() string {
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *ErrorBase) Unwrap() error { return e.Err }

func (e *ErrorBase) NewErrorResponse() response.ErrorResponse {
	msg := response.RequestError
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return response.ErrorResponse{Code: e.Code, Message: msg}
}

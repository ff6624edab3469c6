// SPDX-License-Identifier: ice License 1.0

package server

import (
	"net/http"

	"github.com/pkg/errors"
)

func BadRequest(err error, code string, dataArg ...map[string]any) *Response[ErrorResponse] {
	return errorResponse(http.StatusBadRequest, err, code, dataArg...)
}

func UnprocessableEntity(err error, code string, dataArg ...map[string]any) *Response[ErrorResponse] {
	return errorResponse(http.StatusUnprocessableEntity, err, code, dataArg...)
}

func NotFound(err error, code string, dataArg ...map[string]any) *Response[ErrorResponse] {
	return errorResponse(http.StatusNotFound, err, code, dataArg...)
}

func Forbidden(err error, dataArg ...map[string]any) *Response[ErrorResponse] {
	return errorResponse(http.StatusForbidden, errors.Wrapf(err, "authorization failed"), "OPERATION_NOT_ALLOWED", dataArg...)
}

func Unexpected(err error) *Response[ErrorResponse] {
	return &Response[ErrorResponse]{
		Code: -1,
		Data: &ErrorResponse{
			error: err,
			Error: err.Error(),
		},
	}
}

func NoContent() *Response[any] {
	return &Response[any]{Code: http.StatusNoContent}
}

func OK[RESP any](responses ...*RESP) *Response[RESP] {
	var resp *RESP
	if len(responses) == 1 {
		resp = responses[0]
	}

	return &Response[RESP]{Code: http.StatusOK, Data: resp}
}

func errorResponse(httpCode int, err error, code string, dataArg ...map[string]any) *Response[ErrorResponse] {
	var data map[string]any
	if len(dataArg) == 1 {
		data = dataArg[0]
	}

	return &Response[ErrorResponse]{
		Data: &ErrorResponse{
			error: err,
			Error: err.Error(),
			Code:  code,
			Data:  data,
		},
		Code: httpCode,
	}
}

func (e *ErrorResponse) Fail(err error) *ErrorResponse {
	e.error = err

	return e
}

func (e *ErrorResponse) InternalErr() error {
	return e.error
}

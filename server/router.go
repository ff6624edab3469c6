// SPDX-License-Identifier: ice License 1.0

package server

import (
	"context"
	"net"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-reflect"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/gravityflow/ganalytics/log"
)

//nolint:gochecknoinits // Because we want to set it up globally.
func init() {
	if err := os.Setenv("TZ", ""); err != nil {
		log.Panic(err)
	}
}

func RootHandler[REQ, RESP any](handleRequest func(context.Context, *Request[REQ, RESP]) (*Response[RESP], *Response[ErrorResponse])) func(*gin.Context) {
	return func(ginCtx *gin.Context) {
		ctx, cancel := context.WithTimeout(ginCtx.Request.Context(), cfg.DefaultEndpointTimeout)
		defer cancel()
		req := new(Request[REQ, RESP]).init(ginCtx)
		if err := req.processRequest(); err != nil {
			log.Error(errors.Wrap(err.Data.InternalErr(), "endpoint processing failed"), "Response", err)
			ginCtx.JSON(err.Code, err.Data)

			return
		}
		if err := req.authorize(ctx); err != nil {
			log.Error(errors.Wrap(err.Data.InternalErr(), "endpoint nonce verification failed"), "Response", err)
			ginCtx.JSON(err.Code, err.Data)

			return
		}
		success, failure := handleRequest(ctx, req)
		if failure != nil {
			log.Error(errors.Wrap(failure.Data.InternalErr(), "endpoint failed"), "Response", failure)
			ginCtx.JSON(req.processErrorResponse(ctx, failure))

			return
		}
		for k, v := range success.Headers {
			ginCtx.Header(k, v)
		}
		if success.Data != nil {
			ginCtx.JSON(success.Code, success.Data)
		} else {
			ginCtx.Status(success.Code)
		}
	}
}

func (req *Request[REQ, RESP]) init(ginCtx *gin.Context) *Request[REQ, RESP] {
	req.Data = new(REQ)
	req.ClientIP = net.ParseIP(ginCtx.ClientIP())
	req.ginCtx = ginCtx

	return req
}

func (req *Request[REQ, RESP]) processTags() {
	elem := reflect.TypeOf(req.Data).Elem()
	if elem.Kind() != reflect.Struct {
		log.Panic("request data's have to be structs")
	}
	fieldCount := elem.NumField()
	req.requiredFields = make([]string, 0, fieldCount)
	req.bindings = make(map[requestBinding]struct{}, 4) //nolint:mnd,gomnd // They're 4 possible values.
	for i := 0; i < fieldCount; i++ {
		field := elem.Field(i)
		tag := field.Tag
		if tag.Get("required") == "true" {
			req.requiredFields = append(req.requiredFields, field.Name)
		}
		if nonceAction := tag.Get("requireNonce"); nonceAction != "" {
			req.nonceAction = nonceAction
		}
		if jsonTag := tag.Get("json"); jsonTag != "" && jsonTag != "-" {
			req.bindings[json] = struct{}{}
		}
		if tag.Get("uri") != "" {
			req.bindings[uri] = struct{}{}
		}
		if tag.Get("form") != "" {
			req.bindings[query] = struct{}{}
		}
		if tag.Get("header") != "" {
			req.bindings[header] = struct{}{}
		}
	}
}

func (req *Request[REQ, RESP]) processRequest() *Response[ErrorResponse] {
	req.processTags()
	var errs []error
	for b := range req.bindings {
		switch b { //nolint:revive // .
		case json:
			errs = append(errs, req.ginCtx.ShouldBindJSON(req.Data))
		case uri:
			errs = append(errs, req.ginCtx.ShouldBindUri(req.Data))
		case query:
			errs = append(errs, req.ginCtx.ShouldBindQuery(req.Data))
		case header:
			errs = append(errs, req.ginCtx.ShouldBindHeader(req.Data))
		}
	}
	if err := multierror.Append(nil, errs...).ErrorOrNil(); err != nil {
		return UnprocessableEntity(errors.Wrapf(err, "binding failed"), "STRUCTURE_VALIDATION_FAILED")
	}

	return req.validate()
}

func (req *Request[REQ, RESP]) validate() *Response[ErrorResponse] {
	if len(req.requiredFields) == 0 {
		return nil
	}
	value := reflect.ValueOf(req.Data).Elem()
	requiredFields := make([]string, 0, len(req.requiredFields))
	for _, field := range req.requiredFields {
		if value.FieldByName(field).IsZero() {
			requiredFields = append(requiredFields, field)
		}
	}
	if len(requiredFields) == 0 {
		return nil
	}

	return UnprocessableEntity(errors.Errorf("properties `%v` are required", strings.Join(requiredFields, ",")), "MISSING_PROPERTIES")
}

// The entry-meta endpoints are public, so they are authenticated with per-action nonces instead of user tokens.
func (req *Request[REQ, RESP]) authorize(ctx context.Context) *Response[ErrorResponse] {
	if req.nonceAction == "" {
		return nil
	}
	nonceField := reflect.ValueOf(req.Data).Elem().FieldByName("Nonce")
	if !nonceField.IsValid() || nonceField.Kind() != reflect.String {
		log.Panic(errors.Errorf("request data %[1]T requires a nonce but has no string `Nonce` field", req.Data))
	}
	if err := VerifyNonce(ctx, req.nonceAction, nonceField.String()); err != nil {
		return Forbidden(errors.Wrapf(err, "nonce validation failed for action `%v`", req.nonceAction))
	}

	return nil
}

func (req *Request[REQ, RESP]) processErrorResponse(ctx context.Context, failure *Response[ErrorResponse]) (int, *ErrorResponse) {
	err := failure.Data.InternalErr()
	if errors.Is(err, req.ginCtx.Request.Context().Err()) {
		return http.StatusServiceUnavailable, &ErrorResponse{Error: "service is shutting down"}
	}
	if errors.Is(err, ctx.Err()) {
		return http.StatusGatewayTimeout, &ErrorResponse{Error: "request timed out"}
	}
	if failure.Code <= 0 {
		return http.StatusInternalServerError, &ErrorResponse{Error: "oops, something went wrong"}
	}

	return failure.Code, failure.Data
}

package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/newsboard/apperr"
)

// ErrorBody is the uniform structure for API error responses.
type ErrorBody struct {
	Code    int                 `json:"code"`
	Message string              `json:"message"`
	Status  int                 `json:"status"`
	Errors  []apperr.FieldError `json:"errors,omitempty"`
	Stack   []string            `json:"stack,omitempty"`
}

// NewErrorBody renders e. The cause chain is included only when withStack is set.
func NewErrorBody(e *apperr.Error, withStack bool) ErrorBody {
	body := ErrorBody{
		Code:    e.Code,
		Message: e.Message,
		Status:  e.Status(),
		Errors:  e.Fields,
	}
	if withStack {
		for cause := e.Err; cause != nil; cause = unwrapOne(cause) {
			body.Stack = append(body.Stack, cause.Error())
		}
	}
	return body
}

func unwrapOne(err error) error {
	u, ok := err.(interface{ Unwrap() error })
	if !ok {
		return nil
	}
	return u.Unwrap()
}

// Success writes data with 200.
func Success(ctx *gin.Context, data any) {
	ctx.JSON(http.StatusOK, data)
}

// Created writes data with 201.
func Created(ctx *gin.Context, data any) {
	ctx.JSON(http.StatusCreated, data)
}

// NoContent answers 204 without a body.
func NoContent(ctx *gin.Context) {
	ctx.Status(http.StatusNoContent)
}

// Fail attaches err to the request and aborts; the error middleware renders it.
func Fail(ctx *gin.Context, err error) {
	_ = ctx.Error(err)
	ctx.Abort()
}

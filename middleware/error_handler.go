package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/newsboard/apperr"
	"github.com/cppla/newsboard/utils"
)

// ErrorHandler renders the last error attached with ctx.Error as the JSON
// error envelope. Client errors are logged at warn, server errors at error
// with their cause. Cause chains reach the client only when development is set.
func ErrorHandler(development bool) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Next()

		if len(ctx.Errors) == 0 || ctx.Writer.Written() {
			return
		}
		e := apperr.As(ctx.Errors.Last().Err)
		status := e.Status()

		fields := []zap.Field{
			zap.Int("status", status),
			zap.Int("code", e.Code),
			zap.String("method", ctx.Request.Method),
			zap.String("path", ctx.Request.URL.Path),
			zap.String(utils.RequestIDKey, ctx.GetString(utils.RequestIDKey)),
		}
		if status >= 500 {
			utils.Logger.Error(e.Message, append(fields, zap.NamedError("cause", e.Err))...)
		} else {
			if len(e.Fields) > 0 {
				fields = append(fields, zap.Any("errors", e.Fields))
			}
			utils.Logger.Warn(e.Message, fields...)
		}

		ctx.JSON(status, utils.NewErrorBody(e, development))
	}
}

package middleware

import (
	"errors"
	"net/http"

	"taskora/pkg/errutil"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Error renders the last error attached with c.Error as a JSON body.
func Error() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}
		render(c, last.Err)
	}
}

// Recovery converts panics into a 500 response.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		zap.L().Error("panic recovered", zap.Any("panic", recovered), zap.String("path", c.FullPath()))
		abortWith(c, errutil.Internal("internal error", nil))
	})
}

func abortWith(c *gin.Context, err error) {
	render(c, err)
	c.Abort()
}

func render(c *gin.Context, err error) {
	var be errutil.BaseError
	if errors.As(err, &be) {
		if be.Code.HTTPStatus() >= http.StatusInternalServerError {
			zap.L().Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		}
		c.JSON(be.Code.HTTPStatus(), be.JSON())
		return
	}

	zap.L().Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, errutil.BaseError{
		Code:    errutil.StatusInternal,
		Message: "internal error",
	}.JSON())
}

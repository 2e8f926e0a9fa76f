package middleware

import (
	"errors"
	"net/http"

	"pointsplane/pkg/errutil"

	"github.com/gin-gonic/gin"
)

// Error renders the last collected error as the response body. Handlers push
// domain errors via c.Error and abort; unknown errors become a plain 500.
func Error() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}

		var be errutil.BaseError
		if errors.As(last.Err, &be) {
			c.JSON(be.Code.HTTPStatus(), be.JSON())
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    errutil.StatusInternal,
				"message": "internal error",
			},
		})
	}
}

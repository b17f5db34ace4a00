package response

import (
	"github.com/gin-gonic/gin"
)

// AbortWithError stops the handler chain and writes the same body as
// ErrorResponse.
func AbortWithError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, NewResponse(false, code, map[string]any{
		"message": message,
	}))
}

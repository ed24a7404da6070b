package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// OK sends a 200 response. Slices are wrapped in {data: [...]}.
func OK(c *gin.Context, data interface{}) {
	if data == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, data)
}

// List sends a 200 response wrapping items in a data envelope.
func List(c *gin.Context, items interface{}) {
	c.JSON(http.StatusOK, gin.H{"data": items})
}

// BadRequest sends a 400 with a message.
func BadRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": msg})
}

// Unauthorized sends a 401.
func Unauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "unauthorized"})
}

// NotFound sends a 404.
func NotFound(c *gin.Context) {
	NotFoundMsg(c, "not found")
}

// NotFoundMsg sends a 404 with a custom message.
func NotFoundMsg(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": msg})
}

// MethodNotAllowed sends a 405.
func MethodNotAllowed(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusMethodNotAllowed, gin.H{"message": "method not allowed"})
}

// InternalError sends a 500 carrying the error message.
func InternalError(c *gin.Context, err error) {
	msg := "internal server error"
	if err != nil {
		msg = err.Error()
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": msg})
}

package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"data": data})
}

// Error writes the error envelope and aborts the remaining handlers.
func Error(c *gin.Context, status int, code, message string) {
	requestID := c.GetString("request_id")
	c.AbortWithStatusJSON(status, gin.H{"error": APIError{Code: code, Message: message, RequestID: requestID}})
}

package response

import "github.com/gin-gonic/gin"

// RequestIDHeader is set by the request logger before handlers run
const RequestIDHeader = "X-Request-ID"

func RespondJSON(c *gin.Context, status string, code int, message string, data interface{}, errors interface{}) {
	c.JSON(code, StandardApiResponse{
		Status:     status,
		StatusCode: code,
		Message:    message,
		Data:       data,
		Errors:     errors,
		RequestID:  c.Writer.Header().Get(RequestIDHeader),
	})
}

// RespondError writes an error envelope and stops the handler chain
func RespondError(c *gin.Context, code int, message string, errors interface{}) {
	RespondJSON(c, "error", code, message, nil, errors)
	c.Abort()
}

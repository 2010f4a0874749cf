package utils

import (
	"github.com/gin-gonic/gin"
)

type JSONResponse struct {
	Status   bool        `json:"status"`
	Message  string      `json:"message"`
	Conflict bool        `json:"conflict,omitempty"`
	Data     interface{} `json:"data,omitempty"`
}

func RespondJSON(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, JSONResponse{
		Status:  code >= 200 && code < 300,
		Message: message,
		Data:    data,
	})
}

func RespondError(c *gin.Context, code int, err error) {
	c.JSON(code, JSONResponse{
		Status:  false,
		Message: err.Error(),
		Data:    nil,
	})
}

// RespondConflict answers 409 with enough detail for the client to explain
// the refusal without another request.
func RespondConflict(c *gin.Context, code int, message string, details interface{}) {
	c.JSON(code, JSONResponse{
		Status:   false,
		Message:  message,
		Conflict: true,
		Data:     details,
	})
}

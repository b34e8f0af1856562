// internal/pkg/response/response.go
package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gayashan123/ck-host-auth/internal/pkg/apperr"
)

// Response defines the standard API response format.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Success sends a successful response with a message and optional data.
func Success(c *gin.Context, status int, message string, data interface{}) {
	if status == 0 {
		status = http.StatusOK
	}

	c.JSON(status, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Error sends a standardized error response.
func Error(c *gin.Context, code int, message string, err error) {
	c.Abort()

	resp := Response{
		Success: false,
		Message: message,
	}
	if err != nil {
		resp.Error = err.Error()
	}

	c.JSON(code, resp)
}

// FromError maps a service error onto the envelope with the right HTTP
// status. The message is the sentinel's own text so clients see a stable
// string regardless of what wrapped it.
func FromError(c *gin.Context, err error) {
	code := http.StatusInternalServerError
	message := "internal server error"

	switch {
	case errors.Is(err, apperr.ErrValidation):
		code, message = http.StatusBadRequest, apperr.ErrValidation.Error()
	case errors.Is(err, apperr.ErrInvalidCredentials):
		code, message = http.StatusUnauthorized, apperr.ErrInvalidCredentials.Error()
	case errors.Is(err, apperr.ErrNotVerified):
		code, message = http.StatusForbidden, apperr.ErrNotVerified.Error()
	case errors.Is(err, apperr.ErrInvalidCode):
		code, message = http.StatusBadRequest, apperr.ErrInvalidCode.Error()
	case errors.Is(err, apperr.ErrInvalidToken):
		code, message = http.StatusBadRequest, apperr.ErrInvalidToken.Error()
	case errors.Is(err, apperr.ErrExpiredToken):
		code, message = http.StatusGone, apperr.ErrExpiredToken.Error()
	case errors.Is(err, apperr.ErrEmailTaken):
		code, message = http.StatusConflict, apperr.ErrEmailTaken.Error()
	case errors.Is(err, apperr.ErrEmailDelivery):
		code, message = http.StatusBadGateway, apperr.ErrEmailDelivery.Error()
	case errors.Is(err, apperr.ErrNotFound):
		code, message = http.StatusNotFound, apperr.ErrNotFound.Error()
	}

	// Do not leak wrapped details for server-side failures.
	if code == http.StatusInternalServerError {
		Error(c, code, message, nil)
		return
	}
	Error(c, code, message, err)
}

// ValidationError sends a 400 Bad Request response for invalid input.
func ValidationError(c *gin.Context, message string, err error) {
	Error(c, http.StatusBadRequest, message, err)
}

// Unauthorized sends a 401 Unauthorized response.
func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, message, nil)
}

// NotFound sends a 404 Not Found response.
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message, nil)
}

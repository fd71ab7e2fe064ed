package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pittisunilkumar3/nibog-sub001/internal/apperr"
)

type Response struct {
	Status    string `json:"status"`
	Code      int    `json:"code"`
	Message   string `json:"message,omitempty"`
	ErrorKind string `json:"errorKind,omitempty"`
	RequestID string `json:"requestId,omitempty"`
	Data      any    `json:"data,omitempty"`
}

func respondSuccess(c *gin.Context, data any, message string) {
	c.JSON(http.StatusOK, Response{
		Status:    "success",
		Code:      http.StatusOK,
		Message:   message,
		RequestID: c.GetString(requestIDKey),
		Data:      data,
	})
}

func respondError(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Status:    "error",
		Code:      code,
		Message:   message,
		RequestID: c.GetString(requestIDKey),
	})
}

// respondKind reports err with the status its kind maps to. data is
// attached when the failure still carries a useful result.
func respondKind(c *gin.Context, err error, data any) {
	kind := apperr.KindOf(err)
	code := StatusFor(kind)
	_ = c.Error(err)
	c.JSON(code, Response{
		Status:    "error",
		Code:      code,
		Message:   err.Error(),
		ErrorKind: string(kind),
		RequestID: c.GetString(requestIDKey),
		Data:      data,
	})
}

func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.InvalidInput:
		return http.StatusBadRequest
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.PaymentFailed:
		return http.StatusPaymentRequired
	case apperr.TransientError, apperr.ProviderUnavailable:
		return http.StatusServiceUnavailable
	case apperr.RequestTimeout:
		return http.StatusGatewayTimeout
	case apperr.SchemaMismatch, apperr.Unavailable:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

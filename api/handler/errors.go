package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/quizwalker/models"
)

// mapErrorToStatus maps error codes to HTTP status codes.
func mapErrorToStatus(code string) int {
	switch code {
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation, models.ErrCodeElementNotFound:
		return http.StatusBadGateway // 502
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeNotFound:
		return http.StatusNotFound // 404
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	case models.ErrCodeUnsupported:
		return http.StatusServiceUnavailable // 503
	default:
		return http.StatusInternalServerError // 500
	}
}

// respondError writes a failed RunResponse with the status for detail.Code.
func respondError(c *gin.Context, detail *models.ErrorDetail) {
	c.JSON(mapErrorToStatus(detail.Code), models.RunResponse{
		Success: false,
		Error:   detail,
	})
}

package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/quizwalker/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Health returns a handler for GET /api/v1/health.
//
// Reports run slot usage and degrades status when every slot is busy.
func Health(svc *RunService, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := svc.Stats()

		status := "healthy"
		if stats.MaxConcurrent > 0 && stats.ActiveRuns >= stats.MaxConcurrent {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Runner:  stats,
			Version: Version,
		})
	}
}

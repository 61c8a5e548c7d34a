package httptransport

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"datavault/backend/internal/health"
)

// healthStatus 汇总健康状态，ERROR 时返回 503
func healthStatus(checker *health.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := checker.CheckHealth()

		status := http.StatusOK
		if report.Status == "ERROR" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"status":    strings.ToLower(report.Status),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"uptime":    checker.Uptime().Seconds(),
			"checks":    report.Checks,
		})
	}
}

package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nuzul-stays/service-booking/internal/application"
	"github.com/nuzul-stays/service-booking/internal/response"
)

// CronHandler exposes scheduled maintenance jobs to an external scheduler.
type CronHandler struct {
	cleanup *application.CleanupService
	secret  string
}

// NewCronHandler creates a new CronHandler.
func NewCronHandler(cleanup *application.CleanupService, secret string) *CronHandler {
	return &CronHandler{cleanup: cleanup, secret: secret}
}

// RegisterRoutes registers cron routes on the given router group.
func (h *CronHandler) RegisterRoutes(r *gin.RouterGroup) {
	cron := r.Group("/cron")
	cron.Use(h.requireCronSecret())
	{
		cron.GET("/cleanup-bookings", h.CleanupBookings)
	}
}

func (h *CronHandler) requireCronSecret() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || subtle.ConstantTimeCompare([]byte(token), []byte(h.secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "unauthorized",
			})
			return
		}
		c.Next()
	}
}

// CleanupBookings handles GET /cron/cleanup-bookings. It expires every
// booking whose payment hold has lapsed and reports what changed.
func (h *CronHandler) CleanupBookings(c *gin.Context) {
	result, err := h.cleanup.ExpireStaleHolds(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"expiredCount": result.ExpiredCount,
		"details":      result.Details,
	})
}

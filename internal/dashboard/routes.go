package dashboard

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Jack-Gledhill/bugbot/internal/report"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// maxListLimit caps /api/reports.
const maxListLimit = 200

// registerRoutes sets up all dashboard routes on the Gin router.
func registerRoutes(router *gin.Engine, db *gorm.DB, store report.Store, poll time.Duration) {
	router.GET("/healthz", handleHealth(db))

	api := router.Group("/api")
	api.GET("/reports", handleReportList(store))
	api.GET("/reports/:id", handleReportDetail(store))
	api.GET("/stats", handleStats(db))
	api.GET("/events", handleSSE(db, poll))
}

func handleHealth(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func handleReportList(store report.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var filters report.ListFilters
		if s := c.Query("state"); s != "" {
			state, err := report.ParseState(s)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			filters.State = &state
		}
		filters.BoardID = c.Query("board")
		filters.ReporterID = c.Query("reporter")

		filters.Limit = 50
		if s := c.Query("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			filters.Limit = min(n, maxListLimit)
		}

		reports, err := store.List(c.Request.Context(), filters)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		views := make([]reportView, len(reports))
		for i, r := range reports {
			views[i] = newReportView(r)
		}
		c.JSON(http.StatusOK, gin.H{"reports": views, "count": len(views)})
	}
}

func handleReportDetail(store report.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || id < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report id"})
			return
		}
		r, err := store.Get(c.Request.Context(), id)
		switch {
		case errors.Is(err, report.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, newReportView(r))
	}
}

func handleStats(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := QueueStats(db.WithContext(c.Request.Context()))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

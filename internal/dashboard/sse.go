package dashboard

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/Jack-Gledhill/bugbot/internal/models"
	"github.com/Jack-Gledhill/bugbot/internal/report"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// heartbeatInterval keeps idle streams open through proxies.
const heartbeatInterval = 15 * time.Second

// submittedEvent announces a newly submitted report.
type submittedEvent struct {
	ID      int64  `json:"id"`
	BoardID string `json:"board_id"`
	Short   string `json:"short"`
	Open    int64  `json:"open"`
}

// handleSSE streams a "submitted" event for every report created after the
// client connected.
func handleSSE(db *gorm.DB, poll time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		ctx := c.Request.Context()
		var lastSeenID int64
		var latest models.Report
		if err := db.WithContext(ctx).Order("id DESC").Limit(1).Find(&latest).Error; err == nil {
			lastSeenID = latest.ID
		}

		writeSSE(c.Writer, "connected", map[string]string{"type": "connected"})
		c.Writer.Flush()

		ticker := time.NewTicker(poll)
		heartbeat := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				writeSSE(c.Writer, "heartbeat", map[string]string{
					"timestamp": time.Now().UTC().Format(time.RFC3339),
				})
				c.Writer.Flush()
			case <-ticker.C:
				var fresh []models.Report
				if err := db.WithContext(ctx).Where("id > ?", lastSeenID).Order("id ASC").Find(&fresh).Error; err != nil || len(fresh) == 0 {
					continue
				}
				lastSeenID = fresh[len(fresh)-1].ID

				var open int64
				db.WithContext(ctx).Model(&models.Report{}).Where("stance = ?", int(report.Open)).Count(&open)

				for _, r := range fresh {
					writeSSE(c.Writer, "submitted", submittedEvent{
						ID:      r.ID,
						BoardID: r.BoardID,
						Short:   r.ShortDescription,
						Open:    open,
					})
				}
				c.Writer.Flush()
			}
		}
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}

// Package dashboard serves a read-only JSON view of the report queue.
package dashboard

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Jack-Gledhill/bugbot/internal/report"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// DefaultPollInterval is how often the event stream checks for new reports.
const DefaultPollInterval = 3 * time.Second

// StartOpts holds configuration for the dashboard server.
type StartOpts struct {
	DB           *gorm.DB
	Port         int
	Out          io.Writer
	PollInterval time.Duration
}

// Start launches the dashboard HTTP server. It blocks until ctx is cancelled,
// then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.DB == nil {
		return fmt.Errorf("dashboard: db is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	gin.SetMode(gin.ReleaseMode)
	router, err := newRouter(opts.DB, opts.PollInterval)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Dashboard running at http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}

// newRouter builds the gin engine with every route registered.
func newRouter(db *gorm.DB, poll time.Duration) (*gin.Engine, error) {
	store, err := report.NewGormStore(db)
	if err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	router := gin.New()
	router.Use(gin.Recovery())
	registerRoutes(router, db, store, poll)
	return router, nil
}

// Package server exposes the HTTP surface: the messaging webhook plus a
// small back-office API for sessions and scheduled jobs.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/ktwhotel/concierge/internal/models"
	"github.com/ktwhotel/concierge/internal/session"
)

// StartOpts holds configuration for the HTTP server.
type StartOpts struct {
	DB       *gorm.DB
	Sessions *session.Store
	TenantID string
	Addr     string          // defaults to :8090
	Webhook  gin.HandlerFunc // optional; POST /webhook
	Out      io.Writer
}

// Start launches the HTTP server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.DB == nil {
		return fmt.Errorf("server: db is required")
	}
	if opts.Sessions == nil {
		return fmt.Errorf("server: session store is required")
	}
	if opts.TenantID == "" {
		return fmt.Errorf("server: tenant id is required")
	}
	if opts.Addr == "" {
		opts.Addr = ":8090"
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	registerRoutes(router, opts)

	srv := &http.Server{
		Addr:    opts.Addr,
		Handler: router,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Concierge listening on %s\n", opts.Addr)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

func registerRoutes(router *gin.Engine, opts StartOpts) {
	if opts.Webhook != nil {
		router.POST("/webhook", opts.Webhook)
	}
	router.GET("/healthz", handleHealth(opts.DB))

	api := router.Group("/api")
	api.GET("/sessions/:user_id", handleSessionGet(opts))
	api.PUT("/sessions/:user_id", handleSessionPut(opts))
	api.DELETE("/sessions/:user_id", handleSessionDelete(opts))
	api.GET("/jobs", handleJobList(opts.DB, opts.TenantID))
}

func handleHealth(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.Ping()
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// handleSessionGet returns the raw persisted session for inspection.
func handleSessionGet(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, err := opts.Sessions.Snapshot(opts.TenantID, c.Param("user_id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, snap)
	}
}

// handleSessionPut overwrites a session from a snapshot. Snapshots written
// by a newer schema are rejected.
func handleSessionPut(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		var snap models.Session
		if err := c.ShouldBindJSON(&snap); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		snap.TenantID = opts.TenantID
		snap.UserID = c.Param("user_id")
		if err := opts.Sessions.Restore(&snap); err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "restored"})
	}
}

func handleSessionDelete(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := opts.Sessions.Delete(opts.TenantID, c.Param("user_id")); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "deleted"})
	}
}

// handleJobList returns recent jobs, optionally filtered by status.
func handleJobList(db *gorm.DB, tenantID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := db.Where("tenant_id = ?", tenantID)
		if status := c.Query("status"); status != "" {
			q = q.Where("status = ?", status)
		}
		var jobs []models.Job
		if err := q.Order("run_at DESC").Limit(100).Find(&jobs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"jobs": jobs})
	}
}

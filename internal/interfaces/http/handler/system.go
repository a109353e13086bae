package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/saasfilter/backend/internal/interfaces/http/dto"
)

// Pinger checks a backing store
type Pinger interface {
	Ping(ctx context.Context) error
}

// SessionCounter reports the number of live sessions
type SessionCounter interface {
	Len() int
}

// SystemHandler handles health and system information endpoints
type SystemHandler struct {
	BaseHandler
	startTime time.Time
	version   string
	db        Pinger
	sessions  SessionCounter
}

// NewSystemHandler creates a new SystemHandler. db is nil when the in-memory
// repository is in use.
func NewSystemHandler(version string, db Pinger, sessions SessionCounter) *SystemHandler {
	return &SystemHandler{
		startTime: time.Now(),
		version:   version,
		db:        db,
		sessions:  sessions,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Sessions int    `json:"sessions"`
}

// Health reports liveness with a database ping.
// GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	resp := HealthResponse{Status: "ok", Database: "memory"}
	if h.sessions != nil {
		resp.Sessions = h.sessions.Len()
	}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Database = "unreachable"
			c.JSON(http.StatusServiceUnavailable, dto.Response{Success: false, Data: resp})
			return
		}
		resp.Database = "ok"
	}
	h.Success(c, resp)
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

// GetSystemInfo returns version and uptime.
// GET /api/v1/system/info
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	h.Success(c, SystemInfoResponse{
		Name:      "SaaSFilter Dashboard API",
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	})
}

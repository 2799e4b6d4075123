package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agentic-project/agentic/pkg/llm"
	"github.com/agentic-project/agentic/pkg/version"
)

const (
	healthStatusHealthy   = "healthy"
	healthStatusUnhealthy = "unhealthy"
)

// HealthCheck is one component's health entry.
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is the reply for GET /api/health.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	Checks    map[string]HealthCheck `json:"checks"`
	Endpoints []llm.EndpointHealth   `json:"endpoints,omitempty"`
}

// health handles GET /api/health. The store check gates liveness; LLM
// endpoint health is reported but never fails the probe, so an LLM
// outage does not get the runtime restarted.
func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := healthStatusHealthy
	checks := make(map[string]HealthCheck)

	if s.store != nil {
		if err := s.store.Ping(ctx); err != nil {
			status = healthStatusUnhealthy
			checks["store"] = HealthCheck{Status: healthStatusUnhealthy, Message: err.Error()}
		} else {
			checks["store"] = HealthCheck{Status: healthStatusHealthy}
		}
	}

	var endpoints []llm.EndpointHealth
	if s.llmHealth != nil {
		endpoints = s.llmHealth()
	}

	httpStatus := http.StatusOK
	if status == healthStatusUnhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Version:   version.GitCommit,
		Checks:    checks,
		Endpoints: endpoints,
	})
}

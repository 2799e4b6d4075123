package llm

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/agentic-project/agentic/pkg/config"
	openai "github.com/sashabaranov/go-openai"
)

// HealthStatus is the health classification of one endpoint.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
)

// unhealthyAfter is the consecutive-failure count that demotes a degraded
// endpoint to unhealthy.
const unhealthyAfter = 3

// probeTimeout bounds a single health probe request.
const probeTimeout = 10 * time.Second

// EndpointHealth is a point-in-time snapshot of one endpoint's health.
type EndpointHealth struct {
	Name                string       `json:"name"`
	URL                 string       `json:"url"`
	Status              HealthStatus `json:"status"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	AvgResponseMs       float64      `json:"avg_response_ms"`
	LastCheck           time.Time    `json:"last_check"`
}

// endpoint pairs an endpoint's configuration and API client with its
// mutable health state. Health state is guarded by a short critical
// section; the API client is safe for concurrent use.
type endpoint struct {
	cfg config.EndpointConfig
	api *openai.Client

	mu                  sync.Mutex
	status              HealthStatus
	consecutiveFailures int
	avgResponseMs       float64
	lastCheck           time.Time
}

// recordSuccess transitions the endpoint to healthy and folds the observed
// latency into the running average. Returns the previous status when the
// status changed, or "" otherwise.
func (e *endpoint) recordSuccess(latency time.Duration) HealthStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	prev := e.status
	e.status = StatusHealthy
	e.consecutiveFailures = 0
	e.lastCheck = time.Now()

	ms := float64(latency.Milliseconds())
	if e.avgResponseMs == 0 {
		e.avgResponseMs = ms
	} else {
		// Exponential moving average, biased toward recent samples.
		e.avgResponseMs = e.avgResponseMs*0.7 + ms*0.3
	}

	if prev != StatusHealthy {
		return prev
	}
	return ""
}

// recordFailure marks a failure: healthy endpoints degrade immediately,
// degraded endpoints become unhealthy after unhealthyAfter consecutive
// failures. Returns the previous status when the status changed.
func (e *endpoint) recordFailure() HealthStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	prev := e.status
	e.consecutiveFailures++
	e.lastCheck = time.Now()

	switch {
	case e.status == StatusHealthy:
		e.status = StatusDegraded
	case e.status == StatusDegraded && e.consecutiveFailures >= unhealthyAfter:
		e.status = StatusUnhealthy
	}

	if prev != e.status {
		return prev
	}
	return ""
}

// snapshot returns a copy of the endpoint's health state.
func (e *endpoint) snapshot() EndpointHealth {
	e.mu.Lock()
	defer e.mu.Unlock()
	return EndpointHealth{
		Name:                e.cfg.Name,
		URL:                 e.cfg.URL,
		Status:              e.status,
		ConsecutiveFailures: e.consecutiveFailures,
		AvgResponseMs:       e.avgResponseMs,
		LastCheck:           e.lastCheck,
	}
}

// statusRank orders health states for endpoint selection (lower is better).
func (e *endpoint) statusRank() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.status {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// avgLatencyMs returns the endpoint's running average latency.
func (e *endpoint) avgLatencyMs() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.avgResponseMs
}

// StartHealthChecks launches the background probe loop. Each endpoint's
// /models listing is probed every interval; transitions are logged once
// per state change. The loop stops when ctx is cancelled.
func (c *Client) StartHealthChecks(ctx context.Context) {
	interval := c.cfg.HealthCheckInterval()
	if interval <= 0 {
		interval = config.DefaultHealthInterval * time.Second
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.probeAll(ctx)
			}
		}
	}()
}

// probeAll probes every endpoint concurrently and waits for completion.
func (c *Client) probeAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, ep := range c.endpoints {
		wg.Add(1)
		go func(ep *endpoint) {
			defer wg.Done()
			c.probe(ctx, ep)
		}(ep)
	}
	wg.Wait()
}

// probe performs one /models health check against an endpoint.
func (c *Client) probe(ctx context.Context, ep *endpoint) {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	start := time.Now()
	_, err := ep.api.ListModels(probeCtx)
	latency := time.Since(start)

	if err != nil {
		if prev := ep.recordFailure(); prev != "" {
			slog.Warn("LLM endpoint health changed",
				"endpoint", ep.cfg.Name,
				"from", prev,
				"to", ep.snapshot().Status,
				"error", err)
		}
		return
	}

	if prev := ep.recordSuccess(latency); prev != "" {
		slog.Info("LLM endpoint recovered",
			"endpoint", ep.cfg.Name,
			"from", prev,
			"to", StatusHealthy,
			"latency_ms", latency.Milliseconds())
	}
}

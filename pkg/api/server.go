// Package api exposes the runtime over HTTP: task submission, progress
// streaming via server-sent events, session history, and health.
package api

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/agentic-project/agentic/pkg/bridge"
	"github.com/agentic-project/agentic/pkg/llm"
	"github.com/agentic-project/agentic/pkg/orchestrator"
	"github.com/agentic-project/agentic/pkg/store"
	"github.com/agentic-project/agentic/pkg/workflow"
)

// Server is the HTTP front of the orchestrator. Submitted tasks run in
// the background; clients follow them over the stream endpoint.
type Server struct {
	orch      *orchestrator.Orchestrator
	store     store.Store
	llmHealth func() []llm.EndpointHealth

	mu   sync.Mutex
	runs map[string]*taskRun
}

// NewServer creates a Server. The store is optional and only used by
// the health and history endpoints; pass the same one given to the
// orchestrator.
func NewServer(orch *orchestrator.Orchestrator, st store.Store) *Server {
	return &Server{
		orch:  orch,
		store: st,
		runs:  make(map[string]*taskRun),
	}
}

// SetLLMHealth attaches the endpoint health snapshot source, included
// in health responses when set.
func (s *Server) SetLLMHealth(fn func() []llm.EndpointHealth) {
	s.llmHealth = fn
}

// Routes registers all handlers on the given engine.
func (s *Server) Routes(r *gin.Engine) {
	r.GET("/api/health", s.health)

	tasks := r.Group("/api/tasks")
	tasks.POST("", s.createTask)
	tasks.GET("", s.listTasks)
	tasks.GET("/:id", s.getTask)
	tasks.GET("/:id/stream", s.streamTask)
	tasks.POST("/:id/cancel", s.cancelTask)
}

// Handler returns a ready-to-serve http.Handler with middleware
// applied.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), securityHeaders())
	s.Routes(r)
	return r
}

// securityHeaders sets standard security response headers.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}

// startRun launches one task in the background and registers its run
// so stream subscribers can attach at any point.
func (s *Server) startRun(task string, opts ...orchestrator.TaskOption) (string, error) {
	taskID := uuid.NewString()
	opts = append(opts, orchestrator.WithTaskID(taskID))

	runCtx, cancel := context.WithCancel(context.Background())
	events, err := s.orch.ExecuteTaskStream(runCtx, task, opts...)
	if err != nil {
		cancel()
		return "", err
	}

	run := newTaskRun(cancel)
	s.mu.Lock()
	s.runs[taskID] = run
	s.mu.Unlock()

	go func() {
		defer cancel()
		for ev := range events {
			for _, u := range bridge.Translate(ev) {
				run.publish(u)
			}
			if data, ok := ev.Data.(workflow.WorkflowCompletedData); ok {
				run.finish(data)
			}
		}
		// Streams always end with a terminal event; this covers a run
		// torn down before it produced one.
		run.close()
	}()
	return taskID, nil
}

func (s *Server) run(taskID string) *taskRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs[taskID]
}

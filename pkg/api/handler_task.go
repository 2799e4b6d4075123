package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/agentic-project/agentic/pkg/orchestrator"
	"github.com/agentic-project/agentic/pkg/store"
	"github.com/agentic-project/agentic/pkg/workflow"
)

// CreateTaskRequest is the body for POST /api/tasks.
type CreateTaskRequest struct {
	Task string `json:"task" binding:"required"`
	// Domain skips classification when set. One of coding, research,
	// data_analysis, general.
	Domain string `json:"domain,omitempty"`
}

// CreateTaskResponse is the reply for POST /api/tasks.
type CreateTaskResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// createTask handles POST /api/tasks. The task runs in the background;
// the response carries the ID to follow on the stream endpoint.
func (s *Server) createTask(c *gin.Context) {
	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var opts []orchestrator.TaskOption
	if req.Domain != "" {
		domain := workflow.Domain(req.Domain)
		if !validDomain(domain) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown domain: " + req.Domain})
			return
		}
		opts = append(opts, orchestrator.WithDomain(domain))
	}

	taskID, err := s.startRun(req.Task, opts...)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, CreateTaskResponse{
		TaskID: taskID,
		Status: string(workflow.StatusInProgress),
	})
}

// getTask handles GET /api/tasks/:id. The session record is preferred;
// without a store the in-memory run state answers.
func (s *Server) getTask(c *gin.Context) {
	id := c.Param("id")

	if s.store != nil {
		session, err := s.store.GetSession(c.Request.Context(), id)
		if err == nil {
			c.JSON(http.StatusOK, session)
			return
		}
		if !errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	run := s.run(id)
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	terminal, done := run.status()
	if !done || terminal == nil {
		c.JSON(http.StatusOK, gin.H{"id": id, "status": workflow.StatusInProgress})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":     id,
		"status": terminal.Status,
		"result": terminal.Result,
	})
}

// listTasks handles GET /api/tasks.
func (s *Server) listTasks(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusOK, []*store.Session{})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	sessions, err := s.store.ListSessions(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if sessions == nil {
		sessions = []*store.Session{}
	}
	c.JSON(http.StatusOK, sessions)
}

// streamTask handles GET /api/tasks/:id/stream, serving progress
// updates as server-sent events. Late subscribers get the full history
// replayed before live updates.
func (s *Server) streamTask(c *gin.Context) {
	run := s.run(c.Param("id"))
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}

	sub := run.subscribe()
	defer run.unsubscribe(sub)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Stream(func(w io.Writer) bool {
		select {
		case update, ok := <-sub:
			if !ok {
				return false
			}
			c.SSEvent(string(update.Type), update)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// cancelTask handles POST /api/tasks/:id/cancel.
func (s *Server) cancelTask(c *gin.Context) {
	run := s.run(c.Param("id"))
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	run.cancel()
	c.JSON(http.StatusAccepted, gin.H{"status": "cancelling"})
}

func validDomain(d workflow.Domain) bool {
	for _, known := range workflow.Domains() {
		if d == known {
			return true
		}
	}
	return false
}

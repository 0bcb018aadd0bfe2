package agentrpc

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/RevCBH/ragweb/internal/flags"
	"github.com/RevCBH/ragweb/internal/model"
	"github.com/RevCBH/ragweb/internal/store"
)

var _ Flags = (*flags.Cache)(nil)

// Store is the subset of store.Store the RPC server needs.
type Store interface {
	FindTasks(conds ...store.Cond) ([]*model.Task, error)
	GetTask(id string) (*model.Task, error)
	UpdateTask(t *model.Task) error
}

// Flags is the subset of flags.Cache the RPC server needs: stamping
// last-seen-at on every poll, and committing a DBSTATUS probe's mode
// result.
type Flags interface {
	TouchLastSeenAt(ctx context.Context, backend string, now time.Time) error
	Set(ctx context.Context, name, backend string, value *string, now int64) error
}

// Server serves the Agent<->Controller HTTP/JSON RPC (spec.md §4.5).
type Server struct {
	store         Store
	flags         Flags
	secret        string
	knownBackends map[string]bool
	now           func() time.Time
}

// NewServer builds a Server. now defaults to time.Now when nil.
func NewServer(s Store, f Flags, secret string, knownBackends []string, now func() time.Time) *Server {
	if now == nil {
		now = time.Now
	}
	known := make(map[string]bool, len(knownBackends))
	for _, b := range knownBackends {
		known[b] = true
	}
	return &Server{store: s, flags: f, secret: secret, knownBackends: known, now: now}
}

// Register wires the Agent RPC routes onto an existing gin router.
func (s *Server) Register(r gin.IRouter) {
	r.GET("/:backend/tasks/", s.handleListTasks)
	r.POST("/:backend/task/update/", s.handleTaskUpdate)
}

func (s *Server) authenticate(c *gin.Context, backend string) bool {
	if !s.knownBackends[backend] {
		c.JSON(http.StatusNotFound, errorResponse{Error: "not found"})
		return false
	}
	auth := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix {
		c.JSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return false
	}
	if _, err := verifyToken(s.secret, auth[len(prefix):], backend); err != nil {
		c.JSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return false
	}
	return true
}

func (s *Server) handleListTasks(c *gin.Context) {
	backend := c.Param("backend")
	if !s.authenticate(c, backend) {
		return
	}

	tasks, err := s.store.FindTasks(store.Eq("backend", backend), store.Eq("active", true))
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		return taskTypeRank(tasks[i].Type) < taskTypeRank(tasks[j].Type)
	})

	if err := s.flags.TouchLastSeenAt(c.Request.Context(), backend, s.now()); err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	dtos := make([]TaskDTO, len(tasks))
	for i, t := range tasks {
		dtos[i] = TaskDTO{ID: t.ID, Backend: t.Backend, Type: string(t.Type), Definition: t.Definition, CreatedAt: t.CreatedAt}
	}
	c.JSON(http.StatusOK, TasksResponse{Tasks: dtos})
}

// taskTypeRank sorts DBSTATUS before RUNJOB/CANCELJOB in the same
// response (spec.md §4.5), so a reconciling Controller always sees a
// maintenance-window update before re-attempting a db job this tick.
func taskTypeRank(t model.TaskType) int {
	if t == model.TaskDBStatus {
		return 0
	}
	return 1
}

func (s *Server) handleTaskUpdate(c *gin.Context) {
	backend := c.Param("backend")
	if !s.authenticate(c, backend) {
		return
	}

	var req TaskUpdateRequest
	if err := json.Unmarshal([]byte(c.PostForm("payload")), &req); err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "Error updating task"})
		return
	}

	task, err := s.store.GetTask(req.TaskID)
	if err == store.ErrNotFound {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "unknown task"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	if task.Backend != backend {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "unknown task"})
		return
	}

	task.AgentStage = req.Stage
	task.AgentComplete = req.Complete
	if req.Results != nil {
		task.AgentResults = *req.Results
	}
	if req.TimestampNS != nil {
		task.AgentTimestampNS = req.TimestampNS
	}

	now := s.now()
	if req.Complete {
		task.Active = false
		finished := now.Unix()
		task.FinishedAt = &finished
	}

	if err := s.store.UpdateTask(task); err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	if task.Type == model.TaskDBStatus && req.Complete {
		mode := dbStatusMode(req.Results)
		var modeValue *string
		if mode != "" {
			modeValue = &mode
		}
		if err := s.flags.Set(c.Request.Context(), model.FlagMode, backend, modeValue, now.Unix()); err != nil {
			c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
			return
		}
	}

	c.JSON(http.StatusOK, TaskUpdateResponse{Response: "Update successful"})
}

// dbStatusMode extracts the probe's reported status from its results
// JSON, falling back to "" (the normal/non-maintenance mode) — spec.md
// §4.4.4's `{"status": last_line}` payload, where last_line is one of
// the allowlisted values the Agent already validated.
func dbStatusMode(results *string) string {
	if results == nil {
		return ""
	}
	var payload struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal([]byte(*results), &payload); err != nil {
		return ""
	}
	if payload.Status != model.FlagValueModeDBMaint {
		return ""
	}
	return payload.Status
}

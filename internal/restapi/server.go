package restapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/RevCBH/ragweb/internal/dag"
	"github.com/RevCBH/ragweb/internal/model"
	"github.com/RevCBH/ragweb/internal/store"
)

// JobCreator is the subset of *dag.Resolver the server needs.
type JobCreator interface {
	CreateJobs(req model.CreateRequest) ([]*model.Job, error)
}

// Store is the subset of store.Store the server needs beyond job
// creation: cancellation, status lookups, and the SavedRapRequest
// idempotency check on /rap/create/.
type Store interface {
	FindJobs(conds ...store.Cond) ([]*model.Job, error)
	UpdateJobWhere(patch map[string]any, conds ...store.Cond) (int64, error)
	SaveRapRequest(r *model.SavedRapRequest) error
	GetSavedRapRequest(rapID string) (*model.SavedRapRequest, error)
}

// Flags is the subset of flags.Cache the server needs for GET
// /backend/status/.
type Flags interface {
	Get(ctx context.Context, name, backend string) (*model.Flag, error)
	IsPaused(ctx context.Context, backend string) (bool, error)
	Mode(ctx context.Context, backend string) (string, error)
	ManualDBMaintenance(ctx context.Context, backend string) (bool, error)
}

// Server serves the external inbound client REST surface (spec.md §6.1).
type Server struct {
	jobs          JobCreator
	store         Store
	flags         Flags
	secret        string
	knownBackends []string
	now           func() time.Time
}

// NewServer builds a Server. now defaults to time.Now when nil.
func NewServer(jobs JobCreator, s Store, f Flags, secret string, knownBackends []string, now func() time.Time) *Server {
	if now == nil {
		now = time.Now
	}
	return &Server{jobs: jobs, store: s, flags: f, secret: secret, knownBackends: knownBackends, now: now}
}

// Register wires the client REST routes onto an existing gin router.
func (s *Server) Register(r gin.IRouter) {
	r.POST("/rap/create/", s.handleCreate)
	r.POST("/rap/cancel/", s.handleCancel)
	r.POST("/rap/status/", s.handleStatus)
	r.GET("/backend/status/", s.handleBackendStatus)
}

func bearerToken(c *gin.Context) (string, bool) {
	auth := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix {
		return "", false
	}
	return auth[len(prefix):], true
}

func (s *Server) authenticateBackend(c *gin.Context, backend string) bool {
	token, ok := bearerToken(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return false
	}
	if _, err := verifyToken(s.secret, token, backend); err != nil {
		c.JSON(http.StatusForbidden, errorResponse{Error: "forbidden"})
		return false
	}
	return true
}

// authenticateAny validates the bearer token without pinning it to a
// single backend, returning the backends it is scoped to.
func (s *Server) authenticateAny(c *gin.Context) ([]string, bool) {
	token, ok := bearerToken(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return nil, false
	}
	backends, err := anyBackendAllowed(s.secret, token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return nil, false
	}
	return backends, true
}

func (s *Server) handleCreate(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	var req CreateJobRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if !s.authenticateBackend(c, req.Backend) {
		return
	}

	if existing, err := s.store.GetSavedRapRequest(req.ID); err == nil {
		if !json.Valid(existing.Original) || !jsonEqual(existing.Original, body) {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "rap_id already used with different request data"})
			return
		}
	} else if err != store.ErrNotFound {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	var scope model.AnalysisScope
	if len(req.AnalysisScope) > 0 {
		_ = json.Unmarshal(req.AnalysisScope, &scope)
	}

	createReq := model.CreateRequest{
		ID:                   req.ID,
		Backend:              req.Backend,
		Workspace:            req.Workspace,
		RepoURL:              req.RepoURL,
		Commit:               req.Commit,
		Branch:               req.Branch,
		DatabaseName:         model.DatabaseName(req.DatabaseName),
		RequestedActions:     req.RequestedActions,
		ForceRunDependencies: req.ForceRunDependencies,
		CodelistsOK:          req.CodelistsOK,
		CreatedBy:            req.CreatedBy,
		Project:              req.Project,
		Orgs:                 req.Orgs,
		AnalysisScope:        scope,
		Original:             body,
	}

	jobs, err := s.jobs.CreateJobs(createReq)
	switch err.(type) {
	case nil:
		if saveErr := s.store.SaveRapRequest(&model.SavedRapRequest{RapID: req.ID, Original: body, CreatedAt: s.now().Unix()}); saveErr != nil {
			c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
			return
		}
		c.JSON(http.StatusCreated, CreateJobResponse{RapID: req.ID, Jobs: toJobDTOs(jobs)})
		return
	case *dag.NothingToDoError:
		c.JSON(http.StatusOK, CreateJobResponse{RapID: req.ID, Jobs: nil})
		return
	case *dag.ValidationError, *dag.StaleCodelistsError:
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	default:
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
}

func jsonEqual(a, b []byte) bool {
	var av, bv any
	if json.Unmarshal(a, &av) != nil || json.Unmarshal(b, &bv) != nil {
		return false
	}
	na, errA := json.Marshal(av)
	nb, errB := json.Marshal(bv)
	return errA == nil && errB == nil && string(na) == string(nb)
}

func (s *Server) handleCancel(c *gin.Context) {
	var req CancelJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	jobs, err := s.store.FindJobs(store.Eq("rap_id", req.RapID), store.In("action", toAny(req.Actions)...))
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	if len(jobs) == 0 {
		c.JSON(http.StatusNotFound, errorResponse{Error: "no jobs exist"})
		return
	}
	if !s.authenticateBackend(c, jobs[0].Backend) {
		return
	}

	ids := make([]any, len(jobs))
	for i, j := range jobs {
		ids[i] = j.ID
	}
	affected, err := s.store.UpdateJobWhere(map[string]any{"cancelled": true}, store.In("id", ids...))
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	c.JSON(http.StatusOK, CancelJobResponse{Cancelled: affected})
}

func (s *Server) handleStatus(c *gin.Context) {
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if _, ok := s.authenticateAny(c); !ok {
		return
	}

	jobs, err := s.store.FindJobs(store.In("rap_id", toAny(req.RapIDs)...))
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	found := make(map[string]bool, len(jobs))
	for _, j := range jobs {
		found[j.RapID] = true
	}
	var unrecognised []string
	for _, id := range req.RapIDs {
		if !found[id] {
			unrecognised = append(unrecognised, id)
		}
	}

	c.JSON(http.StatusOK, StatusResponse{Jobs: toJobDTOs(jobs), UnrecognisedRapIDs: unrecognised})
}

func (s *Server) handleBackendStatus(c *gin.Context) {
	backends, ok := s.authenticateAny(c)
	if !ok {
		return
	}
	allowed := make(map[string]bool, len(backends))
	for _, b := range backends {
		allowed[b] = true
	}

	ctx := c.Request.Context()
	dtos := make([]BackendStatusDTO, 0, len(s.knownBackends))
	for _, backend := range s.knownBackends {
		if !allowed[backend] {
			continue
		}
		dtos = append(dtos, s.backendStatus(ctx, backend))
	}
	c.JSON(http.StatusOK, BackendStatusResponse{Backends: dtos})
}

func (s *Server) backendStatus(ctx context.Context, backend string) BackendStatusDTO {
	dto := BackendStatusDTO{Slug: backend}

	if f, err := s.flags.Get(ctx, model.FlagLastSeenAt, backend); err == nil && f.Value != nil {
		dto.LastSeen = f.Value
	}

	if paused, err := s.flags.IsPaused(ctx, backend); err == nil && paused {
		if f, ferr := s.flags.Get(ctx, model.FlagPaused, backend); ferr == nil {
			dto.Paused = PauseStatus{Status: true, Since: &f.UpdatedAt}
		} else {
			dto.Paused = PauseStatus{Status: true}
		}
	}

	mode, err := s.flags.Mode(ctx, backend)
	if err == nil && mode == model.FlagValueModeDBMaint {
		maintType := "scheduled"
		if manual, merr := s.flags.ManualDBMaintenance(ctx, backend); merr == nil && manual {
			maintType = "manual"
		}
		since := (*int64)(nil)
		if f, ferr := s.flags.Get(ctx, model.FlagMode, backend); ferr == nil {
			since = &f.UpdatedAt
		}
		dto.DBMaintenance = DBMaintenanceStatus{Status: true, Since: since, Type: maintType}
	}

	return dto
}

func toJobDTOs(jobs []*model.Job) []JobDTO {
	dtos := make([]JobDTO, len(jobs))
	for i, j := range jobs {
		dtos[i] = JobDTO{
			ID:         j.ID,
			RapID:      j.RapID,
			Backend:    j.Backend,
			Workspace:  j.Workspace,
			Action:     j.Action,
			State:      string(j.State),
			StatusCode: string(j.StatusCode),
			Cancelled:  j.Cancelled,
			CreatedAt:  j.CreatedAt,
			UpdatedAt:  j.UpdatedAt,
		}
	}
	return dtos
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

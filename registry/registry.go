// Package registry owns the project lifecycle: quota-guarded creation,
// owner-scoped reads and status transitions.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"zerodb/auth"
	"zerodb/database"
	"zerodb/errs"
	"zerodb/lock"
	"zerodb/models"
	"zerodb/quota"
)

// Store is the persistence the registry needs. *database.DB,
// *database.SQLiteStore and *database.MemoryStore satisfy it.
type Store interface {
	CreateProject(ctx context.Context, project *models.Project) error
	GetProject(ctx context.Context, projectID string) (*models.Project, error)
	ListProjects(ctx context.Context, filter models.ProjectFilter) ([]models.Project, int64, error)
	CountProjectsByOwner(ctx context.Context, ownerUserID string) (int, error)
	UpdateProjectStatus(ctx context.Context, projectID string, status models.ProjectStatus, updatedAt time.Time) (*models.Project, error)
}

// Policy may veto a status transition. A non-nil error aborts the change
// and is returned to the caller as-is.
type Policy interface {
	Approve(ctx context.Context, project *models.Project, next models.ProjectStatus, reason string) error
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(ctx context.Context, project *models.Project, next models.ProjectStatus, reason string) error

func (f PolicyFunc) Approve(ctx context.Context, project *models.Project, next models.ProjectStatus, reason string) error {
	return f(ctx, project, next, reason)
}

type Option func(*Registry)

// WithClock replaces time.Now. Timestamps are stored in UTC at microsecond
// precision regardless of the clock.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

func WithPolicy(policy Policy) Option {
	return func(r *Registry) {
		r.policy = policy
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

type Registry struct {
	store  Store
	guard  *quota.Guard
	locker lock.Locker
	now    func() time.Time
	policy Policy
	logger zerolog.Logger
}

func New(store Store, guard *quota.Guard, locker lock.Locker, opts ...Option) *Registry {
	r := &Registry{
		store:  store,
		guard:  guard,
		locker: locker,
		now:    time.Now,
		logger: log.With().Str("component", "registry").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create provisions a project for principal. The request may pick any tier
// up to the principal's plan tier; higher tiers are rejected with 403. The
// count, quota check and insert run under the owner's lock, so concurrent
// creates never exceed the tier limit.
func (r *Registry) Create(ctx context.Context, principal auth.Principal, req models.CreateProjectRequest) (*models.Project, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, errs.Validation("Project name must not be empty.", errs.ValidationError{
			Loc:  []string{"body", "name"},
			Msg:  "field required",
			Type: "value_error.missing",
		})
	}

	rawTier := req.Tier
	if strings.TrimSpace(rawTier) == "" {
		rawTier = string(principal.Tier)
	} else if requested, err := models.ParseTier(rawTier); err == nil && requested.Exceeds(principal.Tier) {
		r.logger.Warn().Str("owner", principal.OwnerID).Str("plan_tier", string(principal.Tier)).
			Str("requested_tier", string(requested)).Msg("Project creation above plan tier rejected")
		return nil, errs.Unauthorized(fmt.Sprintf(
			"Tier '%s' exceeds your plan tier '%s'.", requested, principal.Tier))
	}

	unlock, err := r.lockOwner(ctx, principal.OwnerID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	count, err := r.store.CountProjectsByOwner(ctx, principal.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to count projects: %w", err)
	}

	tier, err := r.guard.Check(rawTier, count)
	if err != nil {
		r.logger.Info().Str("owner", principal.OwnerID).Str("tier", rawTier).Int("count", count).
			Str("error_code", string(errs.GetCode(err))).Msg("Project creation rejected")
		return nil, err
	}

	databaseEnabled := true
	if req.DatabaseEnabled != nil {
		databaseEnabled = *req.DatabaseEnabled
	}

	now := r.timestamp()
	project := &models.Project{
		ID:              uuid.NewString(),
		Name:            name,
		Description:     req.Description,
		Tier:            tier,
		Status:          models.StatusActive,
		DatabaseEnabled: databaseEnabled,
		OwnerUserID:     principal.OwnerID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := r.store.CreateProject(ctx, project); err != nil {
		return nil, err
	}

	r.logger.Info().Str("project_id", project.ID).Str("owner", project.OwnerUserID).
		Str("tier", string(tier)).Int("count", count+1).Msg("Project created")
	return project, nil
}

// Get returns one of principal's projects.
func (r *Registry) Get(ctx context.Context, principal auth.Principal, projectID string) (*models.Project, error) {
	project, err := r.load(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.OwnerUserID != principal.OwnerID {
		return nil, errs.Unauthorized("Not authorized to access this project")
	}
	return project, nil
}

// List returns a page of principal's projects, newest first.
func (r *Registry) List(ctx context.Context, principal auth.Principal, params models.ListProjectsParams) (*models.ProjectsResponse, error) {
	filter := models.ProjectFilter{OwnerUserID: principal.OwnerID}

	if strings.TrimSpace(params.Status) != "" {
		status, err := models.ParseProjectStatus(params.Status)
		if err != nil {
			msg := fmt.Sprintf("Invalid status filter '%s'. Valid statuses are: %s.", params.Status, models.StatusNames())
			return nil, errs.InvalidQuery(msg, errs.ValidationError{
				Loc:  []string{"query", "status"},
				Msg:  msg,
				Type: "value_error.enum",
			})
		}
		filter.Status = &status
	}

	filter.Limit, filter.Offset = database.Pagination(params.Limit, params.Offset)

	projects, total, err := r.store.ListProjects(ctx, filter)
	if err != nil {
		return nil, err
	}

	for i := range projects {
		if err := verify(&projects[i]); err != nil {
			return nil, err
		}
	}

	return &models.ProjectsResponse{
		Items:  projects,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}

// Usage reports principal's quota consumption against tier.
func (r *Registry) Usage(ctx context.Context, principal auth.Principal, tier models.Tier) (*models.Usage, error) {
	count, err := r.store.CountProjectsByOwner(ctx, principal.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to count projects: %w", err)
	}
	return &models.Usage{
		Tier:          tier,
		ProjectsUsed:  count,
		ProjectsLimit: r.guard.Limit(tier),
	}, nil
}

// Delete soft-deletes one of principal's projects. The row is kept with
// status DELETED and stops counting against the quota.
func (r *Registry) Delete(ctx context.Context, principal auth.Principal, projectID string) (*models.Project, error) {
	if _, err := r.Get(ctx, principal, projectID); err != nil {
		return nil, err
	}
	return r.transition(ctx, principal.OwnerID, projectID, models.StatusDeleted, "deleted by owner")
}

// Transition moves a project to next on behalf of an administrator.
func (r *Registry) Transition(ctx context.Context, projectID, next, reason string) (*models.Project, error) {
	status, err := models.ParseProjectStatus(next)
	if err != nil {
		msg := fmt.Sprintf("Invalid status '%s'. Valid statuses are: %s.", next, models.StatusNames())
		return nil, errs.Validation(msg, errs.ValidationError{
			Loc:  []string{"body", "status"},
			Msg:  msg,
			Type: "value_error.enum",
		})
	}

	project, err := r.load(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return r.transition(ctx, project.OwnerUserID, projectID, status, reason)
}

func (r *Registry) transition(ctx context.Context, ownerID, projectID string, next models.ProjectStatus, reason string) (*models.Project, error) {
	unlock, err := r.lockOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Re-read under the lock; the status may have moved since the caller looked.
	project, err := r.load(ctx, projectID)
	if err != nil {
		return nil, err
	}

	if !project.Status.CanTransitionTo(next) {
		return nil, errs.InvalidStatusTransition(fmt.Sprintf(
			"Cannot transition project %s from %s to %s.", projectID, project.Status, next))
	}

	if r.policy != nil {
		if err := r.policy.Approve(ctx, project, next, reason); err != nil {
			return nil, err
		}
	}

	updated, err := r.store.UpdateProjectStatus(ctx, projectID, next, r.timestamp())
	if err != nil {
		if errors.Is(err, database.ErrProjectNotFound) {
			return nil, errs.ProjectNotFound(projectID)
		}
		return nil, err
	}

	r.logger.Info().Str("project_id", projectID).Str("owner", ownerID).
		Str("from", string(project.Status)).Str("to", string(next)).Str("reason", reason).
		Msg("Project status changed")
	return updated, nil
}

func (r *Registry) load(ctx context.Context, projectID string) (*models.Project, error) {
	project, err := r.store.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, database.ErrProjectNotFound) {
			return nil, errs.ProjectNotFound(projectID)
		}
		return nil, err
	}
	if err := verify(project); err != nil {
		return nil, err
	}
	return project, nil
}

func (r *Registry) lockOwner(ctx context.Context, ownerID string) (func(), error) {
	unlock, err := r.locker.Lock(ctx, "owner:"+ownerID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("failed to acquire owner lock: %w", err)
		}
		return nil, errs.ServiceUnavailable(fmt.Errorf("failed to acquire owner lock: %w", err))
	}
	return unlock, nil
}

func (r *Registry) timestamp() time.Time {
	return r.now().UTC().Truncate(time.Microsecond)
}

// verify rejects rows whose status is missing or outside the closed set.
// Such a row is a consistency failure, never something to show a caller.
func verify(project *models.Project) error {
	if project.Status == "" {
		return errs.Internal(fmt.Errorf("project %s has no status", project.ID))
	}
	if !project.Status.Valid() {
		return errs.Internal(fmt.Errorf("project %s has unknown status %q", project.ID, project.Status))
	}
	return nil
}

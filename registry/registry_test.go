package registry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"zerodb/auth"
	"zerodb/database"
	"zerodb/errs"
	"zerodb/lock"
	"zerodb/models"
	"zerodb/quota"
)

var fixedNow = time.Date(2026, 2, 1, 12, 0, 0, 123456789, time.UTC)

var (
	alice = auth.Principal{OwnerID: "alice", Tier: models.TierFree}
	bob   = auth.Principal{OwnerID: "bob", Tier: models.TierStarter}
)

func newTestRegistry(t *testing.T, opts ...Option) (*Registry, *database.MemoryStore) {
	t.Helper()

	store := database.NewMemoryStore()
	opts = append([]Option{
		WithClock(func() time.Time { return fixedNow }),
		WithLogger(zerolog.Nop()),
	}, opts...)
	reg := New(store, quota.NewGuard(nil, ""), lock.NewMemoryLocker(), opts...)
	return reg, store
}

func createN(t *testing.T, reg *Registry, principal auth.Principal, n int) []*models.Project {
	t.Helper()

	var projects []*models.Project
	for i := 0; i < n; i++ {
		p, err := reg.Create(context.Background(), principal, models.CreateProjectRequest{Name: fmt.Sprintf("p%d", i)})
		require.NoError(t, err)
		projects = append(projects, p)
	}
	return projects
}

func TestCreate(t *testing.T) {
	reg, _ := newTestRegistry(t)

	disabled := false
	project, err := reg.Create(context.Background(), alice, models.CreateProjectRequest{
		Name:            "  analytics  ",
		Description:     "events",
		DatabaseEnabled: &disabled,
	})
	require.NoError(t, err)

	want := &models.Project{
		ID:              project.ID,
		Name:            "analytics",
		Description:     "events",
		Tier:            models.TierFree,
		Status:          models.StatusActive,
		DatabaseEnabled: false,
		OwnerUserID:     "alice",
		CreatedAt:       fixedNow.Truncate(time.Microsecond),
		UpdatedAt:       fixedNow.Truncate(time.Microsecond),
	}
	if diff := cmp.Diff(want, project); diff != "" {
		t.Errorf("Create() mismatch (-want +got):\n%s", diff)
	}
	assert.NotEmpty(t, project.ID)
}

func TestCreate_DefaultsDatabaseEnabled(t *testing.T) {
	reg, _ := newTestRegistry(t)

	project, err := reg.Create(context.Background(), alice, models.CreateProjectRequest{Name: "p"})
	require.NoError(t, err)
	assert.True(t, project.DatabaseEnabled)
}

func TestCreate_RequestTierAtOrBelowPlan(t *testing.T) {
	reg, _ := newTestRegistry(t)

	project, err := reg.Create(context.Background(), bob, models.CreateProjectRequest{Name: "p", Tier: "FREE"})
	require.NoError(t, err)
	assert.Equal(t, models.TierFree, project.Tier)

	project, err = reg.Create(context.Background(), bob, models.CreateProjectRequest{Name: "p", Tier: "starter"})
	require.NoError(t, err)
	assert.Equal(t, models.TierStarter, project.Tier)

	pro := auth.Principal{OwnerID: "carol", Tier: models.TierProfessional}
	project, err = reg.Create(context.Background(), pro, models.CreateProjectRequest{Name: "p", Tier: "Pro"})
	require.NoError(t, err)
	assert.Equal(t, models.TierProfessional, project.Tier)
}

func TestCreate_RequestTierAbovePlanRejected(t *testing.T) {
	reg, store := newTestRegistry(t)

	for i := 0; i < 5; i++ {
		_, err := reg.Create(context.Background(), alice, models.CreateProjectRequest{
			Name: fmt.Sprintf("p%d", i),
			Tier: "enterprise",
		})
		require.Error(t, err)

		resolved := errs.Resolve(err)
		assert.Equal(t, 403, resolved.StatusCode())
		assert.Equal(t, errs.CodeUnauthorized, resolved.Response().ErrorCode)
		assert.Contains(t, resolved.Response().Detail, "enterprise")
		assert.Contains(t, resolved.Response().Detail, "free")
	}

	count, err := store.CountProjectsByOwner(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// The free ceiling still applies once the plan tier is used.
	createN(t, reg, alice, 3)
	_, err = reg.Create(context.Background(), alice, models.CreateProjectRequest{Name: "extra", Tier: "starter"})
	assert.True(t, errs.IsCode(err, errs.CodeUnauthorized))
	_, err = reg.Create(context.Background(), alice, models.CreateProjectRequest{Name: "extra"})
	assert.True(t, errs.IsCode(err, errs.CodeProjectLimitExceeded))
}

func TestCreate_EmptyName(t *testing.T) {
	reg, _ := newTestRegistry(t)

	_, err := reg.Create(context.Background(), alice, models.CreateProjectRequest{Name: "   "})
	require.Error(t, err)

	resolved := errs.Resolve(err)
	assert.Equal(t, errs.CodeValidationError, resolved.Response().ErrorCode)
	require.Len(t, resolved.ValidationErrors, 1)
	assert.Equal(t, []string{"body", "name"}, resolved.ValidationErrors[0].Loc)
}

func TestCreate_InvalidTier(t *testing.T) {
	reg, store := newTestRegistry(t)

	_, err := reg.Create(context.Background(), alice, models.CreateProjectRequest{Name: "p", Tier: "gold"})
	require.Error(t, err)
	assert.True(t, errs.IsCode(err, errs.CodeInvalidTier))
	assert.Contains(t, errs.Resolve(err).Response().Detail, "free, starter, professional, enterprise")

	count, err := store.CountProjectsByOwner(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestCreate_LimitExceeded(t *testing.T) {
	reg, store := newTestRegistry(t)
	createN(t, reg, alice, 3)

	_, err := reg.Create(context.Background(), alice, models.CreateProjectRequest{Name: "one too many"})
	require.Error(t, err)

	resolved := errs.Resolve(err)
	assert.Equal(t, 429, resolved.StatusCode())
	assert.Equal(t, errs.CodeProjectLimitExceeded, resolved.Response().ErrorCode)
	assert.Contains(t, resolved.Response().Detail, "3/3")
	assert.Contains(t, resolved.Response().Detail, "starter")

	count, err := store.CountProjectsByOwner(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// Other owners are unaffected.
	_, err = reg.Create(context.Background(), bob, models.CreateProjectRequest{Name: "bob's"})
	assert.NoError(t, err)
}

func TestCreate_DeletedProjectsFreeQuota(t *testing.T) {
	reg, _ := newTestRegistry(t)
	projects := createN(t, reg, alice, 3)

	_, err := reg.Delete(context.Background(), alice, projects[0].ID)
	require.NoError(t, err)

	_, err = reg.Create(context.Background(), alice, models.CreateProjectRequest{Name: "replacement"})
	assert.NoError(t, err)
}

func TestCreate_ConcurrentNeverExceedsLimit(t *testing.T) {
	reg, store := newTestRegistry(t)
	const attempts = 20
	limit := 10 // starter

	ctx := context.Background()
	results := make([]error, attempts)
	var g errgroup.Group
	for i := 0; i < attempts; i++ {
		i := i
		g.Go(func() error {
			_, err := reg.Create(ctx, bob, models.CreateProjectRequest{Name: fmt.Sprintf("race-%d", i)})
			results[i] = err
			return nil
		})
	}
	require.NoError(t, g.Wait())

	succeeded, rejected := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case errs.IsCode(err, errs.CodeProjectLimitExceeded):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, limit, succeeded)
	assert.Equal(t, attempts-limit, rejected)

	count, err := store.CountProjectsByOwner(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, limit, count)
}

func TestCreate_LockFailure(t *testing.T) {
	store := database.NewMemoryStore()
	locker := lockerFunc(func(context.Context, string) (func(), error) {
		return nil, errors.New("redis: connection refused")
	})
	reg := New(store, quota.NewGuard(nil, ""), locker, WithLogger(zerolog.Nop()))

	_, err := reg.Create(context.Background(), alice, models.CreateProjectRequest{Name: "p"})
	require.Error(t, err)
	assert.Equal(t, 503, errs.Resolve(err).StatusCode())
	assert.NotContains(t, errs.Resolve(err).Response().Detail, "redis")
}

type lockerFunc func(ctx context.Context, key string) (func(), error)

func (f lockerFunc) Lock(ctx context.Context, key string) (func(), error) {
	return f(ctx, key)
}

func TestGet(t *testing.T) {
	reg, _ := newTestRegistry(t)
	created := createN(t, reg, alice, 1)[0]

	t.Run("owner can read", func(t *testing.T) {
		first, err := reg.Get(context.Background(), alice, created.ID)
		require.NoError(t, err)
		second, err := reg.Get(context.Background(), alice, created.ID)
		require.NoError(t, err)

		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("repeated Get() mismatch (-first +second):\n%s", diff)
		}
		assert.Equal(t, models.StatusActive, first.Status)
	})

	t.Run("other owner is forbidden", func(t *testing.T) {
		_, err := reg.Get(context.Background(), bob, created.ID)
		require.Error(t, err)
		assert.Equal(t, 403, errs.Resolve(err).StatusCode())
		assert.True(t, errs.IsCode(err, errs.CodeUnauthorized))
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := reg.Get(context.Background(), alice, "missing-id")
		require.Error(t, err)
		resolved := errs.Resolve(err)
		assert.Equal(t, 404, resolved.StatusCode())
		assert.Equal(t, errs.CodeProjectNotFound, resolved.Response().ErrorCode)
		assert.Contains(t, resolved.Response().Detail, "missing-id")
	})
}

func TestGet_CorruptStatusIsInternal(t *testing.T) {
	for _, status := range []models.ProjectStatus{"", "ARCHIVED"} {
		t.Run(fmt.Sprintf("status %q", status), func(t *testing.T) {
			reg, store := newTestRegistry(t)
			store.Put(models.Project{ID: "bad", Name: "bad", OwnerUserID: "alice", Tier: models.TierFree, Status: status})

			_, err := reg.Get(context.Background(), alice, "bad")
			require.Error(t, err)

			resolved := errs.Resolve(err)
			assert.Equal(t, 500, resolved.StatusCode())
			assert.Equal(t, errs.InternalDetail, resolved.Response().Detail)
		})
	}
}

func TestList(t *testing.T) {
	reg, _ := newTestRegistry(t)
	projects := createN(t, reg, alice, 3)
	createN(t, reg, bob, 2)

	_, err := reg.Transition(context.Background(), projects[1].ID, "suspended", "billing")
	require.NoError(t, err)

	t.Run("all statuses", func(t *testing.T) {
		resp, err := reg.List(context.Background(), alice, models.ListProjectsParams{})
		require.NoError(t, err)
		assert.Equal(t, int64(3), resp.Total)
		assert.Equal(t, 50, resp.Limit)
		assert.Equal(t, 0, resp.Offset)
		for _, p := range resp.Items {
			assert.Equal(t, "alice", p.OwnerUserID)
			assert.True(t, p.Status.Valid(), "status %q", p.Status)
		}
	})

	t.Run("status filter", func(t *testing.T) {
		resp, err := reg.List(context.Background(), alice, models.ListProjectsParams{Status: "Suspended"})
		require.NoError(t, err)
		require.Len(t, resp.Items, 1)
		assert.Equal(t, projects[1].ID, resp.Items[0].ID)
	})

	t.Run("invalid status filter", func(t *testing.T) {
		_, err := reg.List(context.Background(), alice, models.ListProjectsParams{Status: "archived"})
		require.Error(t, err)
		resolved := errs.Resolve(err)
		assert.Equal(t, 422, resolved.StatusCode())
		assert.Equal(t, errs.CodeInvalidQuery, resolved.Response().ErrorCode)
		require.Len(t, resolved.Response().ValidationErrors, 1)
		assert.Equal(t, []string{"query", "status"}, resolved.Response().ValidationErrors[0].Loc)
	})

	t.Run("limit is clamped", func(t *testing.T) {
		resp, err := reg.List(context.Background(), alice, models.ListProjectsParams{Limit: 5000, Offset: 1})
		require.NoError(t, err)
		assert.Equal(t, 1000, resp.Limit)
		assert.Len(t, resp.Items, 2)
	})
}

func TestList_CorruptStatusIsInternal(t *testing.T) {
	reg, store := newTestRegistry(t)
	createN(t, reg, alice, 1)
	store.Put(models.Project{ID: "bad", Name: "bad", OwnerUserID: "alice", Tier: models.TierFree, CreatedAt: fixedNow})

	_, err := reg.List(context.Background(), alice, models.ListProjectsParams{})
	require.Error(t, err)
	assert.Equal(t, 500, errs.Resolve(err).StatusCode())
}

func TestUsage(t *testing.T) {
	reg, _ := newTestRegistry(t)
	createN(t, reg, alice, 2)

	usage, err := reg.Usage(context.Background(), alice, models.TierFree)
	require.NoError(t, err)
	assert.Equal(t, &models.Usage{Tier: models.TierFree, ProjectsUsed: 2, ProjectsLimit: 3}, usage)

	usage, err = reg.Usage(context.Background(), alice, models.TierEnterprise)
	require.NoError(t, err)
	assert.Equal(t, quota.Unlimited, usage.ProjectsLimit)
}

func TestDelete(t *testing.T) {
	later := fixedNow.Add(time.Hour)
	now := fixedNow
	reg, _ := newTestRegistry(t, WithClock(func() time.Time { return now }))
	project := createN(t, reg, alice, 1)[0]

	now = later
	deleted, err := reg.Delete(context.Background(), alice, project.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDeleted, deleted.Status)
	assert.True(t, deleted.UpdatedAt.Equal(later.Truncate(time.Microsecond)))
	assert.True(t, deleted.CreatedAt.Equal(project.CreatedAt))

	got, err := reg.Get(context.Background(), alice, project.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDeleted, got.Status)

	_, err = reg.Delete(context.Background(), alice, project.ID)
	require.Error(t, err)
	assert.Equal(t, 409, errs.Resolve(err).StatusCode())
	assert.True(t, errs.IsCode(err, errs.CodeInvalidStatusTransition))
}

func TestDelete_OtherOwner(t *testing.T) {
	reg, _ := newTestRegistry(t)
	project := createN(t, reg, alice, 1)[0]

	_, err := reg.Delete(context.Background(), bob, project.ID)
	require.Error(t, err)
	assert.Equal(t, 403, errs.Resolve(err).StatusCode())

	got, err := reg.Get(context.Background(), alice, project.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, got.Status)
}

func TestTransition(t *testing.T) {
	tests := []struct {
		name     string
		path     []string
		next     string
		wantCode errs.Code
	}{
		{name: "suspend active", next: "SUSPENDED"},
		{name: "reactivate suspended", path: []string{"SUSPENDED"}, next: "ACTIVE"},
		{name: "delete suspended", path: []string{"SUSPENDED"}, next: "DELETED"},
		{name: "active to active", next: "ACTIVE", wantCode: errs.CodeInvalidStatusTransition},
		{name: "deleted is terminal", path: []string{"DELETED"}, next: "ACTIVE", wantCode: errs.CodeInvalidStatusTransition},
		{name: "unknown status", next: "ARCHIVED", wantCode: errs.CodeValidationError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, _ := newTestRegistry(t)
			project := createN(t, reg, alice, 1)[0]
			for _, step := range tt.path {
				_, err := reg.Transition(context.Background(), project.ID, step, "setup")
				require.NoError(t, err)
			}

			updated, err := reg.Transition(context.Background(), project.ID, tt.next, "test")
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.True(t, errs.IsCode(err, tt.wantCode), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, models.ProjectStatus(tt.next), updated.Status)
		})
	}
}

func TestTransition_UnknownProject(t *testing.T) {
	reg, _ := newTestRegistry(t)

	_, err := reg.Transition(context.Background(), "missing", "SUSPENDED", "")
	require.Error(t, err)
	assert.True(t, errs.IsCode(err, errs.CodeProjectNotFound))
}

func TestTransition_PolicyVeto(t *testing.T) {
	veto := errs.Unauthorized("Suspension requires billing review")
	var seen []string
	policy := PolicyFunc(func(_ context.Context, p *models.Project, next models.ProjectStatus, reason string) error {
		seen = append(seen, fmt.Sprintf("%s->%s:%s", p.Status, next, reason))
		if next == models.StatusSuspended {
			return veto
		}
		return nil
	})
	reg, _ := newTestRegistry(t, WithPolicy(policy))
	project := createN(t, reg, alice, 1)[0]

	_, err := reg.Transition(context.Background(), project.ID, "SUSPENDED", "late payment")
	assert.ErrorIs(t, err, veto)

	got, err := reg.Get(context.Background(), alice, project.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, got.Status)

	_, err = reg.Transition(context.Background(), project.ID, "DELETED", "closed")
	require.NoError(t, err)

	assert.Equal(t, []string{"ACTIVE->SUSPENDED:late payment", "ACTIVE->DELETED:closed"}, seen)
}

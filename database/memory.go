package database

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"zerodb/models"
)

// MemoryStore keeps projects in process memory. It is the default store for
// development and tests. Every read returns copies, so callers cannot mutate
// stored rows.
type MemoryStore struct {
	mu       sync.RWMutex
	projects map[string]models.Project
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{projects: make(map[string]models.Project)}
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

func (s *MemoryStore) CreateProject(_ context.Context, project *models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.projects[project.ID]; exists {
		return fmt.Errorf("failed to create project: duplicate id %s", project.ID)
	}
	s.projects[project.ID] = *project
	return nil
}

func (s *MemoryStore) GetProject(_ context.Context, projectID string) (*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	project, ok := s.projects[projectID]
	if !ok {
		return nil, ErrProjectNotFound
	}
	return &project, nil
}

func (s *MemoryStore) ListProjects(_ context.Context, filter models.ProjectFilter) ([]models.Project, int64, error) {
	limit, offset := Pagination(filter.Limit, filter.Offset)

	s.mu.RLock()
	matched := []models.Project{}
	for _, project := range s.projects {
		if project.OwnerUserID != filter.OwnerUserID {
			continue
		}
		if filter.Status != nil && project.Status != *filter.Status {
			continue
		}
		matched = append(matched, project)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := int64(len(matched))
	if offset >= len(matched) {
		return []models.Project{}, total, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}

	return matched[offset:end], total, nil
}

func (s *MemoryStore) CountProjectsByOwner(_ context.Context, ownerUserID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, project := range s.projects {
		if project.OwnerUserID == ownerUserID && project.Status != models.StatusDeleted {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) UpdateProjectStatus(_ context.Context, projectID string, status models.ProjectStatus, updatedAt time.Time) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	project, ok := s.projects[projectID]
	if !ok {
		return nil, ErrProjectNotFound
	}
	project.Status = status
	project.UpdatedAt = updatedAt
	s.projects[projectID] = project

	return &project, nil
}

// Put stores project as-is with no checks. Tests use it to seed
// rows a real write path would never produce.
func (s *MemoryStore) Put(project models.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[project.ID] = project
}

package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"zerodb/models"
)

// CreateProject inserts a fully-populated project. The caller supplies id,
// status and timestamps.
func (db *DB) CreateProject(ctx context.Context, project *models.Project) error {
	query := fmt.Sprintf(`
		INSERT INTO projects (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, projectColumns)

	_, err := db.Pool.Exec(ctx, query,
		project.ID, project.Name, project.Description, string(project.Tier), string(project.Status),
		project.DatabaseEnabled, project.OwnerUserID, project.CreatedAt, project.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	log.Debug().Str("project_id", project.ID).Str("owner", project.OwnerUserID).Msg("Created project")
	return nil
}

func (db *DB) GetProject(ctx context.Context, projectID string) (*models.Project, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM projects
		WHERE %s = $1
	`, projectColumns, columnID)

	project, err := scanProject(db.Pool.QueryRow(ctx, query, projectID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return project, nil
}

// ListProjects returns one page of the owner's projects, newest first, and
// the total number of matches. Uses COUNT(*) OVER() to get the total in the
// same round trip.
func (db *DB) ListProjects(ctx context.Context, filter models.ProjectFilter) ([]models.Project, int64, error) {
	start := time.Now()
	defer func() {
		log.Debug().Dur("duration", time.Since(start)).Str("owner", filter.OwnerUserID).
			Msg("ListProjects")
	}()

	limit, offset := Pagination(filter.Limit, filter.Offset)

	qb := NewQueryBuilder()
	qb.AddCondition(columnOwnerUserID, filter.OwnerUserID)
	if filter.Status != nil {
		qb.AddCondition(columnStatus, string(*filter.Status))
	}

	// SAFETY: All user input is parameterized via $N placeholders.
	query := fmt.Sprintf(`
		SELECT %s, COUNT(*) OVER() AS total_count
		FROM projects
		%s
		ORDER BY %s DESC, %s DESC
		LIMIT $%d OFFSET $%d
	`, projectColumns, qb.WhereClause(), columnCreatedAt, columnID, qb.NextArgNum(), qb.NextArgNum()+1)

	args := append(qb.Args(), limit, offset)

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects, total, err := scanProjectsWithTotal(rows)
	if err != nil {
		return nil, 0, err
	}

	// The window total is lost when the page is past the end.
	if len(projects) == 0 && offset > 0 {
		countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM projects %s`, qb.WhereClause())
		if err := db.Pool.QueryRow(ctx, countQuery, qb.Args()...).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("failed to count projects: %w", err)
		}
	}

	return projects, total, nil
}

// CountProjectsByOwner counts projects that hold quota: everything not DELETED.
func (db *DB) CountProjectsByOwner(ctx context.Context, ownerUserID string) (int, error) {
	qb := NewQueryBuilder()
	qb.AddCondition(columnOwnerUserID, ownerUserID)
	qb.AddNotEqual(columnStatus, string(models.StatusDeleted))

	var count int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM projects %s`, qb.WhereClause())
	if err := db.Pool.QueryRow(ctx, query, qb.Args()...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count projects: %w", err)
	}

	return count, nil
}

// UpdateProjectStatus sets status and updated_at and returns the updated row.
func (db *DB) UpdateProjectStatus(ctx context.Context, projectID string, status models.ProjectStatus, updatedAt time.Time) (*models.Project, error) {
	query := fmt.Sprintf(`
		UPDATE projects
		SET %s = $1, %s = $2
		WHERE %s = $3
		RETURNING %s
	`, columnStatus, columnUpdatedAt, columnID, projectColumns)

	project, err := scanProject(db.Pool.QueryRow(ctx, query, string(status), updatedAt, projectID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to update project status: %w", err)
	}

	log.Debug().Str("project_id", projectID).Str("status", string(status)).Msg("Updated project status")
	return project, nil
}

// Helper functions

type rowScanner interface {
	Scan(dest ...interface{}) error
}

type rowsScanner interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanProject(row rowScanner) (*models.Project, error) {
	var project models.Project
	var tier, status string
	err := row.Scan(
		&project.ID,
		&project.Name,
		&project.Description,
		&tier,
		&status,
		&project.DatabaseEnabled,
		&project.OwnerUserID,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	project.Tier = models.Tier(tier)
	project.Status = models.ProjectStatus(status)
	return &project, nil
}

func scanProjectsWithTotal(rows rowsScanner) ([]models.Project, int64, error) {
	projects := []models.Project{}
	var total int64

	for rows.Next() {
		var project models.Project
		var tier, status string
		err := rows.Scan(
			&project.ID,
			&project.Name,
			&project.Description,
			&tier,
			&status,
			&project.DatabaseEnabled,
			&project.OwnerUserID,
			&project.CreatedAt,
			&project.UpdatedAt,
			&total,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan project: %w", err)
		}
		project.Tier = models.Tier(tier)
		project.Status = models.ProjectStatus(status)
		projects = append(projects, project)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating projects: %w", err)
	}

	return projects, total, nil
}

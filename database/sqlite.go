package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"zerodb/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	tier TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'ACTIVE'
		CHECK (status IN ('ACTIVE', 'SUSPENDED', 'DELETED')),
	database_enabled INTEGER NOT NULL DEFAULT 1,
	owner_user_id TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_projects_owner_status ON projects(owner_user_id, status);
`

// SQLiteStore is an embedded project store for single-node deployments.
// Timestamps are stored as fixed-width RFC3339 text in UTC.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply sqlite schema: %w", err)
	}

	log.Info().Str("path", path).Msg("SQLite database opened")
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() {
	if err := s.db.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close sqlite database")
	}
}

func (s *SQLiteStore) CreateProject(ctx context.Context, project *models.Project) error {
	query := fmt.Sprintf(`
		INSERT INTO projects (%s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, projectColumns)

	_, err := s.db.ExecContext(ctx, query,
		project.ID, project.Name, project.Description, string(project.Tier), string(project.Status),
		project.DatabaseEnabled, project.OwnerUserID,
		formatTime(project.CreatedAt), formatTime(project.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetProject(ctx context.Context, projectID string) (*models.Project, error) {
	query := fmt.Sprintf(`SELECT %s FROM projects WHERE %s = ?`, projectColumns, columnID)

	project, err := scanSQLiteProject(s.db.QueryRowContext(ctx, query, projectID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return project, nil
}

func (s *SQLiteStore) ListProjects(ctx context.Context, filter models.ProjectFilter) ([]models.Project, int64, error) {
	limit, offset := Pagination(filter.Limit, filter.Offset)

	qb := NewSQLiteQueryBuilder()
	qb.AddCondition(columnOwnerUserID, filter.OwnerUserID)
	if filter.Status != nil {
		qb.AddCondition(columnStatus, string(*filter.Status))
	}

	var total int64
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM projects %s`, qb.WhereClause())
	if err := s.db.QueryRowContext(ctx, countQuery, qb.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count projects: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM projects
		%s
		ORDER BY %s DESC, %s DESC
		LIMIT ? OFFSET ?
	`, projectColumns, qb.WhereClause(), columnCreatedAt, columnID)

	args := append(qb.Args(), limit, offset)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := []models.Project{}
	for rows.Next() {
		project, err := scanSQLiteProject(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, *project)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating projects: %w", err)
	}

	return projects, total, nil
}

func (s *SQLiteStore) CountProjectsByOwner(ctx context.Context, ownerUserID string) (int, error) {
	qb := NewSQLiteQueryBuilder()
	qb.AddCondition(columnOwnerUserID, ownerUserID)
	qb.AddNotEqual(columnStatus, string(models.StatusDeleted))

	var count int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM projects %s`, qb.WhereClause())
	if err := s.db.QueryRowContext(ctx, query, qb.Args()...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count projects: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) UpdateProjectStatus(ctx context.Context, projectID string, status models.ProjectStatus, updatedAt time.Time) (*models.Project, error) {
	query := fmt.Sprintf(`UPDATE projects SET %s = ?, %s = ? WHERE %s = ?`,
		columnStatus, columnUpdatedAt, columnID)

	result, err := s.db.ExecContext(ctx, query, string(status), formatTime(updatedAt), projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to update project status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to update project status: %w", err)
	}
	if affected == 0 {
		return nil, ErrProjectNotFound
	}

	return s.GetProject(ctx, projectID)
}

// sqliteTimeLayout is fixed width so text ordering matches time ordering.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func scanSQLiteProject(row rowScanner) (*models.Project, error) {
	var project models.Project
	var tier, status, createdAt, updatedAt string
	err := row.Scan(
		&project.ID,
		&project.Name,
		&project.Description,
		&tier,
		&status,
		&project.DatabaseEnabled,
		&project.OwnerUserID,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	project.Tier = models.Tier(tier)
	project.Status = models.ProjectStatus(status)

	if project.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
	}
	if project.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("invalid updated_at %q: %w", updatedAt, err)
	}

	return &project, nil
}

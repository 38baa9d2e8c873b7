package repository

import (
	"context"
	"errors"
	"fmt"

	"app/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// ErrProjectNotFound is returned when no project row exists for the id.
var ErrProjectNotFound = errors.New("project_not_found")

// ProjectRepository persists generated pages. Title and HTML updates are
// last-write-wins; that is acceptable here because nothing financial is
// stored on the project row.
type ProjectRepository interface {
	CreateProject(ctx context.Context, userID, title string) (*model.Project, error)
	GetProject(ctx context.Context, projectID string) (*model.Project, error)
	ListProjects(ctx context.Context, userID string, limit, offset int) ([]model.Project, error)
	UpdateHTML(ctx context.Context, projectID, html string) error
	UpdateTitle(ctx context.Context, projectID, userID, title string) error
}

type projectRepo struct {
	pool   PgxPool
	logger zerolog.Logger
}

// NewProjectRepo creates a new ProjectRepository.
func NewProjectRepo(pool PgxPool, logger zerolog.Logger) ProjectRepository {
	return &projectRepo{pool: pool, logger: logger}
}

func (r *projectRepo) CreateProject(ctx context.Context, userID, title string) (*model.Project, error) {
	const q = `
        INSERT INTO projects (user_id, title, html)
        VALUES ($1, $2, '')
        RETURNING id, user_id, title, html, created_at, updated_at
    `
	var p model.Project
	err := r.pool.QueryRow(ctx, q, userID, title).Scan(&p.ID, &p.UserID, &p.Title, &p.HTML, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating project for user %s: %w", userID, err)
	}
	return &p, nil
}

func (r *projectRepo) GetProject(ctx context.Context, projectID string) (*model.Project, error) {
	const q = `
        SELECT id, user_id, title, html, created_at, updated_at
        FROM projects
        WHERE id = $1
    `
	var p model.Project
	err := r.pool.QueryRow(ctx, q, projectID).Scan(&p.ID, &p.UserID, &p.Title, &p.HTML, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("fetching project %s: %w", projectID, err)
	}
	return &p, nil
}

func (r *projectRepo) ListProjects(ctx context.Context, userID string, limit, offset int) ([]model.Project, error) {
	const q = `
        SELECT id, user_id, title, html, created_at, updated_at
        FROM projects
        WHERE user_id = $1
        ORDER BY updated_at DESC
        LIMIT $2 OFFSET $3
    `
	rows, err := r.pool.Query(ctx, q, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing projects for user %s: %w", userID, err)
	}
	defer rows.Close()

	var projects []model.Project
	for rows.Next() {
		var p model.Project
		if err := rows.Scan(&p.ID, &p.UserID, &p.Title, &p.HTML, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning project row: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating project rows: %w", err)
	}
	return projects, nil
}

func (r *projectRepo) UpdateHTML(ctx context.Context, projectID, html string) error {
	const q = `UPDATE projects SET html = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, projectID, html)
	if err != nil {
		return fmt.Errorf("updating html for project %s: %w", projectID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProjectNotFound
	}
	return nil
}

func (r *projectRepo) UpdateTitle(ctx context.Context, projectID, userID, title string) error {
	const q = `UPDATE projects SET title = $3, updated_at = NOW() WHERE id = $1 AND user_id = $2`
	tag, err := r.pool.Exec(ctx, q, projectID, userID, title)
	if err != nil {
		return fmt.Errorf("updating title for project %s: %w", projectID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProjectNotFound
	}
	return nil
}

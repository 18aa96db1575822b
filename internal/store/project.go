package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/teamtrack/apiserver/types"
)

// ProjectRepository handles persistence for projects and project membership.
type ProjectRepository struct {
	db *sql.DB
}

func NewProjectRepository(db *sql.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

const projectColumns = `id, name, description, department, assigned_lead, progress, status, priority,
		deadline, completed_at, total_estimated_hours, total_actual_hours, base_points,
		points_distributed, is_active, created_at, updated_at`

func scanProject(row interface{ Scan(...any) error }) (types.Project, error) {
	var p types.Project
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Department,
		&p.AssignedLead,
		&p.Progress,
		&p.Status,
		&p.Priority,
		&p.Deadline,
		&p.CompletedAt,
		&p.TotalEstimatedHours,
		&p.TotalActualHours,
		&p.BasePoints,
		&p.PointsDistributed,
		&p.IsActive,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}

func (r *ProjectRepository) GetByID(ctx context.Context, id int) (types.Project, error) {
	const query = `SELECT ` + projectColumns + ` FROM projects WHERE id = $1 AND is_active = TRUE`
	project, err := scanProject(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Project{}, ErrNotFound
		}
		return types.Project{}, err
	}

	members, err := r.MemberIDs(ctx, project.ID)
	if err != nil {
		return types.Project{}, err
	}
	project.AssignedUsers = members
	return project, nil
}

// List returns active projects filtered by the caller's visibility:
// leadID > 0 restricts to projects led by that user, memberID > 0 to projects
// the user is assigned to. Both zero means no restriction (admin view).
func (r *ProjectRepository) List(ctx context.Context, leadID, memberID, offset, limit int) ([]types.Project, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	const countQuery = `
		SELECT COUNT(1)
		FROM projects p
		WHERE p.is_active = TRUE
		  AND ($1 = 0 OR p.assigned_lead = $1)
		  AND ($2 = 0 OR EXISTS (SELECT 1 FROM project_users pu WHERE pu.project_id = p.id AND pu.user_id = $2))`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, leadID, memberID).Scan(&total); err != nil {
		return nil, 0, err
	}

	const listQuery = `
		SELECT ` + projectColumns + `
		FROM projects p
		WHERE p.is_active = TRUE
		  AND ($1 = 0 OR p.assigned_lead = $1)
		  AND ($2 = 0 OR EXISTS (SELECT 1 FROM project_users pu WHERE pu.project_id = p.id AND pu.user_id = $2))
		ORDER BY p.id
		OFFSET $3 LIMIT $4`
	rows, err := r.db.QueryContext(ctx, listQuery, leadID, memberID, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	projects := make([]types.Project, 0, limit)
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, 0, err
		}
		projects = append(projects, project)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range projects {
		members, err := r.MemberIDs(ctx, projects[i].ID)
		if err != nil {
			return nil, 0, err
		}
		projects[i].AssignedUsers = members
	}
	return projects, total, nil
}

func (r *ProjectRepository) Create(ctx context.Context, project types.Project) (types.Project, error) {
	now := time.Now()
	project.CreatedAt = now
	project.UpdatedAt = now

	const query = `
		INSERT INTO projects (name, description, department, assigned_lead, progress, status, priority,
			deadline, base_points, points_distributed, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE, TRUE, $10, $11)
		RETURNING id`
	err := r.db.QueryRowContext(
		ctx,
		query,
		project.Name,
		project.Description,
		project.Department,
		project.AssignedLead,
		project.Progress,
		project.Status,
		project.Priority,
		project.Deadline,
		project.BasePoints,
		project.CreatedAt,
		project.UpdatedAt,
	).Scan(&project.ID)
	if err != nil {
		return types.Project{}, err
	}
	return project, nil
}

// Update persists admin-mutable fields. Derived fields (progress, hours,
// completion, points flag) go through UpdateAggregates and
// ClaimPointsDistribution instead.
func (r *ProjectRepository) Update(ctx context.Context, project types.Project) (types.Project, error) {
	project.UpdatedAt = time.Now()

	const query = `
		UPDATE projects
		SET name = $1,
			description = $2,
			department = $3,
			assigned_lead = $4,
			status = $5,
			priority = $6,
			deadline = $7,
			base_points = $8,
			updated_at = $9
		WHERE id = $10 AND is_active = TRUE`
	result, err := r.db.ExecContext(
		ctx,
		query,
		project.Name,
		project.Description,
		project.Department,
		project.AssignedLead,
		project.Status,
		project.Priority,
		project.Deadline,
		project.BasePoints,
		project.UpdatedAt,
		project.ID,
	)
	if err != nil {
		return types.Project{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Project{}, err
	}
	if affected == 0 {
		return types.Project{}, ErrNotFound
	}
	return project, nil
}

// UpdateAggregates persists the output of the project progress aggregator.
func (r *ProjectRepository) UpdateAggregates(ctx context.Context, id, progress int, estimated, actual float64, status string, completedAt *time.Time) error {
	const query = `
		UPDATE projects
		SET progress = $1,
			total_estimated_hours = $2,
			total_actual_hours = $3,
			status = $4,
			completed_at = COALESCE(completed_at, $5),
			updated_at = NOW()
		WHERE id = $6`
	result, err := r.db.ExecContext(ctx, query, progress, estimated, actual, status, completedAt, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ClaimPointsDistribution atomically flips points_distributed from false to
// true. Exactly one concurrent caller wins the claim and runs the points
// engine; everyone else sees false.
func (r *ProjectRepository) ClaimPointsDistribution(ctx context.Context, id int) (bool, error) {
	const query = `
		UPDATE projects
		SET points_distributed = TRUE, updated_at = NOW()
		WHERE id = $1 AND points_distributed = FALSE`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *ProjectRepository) SoftDelete(ctx context.Context, id int) error {
	const query = `UPDATE projects SET is_active = FALSE, updated_at = NOW() WHERE id = $1 AND is_active = TRUE`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// AddMembers inserts the given users into the project membership set.
// Existing members are left untouched (add-to-set).
func (r *ProjectRepository) AddMembers(ctx context.Context, projectID int, userIDs []int) error {
	if len(userIDs) == 0 {
		return nil
	}

	const query = `
		INSERT INTO project_users (project_id, user_id)
		SELECT $1, unnest($2::integer[])
		ON CONFLICT DO NOTHING`
	_, err := r.db.ExecContext(ctx, query, projectID, intArray(userIDs))
	return err
}

// MemberIDs returns the project's assigned user IDs in insertion-stable order.
func (r *ProjectRepository) MemberIDs(ctx context.Context, projectID int) ([]int, error) {
	const query = `SELECT user_id FROM project_users WHERE project_id = $1 ORDER BY user_id`
	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, int(id))
	}
	return ids, rows.Err()
}

// IsMember reports whether the user belongs to the project's assigned set.
func (r *ProjectRepository) IsMember(ctx context.Context, projectID, userID int) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM project_users WHERE project_id = $1 AND user_id = $2)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, projectID, userID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/teamtrack/apiserver/types"
)

// ModuleRepository handles persistence for modules and module membership.
type ModuleRepository struct {
	db *sql.DB
}

func NewModuleRepository(db *sql.DB) *ModuleRepository {
	return &ModuleRepository{db: db}
}

const moduleColumns = `id, project_id, name, description, estimated_time, actual_time, progress,
		status, priority, start_date, end_date, created_at, updated_at`

func scanModule(row interface{ Scan(...any) error }) (types.Module, error) {
	var m types.Module
	err := row.Scan(
		&m.ID,
		&m.ProjectID,
		&m.Name,
		&m.Description,
		&m.EstimatedTime,
		&m.ActualTime,
		&m.Progress,
		&m.Status,
		&m.Priority,
		&m.StartDate,
		&m.EndDate,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	return m, err
}

func (r *ModuleRepository) GetByID(ctx context.Context, id int) (types.Module, error) {
	const query = `SELECT ` + moduleColumns + ` FROM modules WHERE id = $1`
	module, err := scanModule(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Module{}, ErrNotFound
		}
		return types.Module{}, err
	}

	assignees, err := r.AssigneeIDs(ctx, module.ID)
	if err != nil {
		return types.Module{}, err
	}
	module.AssignedUsers = assignees
	return module, nil
}

func (r *ModuleRepository) ListByProject(ctx context.Context, projectID int) ([]types.Module, error) {
	const query = `SELECT ` + moduleColumns + ` FROM modules WHERE project_id = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var modules []types.Module
	for rows.Next() {
		module, err := scanModule(rows)
		if err != nil {
			return nil, err
		}
		modules = append(modules, module)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range modules {
		assignees, err := r.AssigneeIDs(ctx, modules[i].ID)
		if err != nil {
			return nil, err
		}
		modules[i].AssignedUsers = assignees
	}
	return modules, nil
}

func (r *ModuleRepository) Create(ctx context.Context, module types.Module) (types.Module, error) {
	now := time.Now()
	module.CreatedAt = now
	module.UpdatedAt = now

	const query = `
		INSERT INTO modules (project_id, name, description, estimated_time, actual_time, progress,
			status, priority, start_date, end_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`
	err := r.db.QueryRowContext(
		ctx,
		query,
		module.ProjectID,
		module.Name,
		module.Description,
		module.EstimatedTime,
		module.ActualTime,
		module.Progress,
		module.Status,
		module.Priority,
		module.StartDate,
		module.EndDate,
		module.CreatedAt,
		module.UpdatedAt,
	).Scan(&module.ID)
	if err != nil {
		return types.Module{}, err
	}
	return module, nil
}

// Update persists module fields. The project reference is immutable and is
// deliberately absent from the SET list.
func (r *ModuleRepository) Update(ctx context.Context, module types.Module) (types.Module, error) {
	module.UpdatedAt = time.Now()

	const query = `
		UPDATE modules
		SET name = $1,
			description = $2,
			estimated_time = $3,
			actual_time = $4,
			progress = $5,
			status = $6,
			priority = $7,
			start_date = $8,
			end_date = $9,
			updated_at = $10
		WHERE id = $11`
	result, err := r.db.ExecContext(
		ctx,
		query,
		module.Name,
		module.Description,
		module.EstimatedTime,
		module.ActualTime,
		module.Progress,
		module.Status,
		module.Priority,
		module.StartDate,
		module.EndDate,
		module.UpdatedAt,
		module.ID,
	)
	if err != nil {
		return types.Module{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Module{}, err
	}
	if affected == 0 {
		return types.Module{}, ErrNotFound
	}
	return module, nil
}

func (r *ModuleRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM modules WHERE id = $1`
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

// AddAssignees inserts users into the module's assignment set (add-to-set).
func (r *ModuleRepository) AddAssignees(ctx context.Context, moduleID int, userIDs []int) error {
	if len(userIDs) == 0 {
		return nil
	}

	const query = `
		INSERT INTO module_users (module_id, user_id)
		SELECT $1, unnest($2::integer[])
		ON CONFLICT DO NOTHING`
	_, err := r.db.ExecContext(ctx, query, moduleID, intArray(userIDs))
	return err
}

func (r *ModuleRepository) AssigneeIDs(ctx context.Context, moduleID int) ([]int, error) {
	const query = `SELECT user_id FROM module_users WHERE module_id = $1 ORDER BY user_id`
	rows, err := r.db.QueryContext(ctx, query, moduleID)
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

// IsAssignee reports whether the user is assigned to the module.
func (r *ModuleRepository) IsAssignee(ctx context.Context, moduleID, userID int) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM module_users WHERE module_id = $1 AND user_id = $2)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, moduleID, userID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mcrescenzo/task-crusader-mcp/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r Repo) q(tx *sql.Tx) querier {
	if tx != nil {
		return tx
	}
	return r.DB
}

const campaignCols = `id,name,COALESCE(description,''),priority,status,created_at,updated_at,completed_at`

func scanCampaign(scan func(dest ...any) error) (domain.Campaign, error) {
	var c domain.Campaign
	var completedAt sql.NullString
	err := scan(&c.ID, &c.Name, &c.Description, &c.Priority, &c.Status, &c.CreatedAt, &c.UpdatedAt, &completedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	if err != nil {
		return c, err
	}
	if completedAt.Valid {
		c.CompletedAt = &completedAt.String
	}
	return c, nil
}

func (r Repo) InsertCampaign(ctx context.Context, tx *sql.Tx, c domain.Campaign) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO campaigns(id,name,description,priority,status,created_at,updated_at,completed_at) VALUES (?,?,?,?,?,?,?,?)`,
		c.ID, c.Name, nullable(c.Description), c.Priority, c.Status, c.CreatedAt, c.UpdatedAt, nullableStringPtr(c.CompletedAt))
	return err
}

func (r Repo) GetCampaign(ctx context.Context, id string) (domain.Campaign, error) {
	return r.GetCampaignTx(ctx, nil, id)
}

func (r Repo) GetCampaignTx(ctx context.Context, tx *sql.Tx, id string) (domain.Campaign, error) {
	row := r.q(tx).QueryRowContext(ctx, `SELECT `+campaignCols+` FROM campaigns WHERE id=?`, id)
	return scanCampaign(row.Scan)
}

// GetCampaignByName looks a campaign up by its unique name.
func (r Repo) GetCampaignByName(ctx context.Context, name string) (domain.Campaign, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+campaignCols+` FROM campaigns WHERE name=?`, name)
	return scanCampaign(row.Scan)
}

func (r Repo) ListCampaigns(ctx context.Context, status string) ([]domain.Campaign, error) {
	query := `SELECT ` + campaignCols + ` FROM campaigns`
	var args []any
	if status != "" {
		query += ` WHERE status=?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at ASC, id ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r Repo) UpdateCampaign(ctx context.Context, tx *sql.Tx, c domain.Campaign) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE campaigns SET name=?, description=?, priority=?, status=?, updated_at=?, completed_at=? WHERE id=?`,
		c.Name, nullable(c.Description), c.Priority, c.Status, c.UpdatedAt, nullableStringPtr(c.CompletedAt), c.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteCampaign(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := r.q(tx).ExecContext(ctx, `DELETE FROM campaigns WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) CountTasksByStatus(ctx context.Context, campaignID string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, count(*) FROM tasks WHERE campaign_id=? GROUP BY status`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		res[status] = count
	}
	return res, rows.Err()
}

const taskCols = `id,campaign_id,title,COALESCE(description,''),priority,status,created_at,updated_at,completed_at`

func scanTask(scan func(dest ...any) error) (domain.Task, error) {
	var t domain.Task
	var completedAt sql.NullString
	err := scan(&t.ID, &t.CampaignID, &t.Title, &t.Description, &t.Priority, &t.Status, &t.CreatedAt, &t.UpdatedAt, &completedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.String
	}
	return t, nil
}

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO tasks(id,campaign_id,title,description,priority,status,created_at,updated_at,completed_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		t.ID, t.CampaignID, t.Title, nullable(t.Description), t.Priority, t.Status, t.CreatedAt, t.UpdatedAt, nullableStringPtr(t.CompletedAt))
	return err
}

func (r Repo) UpdateTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE tasks SET title=?, description=?, priority=?, status=?, updated_at=?, completed_at=? WHERE id=?`,
		t.Title, nullable(t.Description), t.Priority, t.Status, t.UpdatedAt, nullableStringPtr(t.CompletedAt), t.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return r.GetTaskTx(ctx, nil, id)
}

func (r Repo) GetTaskTx(ctx context.Context, tx *sql.Tx, id string) (domain.Task, error) {
	row := r.q(tx).QueryRowContext(ctx, `SELECT `+taskCols+` FROM tasks WHERE id=?`, id)
	t, err := scanTask(row.Scan)
	if err != nil {
		return t, err
	}
	deps, err := r.ListTaskDependenciesTx(ctx, tx, t.ID)
	if err != nil {
		return t, err
	}
	t.DependsOn = deps
	return t, nil
}

type TaskFilters struct {
	CampaignID string
	Status     string
	Priority   string
	Limit      int
}

func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	var clauses []string
	var args []any
	if f.CampaignID != "" {
		clauses = append(clauses, "campaign_id=?")
		args = append(args, f.CampaignID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.Priority != "" {
		clauses = append(clauses, "priority=?")
		args = append(args, f.Priority)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + taskCols + ` FROM tasks ` + where + ` ORDER BY created_at ASC, id ASC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// ListCampaignTasks returns every task in the campaign with dependencies
// populated, in creation order. The resolver and the progress aggregator work
// off this snapshot.
func (r Repo) ListCampaignTasks(ctx context.Context, campaignID string) ([]domain.Task, error) {
	return r.ListCampaignTasksTx(ctx, nil, campaignID)
}

func (r Repo) ListCampaignTasksTx(ctx context.Context, tx *sql.Tx, campaignID string) ([]domain.Task, error) {
	rows, err := r.q(tx).QueryContext(ctx, `SELECT `+taskCols+` FROM tasks WHERE campaign_id=? ORDER BY created_at ASC, id ASC`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tasks []domain.Task
	byID := map[string]int{}
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		byID[t.ID] = len(tasks)
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	depRows, err := r.q(tx).QueryContext(ctx, `SELECT d.task_id, d.depends_on_task_id FROM task_deps d
JOIN tasks t ON t.id=d.task_id WHERE t.campaign_id=? ORDER BY d.task_id, d.position`, campaignID)
	if err != nil {
		return nil, err
	}
	defer depRows.Close()
	for depRows.Next() {
		var taskID, dep string
		if err := depRows.Scan(&taskID, &dep); err != nil {
			return nil, err
		}
		if i, ok := byID[taskID]; ok {
			tasks[i].DependsOn = append(tasks[i].DependsOn, dep)
		}
	}
	return tasks, depRows.Err()
}

func (r Repo) DeleteTask(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := r.q(tx).ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ListTaskDependencies(ctx context.Context, taskID string) ([]string, error) {
	return r.ListTaskDependenciesTx(ctx, nil, taskID)
}

func (r Repo) ListTaskDependenciesTx(ctx context.Context, tx *sql.Tx, taskID string) ([]string, error) {
	rows, err := r.q(tx).QueryContext(ctx, `SELECT depends_on_task_id FROM task_deps WHERE task_id=? ORDER BY position`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var deps []string
	for rows.Next() {
		var dep string
		if err := rows.Scan(&dep); err != nil {
			return nil, err
		}
		deps = append(deps, dep)
	}
	return deps, rows.Err()
}

// AddDependencies appends edges after the task's current last position so the
// caller-visible ordering is stable.
func (r Repo) AddDependencies(ctx context.Context, tx *sql.Tx, taskID string, deps []string) error {
	var next int
	row := r.q(tx).QueryRowContext(ctx, `SELECT COALESCE(MAX(position)+1,0) FROM task_deps WHERE task_id=?`, taskID)
	if err := row.Scan(&next); err != nil {
		return err
	}
	for _, d := range deps {
		if _, err := r.q(tx).ExecContext(ctx, `INSERT OR IGNORE INTO task_deps(task_id, depends_on_task_id, position) VALUES (?,?,?)`, taskID, d, next); err != nil {
			return err
		}
		next++
	}
	return nil
}

func (r Repo) RemoveDependencies(ctx context.Context, tx *sql.Tx, taskID string, deps []string) error {
	for _, d := range deps {
		if _, err := r.q(tx).ExecContext(ctx, `DELETE FROM task_deps WHERE task_id=? AND depends_on_task_id=?`, taskID, d); err != nil {
			return err
		}
	}
	return nil
}

// RemoveReverseDependencies strips the task from every other task's
// dependency list. Used on delete so no dangling references survive.
func (r Repo) RemoveReverseDependencies(ctx context.Context, tx *sql.Tx, taskID string) error {
	_, err := r.q(tx).ExecContext(ctx, `DELETE FROM task_deps WHERE depends_on_task_id=?`, taskID)
	return err
}

// ListDependents returns ids of tasks that depend on the given task.
func (r Repo) ListDependents(ctx context.Context, taskID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT task_id FROM task_deps WHERE depends_on_task_id=? ORDER BY task_id`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r Repo) LatestEvents(ctx context.Context, limit int, campaignID, evtType, entityKind, entityID string) ([]domain.Event, error) {
	clauses := []string{"1=1"}
	var args []any
	if campaignID != "" {
		clauses = append(clauses, "campaign_id=?")
		args = append(args, campaignID)
	}
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	if entityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, entityKind)
	}
	if entityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, entityID)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,ts,type,COALESCE(campaign_id,''),entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events %s ORDER BY id DESC LIMIT ?`, where)
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.CampaignID, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

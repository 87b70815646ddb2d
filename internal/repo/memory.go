package repo

import (
	"context"
	"database/sql"

	"github.com/mcrescenzo/task-crusader-mcp/internal/domain"
)

const memoryCols = `id,kind,task_id,campaign_id,content,met,result,order_index,created_at,updated_at`

func scanMemoryEntry(scan func(dest ...any) error) (domain.MemoryEntry, error) {
	var m domain.MemoryEntry
	var taskID, campaignID, result sql.NullString
	var met sql.NullBool
	err := scan(&m.ID, &m.Kind, &taskID, &campaignID, &m.Content, &met, &result, &m.OrderIndex, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	if err != nil {
		return m, err
	}
	if taskID.Valid {
		m.TaskID = &taskID.String
	}
	if campaignID.Valid {
		m.CampaignID = &campaignID.String
	}
	if met.Valid {
		m.Met = &met.Bool
	}
	if result.Valid {
		m.Result = &result.String
	}
	return m, nil
}

func (r Repo) InsertMemoryEntry(ctx context.Context, tx *sql.Tx, m domain.MemoryEntry) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO memory_entries(id,kind,task_id,campaign_id,content,met,result,order_index,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		m.ID, m.Kind, nullableStringPtr(m.TaskID), nullableStringPtr(m.CampaignID), m.Content, nullableBoolPtr(m.Met), nullableStringPtr(m.Result), m.OrderIndex, m.CreatedAt, m.UpdatedAt)
	return err
}

func (r Repo) GetMemoryEntry(ctx context.Context, id string) (domain.MemoryEntry, error) {
	return r.GetMemoryEntryTx(ctx, nil, id)
}

func (r Repo) GetMemoryEntryTx(ctx context.Context, tx *sql.Tx, id string) (domain.MemoryEntry, error) {
	row := r.q(tx).QueryRowContext(ctx, `SELECT `+memoryCols+` FROM memory_entries WHERE id=?`, id)
	return scanMemoryEntry(row.Scan)
}

func (r Repo) UpdateMemoryEntry(ctx context.Context, tx *sql.Tx, m domain.MemoryEntry) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE memory_entries SET content=?, met=?, result=?, order_index=?, updated_at=? WHERE id=?`,
		m.Content, nullableBoolPtr(m.Met), nullableStringPtr(m.Result), m.OrderIndex, m.UpdatedAt, m.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteMemoryEntry(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := r.q(tx).ExecContext(ctx, `DELETE FROM memory_entries WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListTaskMemory returns a task's attachments of one kind, in display order.
func (r Repo) ListTaskMemory(ctx context.Context, taskID, kind string) ([]domain.MemoryEntry, error) {
	return r.ListTaskMemoryTx(ctx, nil, taskID, kind)
}

func (r Repo) ListTaskMemoryTx(ctx context.Context, tx *sql.Tx, taskID, kind string) ([]domain.MemoryEntry, error) {
	rows, err := r.q(tx).QueryContext(ctx, `SELECT `+memoryCols+` FROM memory_entries WHERE task_id=? AND kind=? ORDER BY order_index, created_at, id`, taskID, kind)
	if err != nil {
		return nil, err
	}
	return collectMemoryEntries(rows)
}

func (r Repo) ListCampaignMemory(ctx context.Context, campaignID, kind string) ([]domain.MemoryEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+memoryCols+` FROM memory_entries WHERE campaign_id=? AND kind=? ORDER BY order_index, created_at, id`, campaignID, kind)
	if err != nil {
		return nil, err
	}
	return collectMemoryEntries(rows)
}

func collectMemoryEntries(rows *sql.Rows) ([]domain.MemoryEntry, error) {
	defer rows.Close()
	var res []domain.MemoryEntry
	for rows.Next() {
		m, err := scanMemoryEntry(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

// NextOrderIndex returns the order_index for a new attachment so appends land
// after everything already there.
func (r Repo) NextOrderIndex(ctx context.Context, tx *sql.Tx, kind string, taskID, campaignID *string) (int, error) {
	var next int
	var row *sql.Row
	if taskID != nil {
		row = r.q(tx).QueryRowContext(ctx, `SELECT COALESCE(MAX(order_index)+1,0) FROM memory_entries WHERE task_id=? AND kind=?`, *taskID, kind)
	} else {
		row = r.q(tx).QueryRowContext(ctx, `SELECT COALESCE(MAX(order_index)+1,0) FROM memory_entries WHERE campaign_id=? AND kind=?`, nullableStringPtr(campaignID), kind)
	}
	err := row.Scan(&next)
	return next, err
}

// SetMemoryOrder rewrites order_index for the given ids by slice position.
func (r Repo) SetMemoryOrder(ctx context.Context, tx *sql.Tx, ids []string, updatedAt string) error {
	for i, id := range ids {
		res, err := r.q(tx).ExecContext(ctx, `UPDATE memory_entries SET order_index=?, updated_at=? WHERE id=?`, i, updatedAt, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
	}
	return nil
}

func nullableBoolPtr(v *bool) any {
	if v == nil {
		return nil
	}
	return *v
}

package repo

import (
	"context"
	"database/sql"

	"ideaflow/internal/domain"
)

func (r Repo) InsertChecklistItem(ctx context.Context, tx *sql.Tx, it domain.ChecklistItem) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO checklist_items(id,idea_id,categoria,item,concluido,created_at) VALUES (?,?,?,?,?,?)`,
		it.ID, it.IdeaID, it.Categoria, it.Item, boolInt(it.Concluido), it.CreatedAt)
	return err
}

func (r Repo) GetChecklistItem(ctx context.Context, tx *sql.Tx, id string) (domain.ChecklistItem, error) {
	var it domain.ChecklistItem
	var done int
	err := r.q(tx).QueryRowContext(ctx, `SELECT id,idea_id,categoria,item,concluido,created_at FROM checklist_items WHERE id=?`, id).
		Scan(&it.ID, &it.IdeaID, &it.Categoria, &it.Item, &done, &it.CreatedAt)
	if err == sql.ErrNoRows {
		return it, ErrNotFound
	}
	it.Concluido = done != 0
	return it, err
}

func (r Repo) SetChecklistItemDone(ctx context.Context, tx *sql.Tx, id string, done bool) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE checklist_items SET concluido=? WHERE id=?`, boolInt(done), id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

func (r Repo) DeleteChecklistItem(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := r.q(tx).ExecContext(ctx, `DELETE FROM checklist_items WHERE id=?`, id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

func (r Repo) CountChecklistItems(ctx context.Context, tx *sql.Tx, ideaID string) (int, error) {
	var n int
	err := r.q(tx).QueryRowContext(ctx, `SELECT COUNT(*) FROM checklist_items WHERE idea_id=?`, ideaID).Scan(&n)
	return n, err
}

// ListChecklist returns items grouped by category in insertion order.
func (r Repo) ListChecklist(ctx context.Context, tx *sql.Tx, ideaID string) ([]domain.ChecklistItem, error) {
	rows, err := r.q(tx).QueryContext(ctx, `SELECT id,idea_id,categoria,item,concluido,created_at FROM checklist_items
WHERE idea_id=? ORDER BY categoria ASC, created_at ASC, rowid ASC`, ideaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.ChecklistItem{}
	for rows.Next() {
		var it domain.ChecklistItem
		var done int
		if err := rows.Scan(&it.ID, &it.IdeaID, &it.Categoria, &it.Item, &done, &it.CreatedAt); err != nil {
			return nil, err
		}
		it.Concluido = done != 0
		res = append(res, it)
	}
	return res, rows.Err()
}

package repo

import (
	"context"
	"database/sql"
	"strings"

	"ideaflow/internal/domain"
)

const ideaColumns = `id,titulo,descricao,fonte,segmento,impacto,status,autor_id,owner_id,justificativa_rejeicao,created_at,updated_at,votos,comentarios`

type IdeaFilters struct {
	Status          string
	AutorID         string
	OwnerID         string
	Tag             string
	Search          string
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdea(s rowScanner) (domain.Idea, error) {
	var i domain.Idea
	var status string
	var fonte, segmento, impacto, owner, justificativa sql.NullString
	if err := s.Scan(&i.ID, &i.Titulo, &i.Descricao, &fonte, &segmento, &impacto, &status,
		&i.AutorID, &owner, &justificativa, &i.CreatedAt, &i.UpdatedAt, &i.Votos, &i.Comentarios); err != nil {
		if err == sql.ErrNoRows {
			return i, ErrNotFound
		}
		return i, err
	}
	i.Status = domain.Status(status)
	i.Fonte = stringPtr(fonte)
	i.Segmento = stringPtr(segmento)
	i.Impacto = stringPtr(impacto)
	i.OwnerID = stringPtr(owner)
	i.JustificativaRejeicao = stringPtr(justificativa)
	i.Tags = []string{}
	return i, nil
}

// searchText is the case-folded text matched by IdeaFilters.Search. SQLite's
// LOWER only folds ASCII, so folding happens here.
func searchText(titulo, descricao string) string {
	return strings.ToLower(titulo + "\n" + descricao)
}

func (r Repo) InsertIdea(ctx context.Context, tx *sql.Tx, i domain.Idea) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO ideas(id,titulo,descricao,fonte,segmento,impacto,status,autor_id,owner_id,justificativa_rejeicao,created_at,updated_at,busca)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		i.ID, i.Titulo, i.Descricao, nullableStringPtr(i.Fonte), nullableStringPtr(i.Segmento), nullableStringPtr(i.Impacto),
		string(i.Status), i.AutorID, nullableStringPtr(i.OwnerID), nullableStringPtr(i.JustificativaRejeicao), i.CreatedAt, i.UpdatedAt,
		searchText(i.Titulo, i.Descricao))
	return err
}

// SetIdeaTags links tags by name, creating missing ones. Names are stored as given;
// callers normalize them first.
func (r Repo) SetIdeaTags(ctx context.Context, tx *sql.Tx, ideaID string, tags []string) error {
	q := r.q(tx)
	if _, err := q.ExecContext(ctx, `DELETE FROM idea_tags WHERE idea_id=?`, ideaID); err != nil {
		return err
	}
	for _, name := range tags {
		if _, err := q.ExecContext(ctx, `INSERT INTO tags(nome) VALUES (?) ON CONFLICT(nome) DO NOTHING`, name); err != nil {
			return err
		}
		var tagID int64
		if err := q.QueryRowContext(ctx, `SELECT id FROM tags WHERE nome=?`, name).Scan(&tagID); err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx, `INSERT INTO idea_tags(idea_id,tag_id) VALUES (?,?) ON CONFLICT DO NOTHING`, ideaID, tagID); err != nil {
			return err
		}
	}
	return nil
}

func (r Repo) GetIdea(ctx context.Context, tx *sql.Tx, id string) (domain.Idea, error) {
	i, err := scanIdea(r.q(tx).QueryRowContext(ctx, `SELECT `+ideaColumns+` FROM view_ideas_with_counts WHERE id=?`, id))
	if err != nil {
		return i, err
	}
	tags, err := r.tagsFor(ctx, tx, []string{id})
	if err != nil {
		return i, err
	}
	if t, ok := tags[id]; ok {
		i.Tags = t
	}
	return i, nil
}

// ListIdeas returns ideas newest first.
func (r Repo) ListIdeas(ctx context.Context, tx *sql.Tx, f IdeaFilters) ([]domain.Idea, error) {
	var clauses []string
	var args []any
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.AutorID != "" {
		clauses = append(clauses, "autor_id=?")
		args = append(args, f.AutorID)
	}
	if f.OwnerID != "" {
		clauses = append(clauses, "owner_id=?")
		args = append(args, f.OwnerID)
	}
	if f.Tag != "" {
		clauses = append(clauses, "id IN (SELECT it.idea_id FROM idea_tags it JOIN tags t ON t.id=it.tag_id WHERE t.nome=?)")
		args = append(args, strings.ToLower(f.Tag))
	}
	if f.Search != "" {
		like := "%" + strings.ToLower(f.Search) + "%"
		clauses = append(clauses, "busca LIKE ?")
		args = append(args, like)
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + ideaColumns + ` FROM view_ideas_with_counts ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.q(tx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var res []domain.Idea
	var ids []string
	for rows.Next() {
		i, err := scanIdea(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		res = append(res, i)
		ids = append(ids, i.ID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	if len(ids) == 0 {
		return res, nil
	}
	tags, err := r.tagsFor(ctx, tx, ids)
	if err != nil {
		return nil, err
	}
	for idx := range res {
		if t, ok := tags[res[idx].ID]; ok {
			res[idx].Tags = t
		}
	}
	return res, nil
}

func (r Repo) tagsFor(ctx context.Context, tx *sql.Tx, ideaIDs []string) (map[string][]string, error) {
	args := make([]any, 0, len(ideaIDs))
	for _, id := range ideaIDs {
		args = append(args, id)
	}
	rows, err := r.q(tx).QueryContext(ctx, `SELECT it.idea_id, t.nome FROM idea_tags it JOIN tags t ON t.id=it.tag_id
WHERE it.idea_id IN (`+placeholders(len(ideaIDs))+`) ORDER BY t.nome`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string][]string{}
	for rows.Next() {
		var ideaID, name string
		if err := rows.Scan(&ideaID, &name); err != nil {
			return nil, err
		}
		out[ideaID] = append(out[ideaID], name)
	}
	return out, rows.Err()
}

// UpdateIdeaStatus sets the status. A nil justificativa leaves the stored value untouched.
func (r Repo) UpdateIdeaStatus(ctx context.Context, tx *sql.Tx, id string, status domain.Status, justificativa *string, updatedAt string) error {
	var (
		res sql.Result
		err error
	)
	if justificativa != nil {
		res, err = r.q(tx).ExecContext(ctx, `UPDATE ideas SET status=?, justificativa_rejeicao=?, updated_at=? WHERE id=?`,
			string(status), nullableStringPtr(justificativa), updatedAt, id)
	} else {
		res, err = r.q(tx).ExecContext(ctx, `UPDATE ideas SET status=?, updated_at=? WHERE id=?`, string(status), updatedAt, id)
	}
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

// ClaimOwnership sets owner_id only while it is still empty. It reports whether
// this call won the claim.
func (r Repo) ClaimOwnership(ctx context.Context, tx *sql.Tx, id, ownerID, updatedAt string) (bool, error) {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE ideas SET owner_id=?, updated_at=? WHERE id=? AND (owner_id IS NULL OR owner_id='')`,
		ownerID, updatedAt, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r Repo) CountIdeasByStatus(ctx context.Context, tx *sql.Tx) (map[domain.Status]int, error) {
	rows, err := r.q(tx).QueryContext(ctx, `SELECT status, COUNT(*) FROM ideas GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[domain.Status]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[domain.Status(status)] = n
	}
	return out, rows.Err()
}

package repo

import (
	"context"
	"database/sql"

	"ideaflow/internal/domain"
)

// InsertVote returns ErrDuplicate when the user already voted on the idea.
func (r Repo) InsertVote(ctx context.Context, tx *sql.Tx, v domain.Vote) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO votes(idea_id,user_id,created_at) VALUES (?,?,?)`, v.IdeaID, v.UserID, v.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// DeleteVote reports whether a vote was removed.
func (r Repo) DeleteVote(ctx context.Context, tx *sql.Tx, ideaID, userID string) (bool, error) {
	res, err := r.q(tx).ExecContext(ctx, `DELETE FROM votes WHERE idea_id=? AND user_id=?`, ideaID, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r Repo) HasVote(ctx context.Context, tx *sql.Tx, ideaID, userID string) (bool, error) {
	var n int
	err := r.q(tx).QueryRowContext(ctx, `SELECT COUNT(*) FROM votes WHERE idea_id=? AND user_id=?`, ideaID, userID).Scan(&n)
	return n > 0, err
}

func (r Repo) CountVotes(ctx context.Context, tx *sql.Tx, ideaID string) (int, error) {
	var n int
	err := r.q(tx).QueryRowContext(ctx, `SELECT COUNT(*) FROM votes WHERE idea_id=?`, ideaID).Scan(&n)
	return n, err
}

func (r Repo) InsertComment(ctx context.Context, tx *sql.Tx, c domain.Comment) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO comments(id,idea_id,autor_id,conteudo,created_at) VALUES (?,?,?,?,?)`,
		c.ID, c.IdeaID, c.AutorID, c.Conteudo, c.CreatedAt)
	return err
}

const commentSelect = `SELECT c.id,c.idea_id,c.autor_id,COALESCE(u.nome,''),c.conteudo,c.created_at
FROM comments c LEFT JOIN users u ON u.id=c.autor_id`

func (r Repo) GetComment(ctx context.Context, tx *sql.Tx, id string) (domain.Comment, error) {
	var c domain.Comment
	err := r.q(tx).QueryRowContext(ctx, commentSelect+` WHERE c.id=?`, id).
		Scan(&c.ID, &c.IdeaID, &c.AutorID, &c.AutorNome, &c.Conteudo, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

// ListComments returns the idea's comments newest first.
func (r Repo) ListComments(ctx context.Context, tx *sql.Tx, ideaID string) ([]domain.Comment, error) {
	rows, err := r.q(tx).QueryContext(ctx, commentSelect+` WHERE c.idea_id=? ORDER BY c.created_at DESC, c.rowid DESC`, ideaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Comment{}
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(&c.ID, &c.IdeaID, &c.AutorID, &c.AutorNome, &c.Conteudo, &c.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r Repo) DeleteComment(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := r.q(tx).ExecContext(ctx, `DELETE FROM comments WHERE id=?`, id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

func (r Repo) InsertEvaluation(ctx context.Context, tx *sql.Tx, ev domain.Evaluation) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO evaluations(id,idea_id,avaliador_id,nota_clareza_objetivos,nota_analise_negocio,nota_viabilidade_tecnica,decisao,justificativa,created_at)
VALUES (?,?,?,?,?,?,?,?,?)`,
		ev.ID, ev.IdeaID, ev.AvaliadorID, ev.NotaClarezaObjetivos, ev.NotaAnaliseNegocio, ev.NotaViabilidadeTecnica,
		string(ev.Decisao), nullableStringPtr(ev.Justificativa), ev.CreatedAt)
	return err
}

// ListEvaluations returns the idea's evaluations newest first.
func (r Repo) ListEvaluations(ctx context.Context, tx *sql.Tx, ideaID string) ([]domain.Evaluation, error) {
	rows, err := r.q(tx).QueryContext(ctx, `SELECT id,idea_id,avaliador_id,nota_clareza_objetivos,nota_analise_negocio,nota_viabilidade_tecnica,decisao,justificativa,created_at
FROM evaluations WHERE idea_id=? ORDER BY created_at DESC, rowid DESC`, ideaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Evaluation{}
	for rows.Next() {
		var ev domain.Evaluation
		var decisao string
		var justificativa sql.NullString
		if err := rows.Scan(&ev.ID, &ev.IdeaID, &ev.AvaliadorID, &ev.NotaClarezaObjetivos, &ev.NotaAnaliseNegocio,
			&ev.NotaViabilidadeTecnica, &decisao, &justificativa, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.Decisao = domain.Status(decisao)
		ev.Justificativa = stringPtr(justificativa)
		res = append(res, ev)
	}
	return res, rows.Err()
}

package repo

import (
	"context"
	"database/sql"

	"ideaflow/internal/domain"
)

const attachmentColumns = `id,idea_id,nome_arquivo,storage_path,tipo_mime,tamanho_bytes,uploaded_by,created_at`

func scanAttachment(s rowScanner) (domain.Attachment, error) {
	var a domain.Attachment
	err := s.Scan(&a.ID, &a.IdeaID, &a.NomeArquivo, &a.StoragePath, &a.TipoMime, &a.TamanhoBytes, &a.UploadedBy, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	return a, err
}

func (r Repo) InsertAttachment(ctx context.Context, tx *sql.Tx, a domain.Attachment) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO attachments(`+attachmentColumns+`) VALUES (?,?,?,?,?,?,?,?)`,
		a.ID, a.IdeaID, a.NomeArquivo, a.StoragePath, a.TipoMime, a.TamanhoBytes, a.UploadedBy, a.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r Repo) GetAttachment(ctx context.Context, tx *sql.Tx, id string) (domain.Attachment, error) {
	return scanAttachment(r.q(tx).QueryRowContext(ctx, `SELECT `+attachmentColumns+` FROM attachments WHERE id=?`, id))
}

func (r Repo) DeleteAttachment(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := r.q(tx).ExecContext(ctx, `DELETE FROM attachments WHERE id=?`, id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

// ListAttachments returns attachments newest first. An empty ideaID lists all.
func (r Repo) ListAttachments(ctx context.Context, tx *sql.Tx, ideaID string) ([]domain.Attachment, error) {
	query := `SELECT ` + attachmentColumns + ` FROM attachments`
	var args []any
	if ideaID != "" {
		query += ` WHERE idea_id=?`
		args = append(args, ideaID)
	}
	query += ` ORDER BY created_at DESC, rowid DESC`
	rows, err := r.q(tx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Attachment{}
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

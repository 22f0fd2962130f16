package repo

import (
	"context"
	"database/sql"
	"strings"

	"ideaflow/internal/domain"
)

const userColumns = `id,email,nome,avatar_url,password_hash,created_at,updated_at`

func scanUser(s rowScanner) (domain.User, error) {
	var u domain.User
	var avatar sql.NullString
	err := s.Scan(&u.ID, &u.Email, &u.Nome, &avatar, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	if avatar.Valid {
		u.AvatarURL = avatar.String
	}
	return u, err
}

// InsertUser returns ErrDuplicate when the email is taken.
func (r Repo) InsertUser(ctx context.Context, tx *sql.Tx, u domain.User) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO users(`+userColumns+`) VALUES (?,?,?,?,?,?,?)`,
		u.ID, strings.ToLower(u.Email), u.Nome, nullable(u.AvatarURL), u.PasswordHash, u.CreatedAt, u.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r Repo) GetUser(ctx context.Context, tx *sql.Tx, id string) (domain.User, error) {
	return scanUser(r.q(tx).QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=?`, id))
}

func (r Repo) GetUserByEmail(ctx context.Context, tx *sql.Tx, email string) (domain.User, error) {
	return scanUser(r.q(tx).QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email=?`, strings.ToLower(strings.TrimSpace(email))))
}

// UpdateUserProfile keeps the stored avatar when avatarURL is empty.
func (r Repo) UpdateUserProfile(ctx context.Context, tx *sql.Tx, id, nome, avatarURL, updatedAt string) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE users SET nome=?, avatar_url=COALESCE(?, avatar_url), updated_at=? WHERE id=?`, nome, nullable(avatarURL), updatedAt, id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

func (r Repo) SetUserAvatar(ctx context.Context, tx *sql.Tx, id, avatarURL, updatedAt string) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE users SET avatar_url=?, updated_at=? WHERE id=?`, nullable(avatarURL), updatedAt, id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

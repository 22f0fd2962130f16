package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"ideaflow/internal/domain"
	"ideaflow/internal/engine"
	"ideaflow/internal/repo"
	"ideaflow/internal/storage"
)

const defaultMaxAvatarBytes = 5 << 20

var avatarExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

func avatarPrefix(userID string) string {
	return "avatars/" + userID + "."
}

// AvatarLimit is the largest accepted avatar in bytes.
func (s *Service) AvatarLimit() int64 {
	if s.MaxAvatarBytes > 0 {
		return s.MaxAvatarBytes
	}
	return defaultMaxAvatarBytes
}

// avatarURL prefers the store's public address and falls back to the API
// route that streams the avatar.
func (s *Service) avatarURL(userID, key string) string {
	if u := s.Store.URL(key); u != "" {
		return u
	}
	route := s.AvatarRoute
	if route == "" {
		route = "/users"
	}
	return path.Join(route, userID, "avatar")
}

// UploadAvatar stores the picture at avatars/<user id>.<ext>, replacing the
// previous one, and points the user's avatar_url at it.
func (s *Service) UploadAvatar(ctx context.Context, userID, fileName, contentType string, size int64, r io.Reader) (domain.User, error) {
	if s.Store == nil {
		return domain.User{}, &engine.BackendError{Op: "upload avatar", Err: errors.New("no object store configured")}
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = ""
	}
	ext, ok := avatarExtensions[strings.ToLower(mt)]
	if !ok {
		return domain.User{}, fmt.Errorf("%w: %q is not an accepted image type", engine.ErrUnsupportedType, contentType)
	}
	limit := s.AvatarLimit()
	if size > limit {
		return domain.User{}, fmt.Errorf("%w: %d bytes exceeds %d", engine.ErrFileTooLarge, size, limit)
	}
	if _, err := s.Repo.GetUser(ctx, nil, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.User{}, err
		}
		return domain.User{}, &engine.BackendError{Op: "get user", Err: err}
	}

	key := avatarPrefix(userID) + ext
	previous, err := s.Store.List(ctx, avatarPrefix(userID))
	if err != nil {
		return domain.User{}, &engine.BackendError{Op: "list avatars", Err: err}
	}
	for _, k := range previous {
		if k != key {
			continue
		}
		if err := s.Store.Delete(ctx, k); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return domain.User{}, &engine.BackendError{Op: "replace avatar", Err: err}
		}
	}

	body := &io.LimitedReader{R: r, N: limit + 1}
	if err := s.Store.Put(ctx, key, body, size, mt); err != nil {
		return domain.User{}, &engine.BackendError{Op: "put avatar", Err: err}
	}
	if body.N <= 0 {
		if err := s.Store.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.Log.WithError(err).WithField("path", key).Warn("remove oversized avatar failed")
		}
		return domain.User{}, fmt.Errorf("%w: upload exceeds %d bytes", engine.ErrFileTooLarge, limit)
	}
	for _, k := range previous {
		if k == key {
			continue
		}
		if err := s.Store.Delete(ctx, k); err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.Log.WithError(err).WithField("path", k).Warn("remove previous avatar failed")
		}
	}

	if err := s.Repo.SetUserAvatar(ctx, nil, userID, s.avatarURL(userID, key), s.now().UTC().Format(time.RFC3339)); err != nil {
		return domain.User{}, &engine.BackendError{Op: "set avatar", Err: err}
	}
	s.Log.WithFields(logrus.Fields{"user_id": userID, "path": key, "file": fileName}).Info("avatar uploaded")
	return s.Repo.GetUser(ctx, nil, userID)
}

// OpenAvatar streams the stored avatar of userID.
func (s *Service) OpenAvatar(ctx context.Context, userID string) (string, io.ReadCloser, error) {
	if s.Store == nil {
		return "", nil, &engine.BackendError{Op: "open avatar", Err: errors.New("no object store configured")}
	}
	keys, err := s.Store.List(ctx, avatarPrefix(userID))
	if err != nil {
		return "", nil, &engine.BackendError{Op: "list avatars", Err: err}
	}
	if len(keys) == 0 {
		return "", nil, fmt.Errorf("%w: avatar for user %s", repo.ErrNotFound, userID)
	}
	key := keys[0]
	rc, err := s.Store.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil, fmt.Errorf("%w: avatar for user %s", repo.ErrNotFound, userID)
	}
	if err != nil {
		return "", nil, &engine.BackendError{Op: "open avatar", Err: err}
	}
	ext := strings.TrimPrefix(path.Ext(key), ".")
	for mt, e := range avatarExtensions {
		if e == ext {
			return mt, rc, nil
		}
	}
	return "application/octet-stream", rc, nil
}

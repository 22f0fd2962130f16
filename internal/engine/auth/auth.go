// Package auth signs users up and in and tracks their sessions.
package auth

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"ideaflow/internal/domain"
	"ideaflow/internal/engine"
	"ideaflow/internal/events"
	"ideaflow/internal/logging"
	"ideaflow/internal/repo"
	"ideaflow/internal/storage"
)

const minPasswordLen = 8

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrSessionNotFound    = errors.New("session not found or expired")
)

// SessionEvent names a change delivered to OnSessionChange listeners.
type SessionEvent string

const (
	SignedIn  SessionEvent = "signed_in"
	SignedOut SessionEvent = "signed_out"
)

type Session struct {
	Token     string      `json:"token"`
	User      domain.User `json:"user"`
	ExpiresAt time.Time   `json:"expires_at"`
}

type Listener func(SessionEvent, *Session)

type Service struct {
	DB       *sql.DB
	Repo     repo.Repo
	Sessions SessionStore
	Secret   []byte
	TTL      time.Duration
	Log      logrus.FieldLogger
	Now      func() time.Time

	// Store holds avatars. AvatarRoute is the API path prefix that serves
	// them when the store has no public URL.
	Store          storage.Store
	MaxAvatarBytes int64
	AvatarRoute    string

	mu        sync.Mutex
	nextID    int
	listeners map[int]Listener
}

func NewService(db *sql.DB, sessions SessionStore, secret string, ttl time.Duration, log logrus.FieldLogger) (*Service, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("jwt secret not configured")
	}
	if sessions == nil {
		return nil, errors.New("session store required")
	}
	if ttl <= 0 {
		return nil, errors.New("access ttl must be positive")
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Service{
		DB:       db,
		Repo:     repo.Repo{DB: db},
		Sessions: sessions,
		Secret:   []byte(secret),
		TTL:      ttl,
		Log:      log,
		Now:      time.Now,
	}, nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// OnSessionChange registers fn for sign-in and sign-out. Call the returned
// func to unsubscribe.
func (s *Service) OnSessionChange(fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listeners == nil {
		s.listeners = map[int]Listener{}
	}
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Service) notify(evt SessionEvent, sess *Session) {
	s.mu.Lock()
	fns := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(evt, sess)
	}
}

type SignUpRequest struct {
	Email     string
	Password  string
	Nome      string
	AvatarURL string
}

func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	nome := strings.TrimSpace(req.Nome)
	if email == "" || req.Password == "" || nome == "" {
		return domain.User{}, fmt.Errorf("%w: email, password and nome are required", engine.ErrValidation)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return domain.User{}, fmt.Errorf("%w: invalid email", engine.ErrValidation)
	}
	if len(req.Password) < minPasswordLen {
		return domain.User{}, fmt.Errorf("%w: password must be at least %d characters", engine.ErrValidation, minPasswordLen)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	now := s.now().UTC().Format(time.RFC3339)
	u := domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		Nome:         nome,
		AvatarURL:    strings.TrimSpace(req.AvatarURL),
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, &engine.BackendError{Op: "sign up", Err: err}
	}
	defer tx.Rollback()
	if err := s.Repo.InsertUser(ctx, tx, u); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return domain.User{}, fmt.Errorf("%w: email already registered", engine.ErrConflict)
		}
		return domain.User{}, &engine.BackendError{Op: "insert user", Err: err}
	}
	w := events.Writer{Now: s.now}
	if err := w.Append(ctx, tx, events.UserSignedUp, "user", u.ID, u.ID, events.EventPayload{"email": email}); err != nil {
		return domain.User{}, &engine.BackendError{Op: "append event", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, &engine.BackendError{Op: "sign up", Err: err}
	}
	s.Log.WithField("user_id", u.ID).Info("user signed up")
	return u, nil
}

type claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Nome  string `json:"nome,omitempty"`
}

// SignIn verifies the password and opens a session.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.Repo.GetUserByEmail(ctx, nil, email)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, &engine.BackendError{Op: "get user", Err: err}
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	now := s.now()
	expires := now.Add(s.TTL)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Email: u.Email,
		Nome:  u.Nome,
	}).SignedString(s.Secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	data := SessionData{UserID: u.ID, CreatedAt: now.UTC(), ExpiresAt: expires.UTC()}
	if err := s.Sessions.Save(ctx, HashToken(token), data, s.TTL); err != nil {
		return nil, &engine.BackendError{Op: "save session", Err: err}
	}
	sess := &Session{Token: token, User: u, ExpiresAt: expires.UTC()}
	s.Log.WithField("user_id", u.ID).Info("user signed in")
	s.notify(SignedIn, sess)
	return sess, nil
}

func (s *Service) parse(token string) (*claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	c := &claims{}
	parsed, err := parser.ParseWithClaims(token, c, func(t *jwt.Token) (any, error) {
		return s.Secret, nil
	})
	if err != nil || !parsed.Valid || c.Subject == "" {
		return nil, ErrInvalidToken
	}
	return c, nil
}

// GetSession validates the token and checks that its session was not revoked.
func (s *Service) GetSession(ctx context.Context, token string) (*Session, error) {
	c, err := s.parse(token)
	if err != nil {
		return nil, err
	}
	data, err := s.Sessions.Lookup(ctx, HashToken(token))
	if err != nil {
		return nil, err
	}
	if data.UserID != c.Subject {
		return nil, ErrInvalidToken
	}
	u, err := s.Repo.GetUser(ctx, nil, data.UserID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, &engine.BackendError{Op: "get user", Err: err}
	}
	return &Session{Token: token, User: u, ExpiresAt: data.ExpiresAt}, nil
}

// SignOut revokes the session. Unknown tokens are ignored.
func (s *Service) SignOut(ctx context.Context, token string) error {
	sess, err := s.GetSession(ctx, token)
	if err != nil && !errors.Is(err, ErrSessionNotFound) && !errors.Is(err, ErrInvalidToken) {
		return err
	}
	if err := s.Sessions.Revoke(ctx, HashToken(token)); err != nil {
		return &engine.BackendError{Op: "revoke session", Err: err}
	}
	if sess != nil {
		s.Log.WithField("user_id", sess.User.ID).Info("user signed out")
		s.notify(SignedOut, sess)
	}
	return nil
}

// UpdateProfile changes the display fields of a user. An empty avatarURL
// leaves the stored avatar untouched.
func (s *Service) UpdateProfile(ctx context.Context, userID, nome, avatarURL string) (domain.User, error) {
	nome = strings.TrimSpace(nome)
	if nome == "" {
		return domain.User{}, fmt.Errorf("%w: nome is required", engine.ErrValidation)
	}
	err := s.Repo.UpdateUserProfile(ctx, nil, userID, nome, strings.TrimSpace(avatarURL), s.now().UTC().Format(time.RFC3339))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.User{}, err
		}
		return domain.User{}, &engine.BackendError{Op: "update profile", Err: err}
	}
	return s.Repo.GetUser(ctx, nil, userID)
}

// HashToken returns the hex sha256 used as the session key.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", sum)
}

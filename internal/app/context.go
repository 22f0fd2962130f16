package app

import (
	"context"
	"sync"
	"time"

	"ideaflow/internal/domain"
	"ideaflow/internal/engine"
	"ideaflow/internal/engine/auth"
	"ideaflow/internal/repo"
)

const loadTimeout = 10 * time.Second

// Context is the explicit per-user state: the current session and the idea
// list shown to it. It is filled on sign-in and emptied on sign-out.
type Context struct {
	Engine engine.Engine

	mu      sync.RWMutex
	session *auth.Session
	ideas   []domain.Idea
	stop    func()
}

// NewContext binds the context to svc's session changes when svc is not nil.
func NewContext(e engine.Engine, svc *auth.Service) *Context {
	c := &Context{Engine: e}
	if svc != nil {
		c.stop = svc.OnSessionChange(c.onSessionChange)
	}
	return c
}

func (c *Context) onSessionChange(evt auth.SessionEvent, s *auth.Session) {
	switch evt {
	case auth.SignedIn:
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		if err := c.Start(ctx, s); err != nil {
			c.Engine.Log.WithError(err).Warn("load ideas on sign-in failed")
		}
	case auth.SignedOut:
		c.Clear()
	}
}

// Start records the session and loads the idea list.
func (c *Context) Start(ctx context.Context, s *auth.Session) error {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
	return c.Refresh(ctx)
}

// Refresh re-reads the idea list. Call after mutations.
func (c *Context) Refresh(ctx context.Context) error {
	c.mu.RLock()
	active := c.session != nil
	c.mu.RUnlock()
	if !active {
		return nil
	}
	ideas, err := c.Engine.ListIdeas(ctx, repo.IdeaFilters{})
	if err != nil {
		return err
	}
	c.mu.Lock()
	if c.session != nil {
		c.ideas = ideas
	}
	c.mu.Unlock()
	return nil
}

func (c *Context) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = nil
	c.ideas = nil
}

func (c *Context) Session() *auth.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// Ideas returns a copy of the cached list.
func (c *Context) Ideas() []domain.Idea {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Idea, len(c.ideas))
	copy(out, c.ideas)
	return out
}

// Close detaches from session changes.
func (c *Context) Close() {
	if c.stop != nil {
		c.stop()
		c.stop = nil
	}
}

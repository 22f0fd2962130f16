package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ideaflow/internal/app"
	"ideaflow/internal/config"
	"ideaflow/internal/engine"
	"ideaflow/internal/engine/auth"
	"ideaflow/internal/logging"
)

func openWorkspace(t *testing.T) *app.Workspace {
	t.Helper()
	cfg := config.Default()
	cfg.Auth.JWTSecret = "test-secret"
	ws, err := app.Open(context.Background(), app.Options{Workspace: t.TempDir(), Config: cfg, Log: logging.Discard()})
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func TestContextFollowsSessionChanges(t *testing.T) {
	ws := openWorkspace(t)
	ctx := context.Background()
	svc, err := ws.Auth()
	require.NoError(t, err)
	appCtx := app.NewContext(ws.Engine, svc)
	defer appCtx.Close()

	_, err = svc.SignUp(ctx, auth.SignUpRequest{Email: "ana@example.com", Password: "segredo123", Nome: "Ana"})
	require.NoError(t, err)
	_, err = ws.Engine.CreateIdea(ctx, engine.CreateIdeaOptions{Titulo: "A", Descricao: "B", ActorID: "ana"})
	require.NoError(t, err)

	assert.Nil(t, appCtx.Session())
	sess, err := svc.SignIn(ctx, "ana@example.com", "segredo123")
	require.NoError(t, err)
	require.NotNil(t, appCtx.Session())
	assert.Equal(t, sess.User.ID, appCtx.Session().User.ID)
	assert.Len(t, appCtx.Ideas(), 1)

	_, err = ws.Engine.CreateIdea(ctx, engine.CreateIdeaOptions{Titulo: "C", Descricao: "D", ActorID: sess.User.ID})
	require.NoError(t, err)
	assert.Len(t, appCtx.Ideas(), 1)
	require.NoError(t, appCtx.Refresh(ctx))
	assert.Len(t, appCtx.Ideas(), 2)

	require.NoError(t, svc.SignOut(ctx, sess.Token))
	assert.Nil(t, appCtx.Session())
	assert.Empty(t, appCtx.Ideas())
}

func TestRefreshWithoutSessionIsNoop(t *testing.T) {
	ws := openWorkspace(t)
	appCtx := app.NewContext(ws.Engine, nil)
	require.NoError(t, appCtx.Refresh(context.Background()))
	assert.Empty(t, appCtx.Ideas())
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Uploads.MaxBytes = 0
	_, err := app.Open(context.Background(), app.Options{Workspace: t.TempDir(), Config: cfg, Log: logging.Discard()})
	assert.Error(t, err)
}

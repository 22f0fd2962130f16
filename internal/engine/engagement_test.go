package engine_test

import (
	"errors"
	"sync"
	"testing"

	"ideaflow/internal/engine"
	"ideaflow/internal/events"
	"ideaflow/internal/repo"
)

func TestToggleVoteRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	idea := env.createIdea(t, "ana")

	voted, err := env.Engine.ToggleVote(env.Ctx, idea.ID, "bia")
	if err != nil || !voted {
		t.Fatalf("first toggle: voted=%v err=%v", voted, err)
	}
	if !env.Engine.HasVoted(env.Ctx, idea.ID, "bia") {
		t.Fatalf("expected vote recorded")
	}
	got, _ := env.Engine.GetIdea(env.Ctx, idea.ID)
	if got.Votos != 1 {
		t.Fatalf("expected 1 vote, got %d", got.Votos)
	}

	voted, err = env.Engine.ToggleVote(env.Ctx, idea.ID, "bia")
	if err != nil || voted {
		t.Fatalf("second toggle: voted=%v err=%v", voted, err)
	}
	got, _ = env.Engine.GetIdea(env.Ctx, idea.ID)
	if got.Votos != 0 {
		t.Fatalf("expected 0 votes, got %d", got.Votos)
	}
}

func TestToggleVoteDuplicateInsertAppendsNoEvent(t *testing.T) {
	env := newTestEnv(t)
	idea := env.createIdea(t, "ana")
	// Simulate a vote that lands between the existence check and the insert.
	_, err := env.Engine.DB.ExecContext(env.Ctx, `CREATE TRIGGER votes_race BEFORE INSERT ON votes
		BEGIN SELECT RAISE(ABORT, 'UNIQUE constraint failed: votes.idea_id, votes.user_id'); END`)
	if err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	voted, err := env.Engine.ToggleVote(env.Ctx, idea.ID, "bia")
	if err != nil || !voted {
		t.Fatalf("toggle: voted=%v err=%v", voted, err)
	}
	evts, err := env.Engine.ListEvents(env.Ctx, repo.EventFilters{Type: events.VoteAdded, EntityKind: "idea", EntityID: idea.ID})
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(evts) != 0 {
		t.Fatalf("expected no vote.added event, got %d", len(evts))
	}
}

func TestToggleVoteUnknownIdea(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.ToggleVote(env.Ctx, "missing", "bia"); !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestConcurrentVotesNeverDuplicate(t *testing.T) {
	env := newTestEnv(t)
	idea := env.createIdea(t, "ana")
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.Engine.ToggleVote(env.Ctx, idea.ID, "bia"); err != nil {
				t.Errorf("toggle: %v", err)
			}
		}()
	}
	wg.Wait()
	got, _ := env.Engine.GetIdea(env.Ctx, idea.ID)
	if got.Votos != 0 {
		t.Fatalf("ten toggles should cancel out, got %d votes", got.Votos)
	}
}

func TestVotesCountPerUser(t *testing.T) {
	env := newTestEnv(t)
	idea := env.createIdea(t, "ana")
	for _, u := range []string{"bia", "caio", "duda"} {
		if _, err := env.Engine.ToggleVote(env.Ctx, idea.ID, u); err != nil {
			t.Fatal(err)
		}
	}
	got, _ := env.Engine.GetIdea(env.Ctx, idea.ID)
	if got.Votos != 3 {
		t.Fatalf("expected 3 votes, got %d", got.Votos)
	}
	if env.Engine.HasVoted(env.Ctx, idea.ID, "ana") {
		t.Fatalf("author did not vote")
	}
}

func TestHasVotedDegradesToFalse(t *testing.T) {
	env := newTestEnv(t)
	idea := env.createIdea(t, "ana")
	if _, err := env.Engine.ToggleVote(env.Ctx, idea.ID, "bia"); err != nil {
		t.Fatal(err)
	}
	env.Engine.DB.Close()
	if env.Engine.HasVoted(env.Ctx, idea.ID, "bia") {
		t.Fatalf("expected false when the backend fails")
	}
}

func TestCommentsLifecycle(t *testing.T) {
	env := newTestEnv(t)
	idea := env.createIdea(t, "ana")
	if _, err := env.Engine.AddComment(env.Ctx, idea.ID, "bia", "   "); !errors.Is(err, engine.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	first, err := env.Engine.AddComment(env.Ctx, idea.ID, "bia", "  Boa ideia  ")
	if err != nil {
		t.Fatal(err)
	}
	if first.Conteudo != "Boa ideia" {
		t.Fatalf("content not trimmed: %q", first.Conteudo)
	}
	second, err := env.Engine.AddComment(env.Ctx, idea.ID, "caio", "Concordo")
	if err != nil {
		t.Fatal(err)
	}
	items, err := env.Engine.ListComments(env.Ctx, idea.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 || items[0].ID != second.ID {
		t.Fatalf("expected newest first, got %+v", items)
	}
	got, _ := env.Engine.GetIdea(env.Ctx, idea.ID)
	if got.Comentarios != 2 {
		t.Fatalf("expected 2 comments, got %d", got.Comentarios)
	}
	if _, err := env.Engine.AddComment(env.Ctx, "missing", "bia", "x"); !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

// Deleting a comment is restricted to its author; any other actor is refused.
func TestDeleteCommentRequiresAuthor(t *testing.T) {
	env := newTestEnv(t)
	idea := env.createIdea(t, "ana")
	c, err := env.Engine.AddComment(env.Ctx, idea.ID, "bia", "Boa ideia")
	if err != nil {
		t.Fatal(err)
	}
	for _, actor := range []string{"ana", "caio"} {
		if err := env.Engine.DeleteComment(env.Ctx, c.ID, actor); !errors.Is(err, engine.ErrPermissionDenied) {
			t.Fatalf("%s: expected permission denied, got %v", actor, err)
		}
	}
	if err := env.Engine.DeleteComment(env.Ctx, c.ID, "bia"); err != nil {
		t.Fatalf("author delete: %v", err)
	}
	if err := env.Engine.DeleteComment(env.Ctx, c.ID, "bia"); !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	got, _ := env.Engine.GetIdea(env.Ctx, idea.ID)
	if got.Comentarios != 0 {
		t.Fatalf("expected 0 comments, got %d", got.Comentarios)
	}
}

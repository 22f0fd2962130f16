package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"ideaflow/internal/domain"
	"ideaflow/internal/events"
	"ideaflow/internal/repo"
)

// ToggleVote flips the user's vote and reports whether the user has voted
// afterwards. The composite key on votes is the final guard against doubles.
func (e Engine) ToggleVote(ctx context.Context, ideaID, userID string) (bool, error) {
	if userID == "" {
		return false, validationf("user is required")
	}
	var voted bool
	err := e.inTx(ctx, "toggle vote", func(tx *sql.Tx) error {
		if _, err := e.Repo.GetIdea(ctx, tx, ideaID); err != nil {
			return backend("get idea", err)
		}
		exists, err := e.Repo.HasVote(ctx, tx, ideaID, userID)
		if err != nil {
			return backend("check vote", err)
		}
		evt := events.VoteAdded
		if exists {
			if _, err := e.Repo.DeleteVote(ctx, tx, ideaID, userID); err != nil {
				return backend("delete vote", err)
			}
			evt = events.VoteRemoved
			voted = false
		} else {
			voted = true
			err := e.Repo.InsertVote(ctx, tx, domain.Vote{IdeaID: ideaID, UserID: userID, CreatedAt: e.timestamp()})
			if errors.Is(err, repo.ErrDuplicate) {
				// Another path already recorded this vote and its event.
				return nil
			}
			if err != nil {
				return backend("insert vote", err)
			}
		}
		return backend("append event", e.audit().Append(ctx, tx, evt, "idea", ideaID, userID, nil))
	})
	if err != nil {
		return false, err
	}
	result := "removed"
	if voted {
		result = "added"
	}
	voteToggles.WithLabelValues(result).Inc()
	e.log().WithFields(logrus.Fields{"idea_id": ideaID, "actor_id": userID, "voted": voted}).Debug("vote toggled")
	return voted, nil
}

// HasVoted degrades to false on backend failure.
func (e Engine) HasVoted(ctx context.Context, ideaID, userID string) bool {
	voted, err := e.Repo.HasVote(ctx, nil, ideaID, userID)
	if err != nil {
		e.log().WithError(err).WithFields(logrus.Fields{"idea_id": ideaID, "actor_id": userID}).Warn("vote check failed")
		return false
	}
	return voted
}

func (e Engine) AddComment(ctx context.Context, ideaID, authorID, content string) (domain.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return domain.Comment{}, validationf("conteudo is required")
	}
	if authorID == "" {
		return domain.Comment{}, validationf("author is required")
	}
	c := domain.Comment{
		ID:        e.newID(),
		IdeaID:    ideaID,
		AutorID:   authorID,
		Conteudo:  content,
		CreatedAt: e.timestamp(),
	}
	var stored domain.Comment
	err := e.inTx(ctx, "add comment", func(tx *sql.Tx) error {
		if _, err := e.Repo.GetIdea(ctx, tx, ideaID); err != nil {
			return backend("get idea", err)
		}
		if err := e.Repo.InsertComment(ctx, tx, c); err != nil {
			return backend("insert comment", err)
		}
		if err := e.audit().Append(ctx, tx, events.CommentAdded, "comment", c.ID, authorID, events.EventPayload{"idea_id": ideaID}); err != nil {
			return backend("append event", err)
		}
		var err error
		stored, err = e.Repo.GetComment(ctx, tx, c.ID)
		return backend("reload comment", err)
	})
	if err != nil {
		return domain.Comment{}, err
	}
	return stored, nil
}

func (e Engine) ListComments(ctx context.Context, ideaID string) ([]domain.Comment, error) {
	if _, err := e.Repo.GetIdea(ctx, nil, ideaID); err != nil {
		return nil, backend("get idea", err)
	}
	items, err := e.Repo.ListComments(ctx, nil, ideaID)
	if err != nil {
		return nil, backend("list comments", err)
	}
	return items, nil
}

// DeleteComment removes a comment. Only its author may do so.
func (e Engine) DeleteComment(ctx context.Context, commentID, actorID string) error {
	return e.inTx(ctx, "delete comment", func(tx *sql.Tx) error {
		c, err := e.Repo.GetComment(ctx, tx, commentID)
		if err != nil {
			return backend("get comment", err)
		}
		if c.AutorID != actorID {
			return fmt.Errorf("%w: only the author may delete a comment", ErrPermissionDenied)
		}
		if err := e.Repo.DeleteComment(ctx, tx, commentID); err != nil {
			return backend("delete comment", err)
		}
		return backend("append event", e.audit().Append(ctx, tx, events.CommentDeleted, "comment", commentID, actorID, events.EventPayload{"idea_id": c.IdeaID}))
	})
}

// Package events appends audit records inside the caller's transaction.
package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const (
	IdeaCreated          = "idea.created"
	IdeaStatusChanged    = "idea.status_changed"
	IdeaOwnershipTaken   = "idea.ownership_taken"
	VoteAdded            = "vote.added"
	VoteRemoved          = "vote.removed"
	CommentAdded         = "comment.added"
	CommentDeleted       = "comment.deleted"
	EvaluationRecorded   = "evaluation.recorded"
	DefinitionSaved      = "definition.saved"
	ChecklistSeeded      = "checklist.seeded"
	ChecklistItemAdded   = "checklist.item_added"
	ChecklistItemUpdated = "checklist.item_updated"
	ChecklistItemDeleted = "checklist.item_deleted"
	AttachmentUploaded   = "attachment.uploaded"
	AttachmentDeleted    = "attachment.deleted"
	AttachmentReconciled = "attachment.reconciled"
	UserSignedUp         = "user.signed_up"
)

type Writer struct {
	Now func() time.Time
}

type EventPayload map[string]any

// Append records one event. It must run inside the transaction of the change it describes.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, entityKind, entityID, actorID string, payload EventPayload) error {
	now := w.Now
	if now == nil {
		now = time.Now
	}
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?)`,
		now().UTC().Format(time.RFC3339), evtType, entityKind, nullable(entityID), actorID, string(data))
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

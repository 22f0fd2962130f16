package engine

import (
	"context"
	"database/sql"
	"strings"

	"ideaflow/internal/domain"
	"ideaflow/internal/events"
)

// DefaultChecklist is seeded into an idea's empty checklist.
var DefaultChecklist = []struct {
	Categoria string
	Item      string
}{
	{"Encaixe Organizacional", "Alinhamento estratégico definido"},
	{"Encaixe Organizacional", "Capacidade técnica avaliada"},
	{"Encaixe Organizacional", "Recursos disponíveis identificados"},
	{"Análise de Mercado", "Público-alvo definido"},
	{"Análise de Mercado", "Mercado mapeado"},
	{"Proposta de Valor", "Hipóteses de valor documentadas"},
	{"Proposta de Valor", "Estimativa de rentabilidade feita"},
}

// SeedChecklist inserts the default items unless the idea already has a checklist.
func (e Engine) SeedChecklist(ctx context.Context, ideaID, actorID string) ([]domain.ChecklistItem, error) {
	var items []domain.ChecklistItem
	err := e.inTx(ctx, "seed checklist", func(tx *sql.Tx) error {
		if _, err := e.Repo.GetIdea(ctx, tx, ideaID); err != nil {
			return backend("get idea", err)
		}
		n, err := e.Repo.CountChecklistItems(ctx, tx, ideaID)
		if err != nil {
			return backend("count checklist", err)
		}
		if n == 0 {
			now := e.timestamp()
			for _, d := range DefaultChecklist {
				it := domain.ChecklistItem{ID: e.newID(), IdeaID: ideaID, Categoria: d.Categoria, Item: d.Item, CreatedAt: now}
				if err := e.Repo.InsertChecklistItem(ctx, tx, it); err != nil {
					return backend("insert checklist item", err)
				}
			}
			if err := e.audit().Append(ctx, tx, events.ChecklistSeeded, "idea", ideaID, actorID, events.EventPayload{"items": len(DefaultChecklist)}); err != nil {
				return backend("append event", err)
			}
		}
		items, err = e.Repo.ListChecklist(ctx, tx, ideaID)
		return backend("list checklist", err)
	})
	return items, err
}

func (e Engine) AddChecklistItem(ctx context.Context, ideaID, categoria, item, actorID string) (domain.ChecklistItem, error) {
	categoria = strings.TrimSpace(categoria)
	item = strings.TrimSpace(item)
	if categoria == "" || item == "" {
		return domain.ChecklistItem{}, validationf("categoria and item are required")
	}
	it := domain.ChecklistItem{ID: e.newID(), IdeaID: ideaID, Categoria: categoria, Item: item, CreatedAt: e.timestamp()}
	err := e.inTx(ctx, "add checklist item", func(tx *sql.Tx) error {
		if _, err := e.Repo.GetIdea(ctx, tx, ideaID); err != nil {
			return backend("get idea", err)
		}
		if err := e.Repo.InsertChecklistItem(ctx, tx, it); err != nil {
			return backend("insert checklist item", err)
		}
		return backend("append event", e.audit().Append(ctx, tx, events.ChecklistItemAdded, "checklist_item", it.ID, actorID, events.EventPayload{"idea_id": ideaID}))
	})
	if err != nil {
		return domain.ChecklistItem{}, err
	}
	return it, nil
}

func (e Engine) SetChecklistItemDone(ctx context.Context, id string, done bool, actorID string) (domain.ChecklistItem, error) {
	var it domain.ChecklistItem
	err := e.inTx(ctx, "update checklist item", func(tx *sql.Tx) error {
		if err := e.Repo.SetChecklistItemDone(ctx, tx, id, done); err != nil {
			return backend("update checklist item", err)
		}
		var err error
		it, err = e.Repo.GetChecklistItem(ctx, tx, id)
		if err != nil {
			return backend("get checklist item", err)
		}
		return backend("append event", e.audit().Append(ctx, tx, events.ChecklistItemUpdated, "checklist_item", id, actorID, events.EventPayload{"concluido": done}))
	})
	if err != nil {
		return domain.ChecklistItem{}, err
	}
	return it, nil
}

func (e Engine) DeleteChecklistItem(ctx context.Context, id, actorID string) error {
	return e.inTx(ctx, "delete checklist item", func(tx *sql.Tx) error {
		if err := e.Repo.DeleteChecklistItem(ctx, tx, id); err != nil {
			return backend("delete checklist item", err)
		}
		return backend("append event", e.audit().Append(ctx, tx, events.ChecklistItemDeleted, "checklist_item", id, actorID, nil))
	})
}

func (e Engine) ListChecklist(ctx context.Context, ideaID string) ([]domain.ChecklistItem, error) {
	if _, err := e.Repo.GetIdea(ctx, nil, ideaID); err != nil {
		return nil, backend("get idea", err)
	}
	items, err := e.Repo.ListChecklist(ctx, nil, ideaID)
	if err != nil {
		return nil, backend("list checklist", err)
	}
	return items, nil
}

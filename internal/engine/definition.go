package engine

import (
	"context"
	"database/sql"
	"strings"

	"github.com/sirupsen/logrus"

	"ideaflow/internal/domain"
	"ideaflow/internal/events"
)

const definitionFields = 8

// ComputeProgress returns the share of filled fields as a percentage rounded
// half up. Text fields count when non-blank, capability flags when true.
func ComputeProgress(d domain.Definition) int {
	filled := 0
	for _, s := range []string{d.AlinhamentoEstrategico, d.PublicoAlvo, d.Mercado, d.HipotesesValor, d.EstimativaRentabilidade} {
		if strings.TrimSpace(s) != "" {
			filled++
		}
	}
	for _, b := range []bool{d.CapacidadeTecnica, d.CapacidadeOperacional, d.CapacidadeRecursos} {
		if b {
			filled++
		}
	}
	return (filled*100 + definitionFields/2) / definitionFields
}

// SaveDefinition upserts the idea's definition with a freshly computed progress.
func (e Engine) SaveDefinition(ctx context.Context, ideaID string, doc domain.Definition, actorID string) (domain.Definition, error) {
	doc.IdeaID = ideaID
	doc.ProgressoPercentual = ComputeProgress(doc)
	doc.UpdatedAt = e.timestamp()
	var saved domain.Definition
	err := e.inTx(ctx, "save definition", func(tx *sql.Tx) error {
		if _, err := e.Repo.GetIdea(ctx, tx, ideaID); err != nil {
			return backend("get idea", err)
		}
		if err := e.Repo.UpsertDefinition(ctx, tx, doc); err != nil {
			return backend("upsert definition", err)
		}
		if err := e.audit().Append(ctx, tx, events.DefinitionSaved, "idea", ideaID, actorID, events.EventPayload{"progresso_percentual": doc.ProgressoPercentual}); err != nil {
			return backend("append event", err)
		}
		var err error
		saved, err = e.Repo.GetDefinition(ctx, tx, ideaID)
		return backend("reload definition", err)
	})
	if err != nil {
		return domain.Definition{}, err
	}
	e.log().WithFields(logrus.Fields{"idea_id": ideaID, "actor_id": actorID, "progress": saved.ProgressoPercentual}).Info("definition saved")
	return saved, nil
}

func (e Engine) GetDefinition(ctx context.Context, ideaID string) (domain.Definition, error) {
	if _, err := e.Repo.GetIdea(ctx, nil, ideaID); err != nil {
		return domain.Definition{}, backend("get idea", err)
	}
	d, err := e.Repo.GetDefinition(ctx, nil, ideaID)
	if err != nil {
		return domain.Definition{}, backend("get definition", err)
	}
	return d, nil
}

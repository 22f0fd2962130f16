package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"ideaflow/internal/domain"
	"ideaflow/internal/events"
	"ideaflow/internal/repo"
)

// directTransitions lists the status changes an owner or author may request.
// Leaving Pronta para Avaliação is only possible by recording an evaluation.
var directTransitions = map[domain.Status][]domain.Status{
	domain.StatusGeracao:     {domain.StatusEmDefinicao},
	domain.StatusEmDefinicao: {domain.StatusProntaParaAvaliacao},
	domain.StatusAprovada:    {domain.StatusArquivada},
}

// NextStatuses returns the direct-action targets reachable from status.
func NextStatuses(status domain.Status) []domain.Status {
	next := directTransitions[status]
	out := make([]domain.Status, len(next))
	copy(out, next)
	return out
}

func ensureIdeaTransition(from, to domain.Status) error {
	for _, allowed := range directTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// CanAssumeOwnership reports whether anyone may still claim the idea.
func CanAssumeOwnership(idea domain.Idea) bool {
	return !idea.HasOwner() && !idea.Status.Closed()
}

// NormalizeTags trims, lower-cases and de-duplicates tags, dropping blanks.
func NormalizeTags(in []string) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, t := range in {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

type CreateIdeaOptions struct {
	Titulo    string
	Descricao string
	Fonte     string
	Segmento  string
	Impacto   string
	Tags      []string
	ActorID   string
}

func (e Engine) CreateIdea(ctx context.Context, opts CreateIdeaOptions) (domain.Idea, error) {
	titulo := strings.TrimSpace(opts.Titulo)
	descricao := strings.TrimSpace(opts.Descricao)
	if titulo == "" {
		return domain.Idea{}, validationf("titulo is required")
	}
	if descricao == "" {
		return domain.Idea{}, validationf("descricao is required")
	}
	if opts.ActorID == "" {
		return domain.Idea{}, validationf("actor is required")
	}
	now := e.timestamp()
	idea := domain.Idea{
		ID:        e.newID(),
		Titulo:    titulo,
		Descricao: descricao,
		Fonte:     optionalString(strings.TrimSpace(opts.Fonte)),
		Segmento:  optionalString(strings.TrimSpace(opts.Segmento)),
		Impacto:   optionalString(strings.TrimSpace(opts.Impacto)),
		Status:    domain.StatusGeracao,
		AutorID:   opts.ActorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	tags := NormalizeTags(opts.Tags)
	var created domain.Idea
	err := e.inTx(ctx, "create idea", func(tx *sql.Tx) error {
		if err := e.Repo.InsertIdea(ctx, tx, idea); err != nil {
			return backend("insert idea", err)
		}
		if err := e.Repo.SetIdeaTags(ctx, tx, idea.ID, tags); err != nil {
			return backend("set idea tags", err)
		}
		if err := e.audit().Append(ctx, tx, events.IdeaCreated, "idea", idea.ID, opts.ActorID, events.EventPayload{"titulo": titulo, "tags": tags}); err != nil {
			return backend("append event", err)
		}
		var err error
		created, err = e.Repo.GetIdea(ctx, tx, idea.ID)
		return backend("reload idea", err)
	})
	if err != nil {
		return domain.Idea{}, err
	}
	e.log().WithFields(logrus.Fields{"idea_id": created.ID, "actor_id": opts.ActorID}).Info("idea created")
	return created, nil
}

func (e Engine) GetIdea(ctx context.Context, id string) (domain.Idea, error) {
	idea, err := e.Repo.GetIdea(ctx, nil, id)
	if err != nil {
		return domain.Idea{}, backend("get idea", err)
	}
	return idea, nil
}

func (e Engine) ListIdeas(ctx context.Context, f repo.IdeaFilters) ([]domain.Idea, error) {
	if f.Status != "" && !domain.Status(f.Status).Valid() {
		return nil, validationf("unknown status %q", f.Status)
	}
	ideas, err := e.Repo.ListIdeas(ctx, nil, f)
	if err != nil {
		return nil, backend("list ideas", err)
	}
	return ideas, nil
}

type TransitionOptions struct {
	IdeaID        string
	Target        domain.Status
	ActorID       string
	Justificativa string
}

// TransitionIdea applies an owner or author requested status change. A
// justification is only kept when the idea is archived.
func (e Engine) TransitionIdea(ctx context.Context, opts TransitionOptions) (domain.Idea, error) {
	if !opts.Target.Valid() {
		return domain.Idea{}, validationf("unknown status %q", opts.Target)
	}
	var (
		from    domain.Status
		updated domain.Idea
	)
	err := e.inTx(ctx, "transition idea", func(tx *sql.Tx) error {
		idea, err := e.Repo.GetIdea(ctx, tx, opts.IdeaID)
		if err != nil {
			return backend("get idea", err)
		}
		if !idea.IsOwnerOrAuthor(opts.ActorID) {
			return fmt.Errorf("%w: only the owner or author may change the status", ErrPermissionDenied)
		}
		if err := ensureIdeaTransition(idea.Status, opts.Target); err != nil {
			return err
		}
		from = idea.Status
		var justificativa *string
		if opts.Target == domain.StatusArquivada {
			justificativa = optionalString(strings.TrimSpace(opts.Justificativa))
		}
		if err := e.Repo.UpdateIdeaStatus(ctx, tx, idea.ID, opts.Target, justificativa, e.timestamp()); err != nil {
			return backend("update idea status", err)
		}
		payload := events.EventPayload{"from": string(from), "to": string(opts.Target)}
		if justificativa != nil {
			payload["justificativa"] = *justificativa
		}
		if err := e.audit().Append(ctx, tx, events.IdeaStatusChanged, "idea", idea.ID, opts.ActorID, payload); err != nil {
			return backend("append event", err)
		}
		updated, err = e.Repo.GetIdea(ctx, tx, idea.ID)
		return backend("reload idea", err)
	})
	if err != nil {
		return domain.Idea{}, err
	}
	statusTransitions.WithLabelValues(string(from), string(opts.Target), "direct").Inc()
	e.log().WithFields(logrus.Fields{
		"idea_id": updated.ID, "actor_id": opts.ActorID, "from": from, "to": opts.Target,
	}).Info("idea status changed")
	return updated, nil
}

type EvaluationInput struct {
	IdeaID                 string
	ActorID                string
	NotaClarezaObjetivos   int
	NotaAnaliseNegocio     int
	NotaViabilidadeTecnica int
	Decisao                domain.Status
	Justificativa          string
}

func (in EvaluationInput) validate() error {
	if in.Decisao != domain.StatusAprovada && in.Decisao != domain.StatusArquivada {
		return validationf("decisao must be %s or %s", domain.StatusAprovada, domain.StatusArquivada)
	}
	scores := []struct {
		name  string
		value int
	}{
		{"nota_clareza_objetivos", in.NotaClarezaObjetivos},
		{"nota_analise_negocio", in.NotaAnaliseNegocio},
		{"nota_viabilidade_tecnica", in.NotaViabilidadeTecnica},
	}
	for _, sc := range scores {
		if sc.value < 1 || sc.value > 5 {
			return validationf("%s must be between 1 and 5", sc.name)
		}
	}
	if in.Decisao == domain.StatusArquivada && strings.TrimSpace(in.Justificativa) == "" {
		return validationf("justificativa is required when archiving")
	}
	if in.ActorID == "" {
		return validationf("actor is required")
	}
	return nil
}

// RecordEvaluation stores the evaluation and moves the idea to its decision in
// the same transaction.
func (e Engine) RecordEvaluation(ctx context.Context, in EvaluationInput) (domain.Evaluation, error) {
	if err := in.validate(); err != nil {
		return domain.Evaluation{}, err
	}
	ev := domain.Evaluation{
		ID:                     e.newID(),
		IdeaID:                 in.IdeaID,
		AvaliadorID:            in.ActorID,
		NotaClarezaObjetivos:   in.NotaClarezaObjetivos,
		NotaAnaliseNegocio:     in.NotaAnaliseNegocio,
		NotaViabilidadeTecnica: in.NotaViabilidadeTecnica,
		Decisao:                in.Decisao,
		Justificativa:          optionalString(strings.TrimSpace(in.Justificativa)),
		CreatedAt:              e.timestamp(),
	}
	err := e.inTx(ctx, "record evaluation", func(tx *sql.Tx) error {
		idea, err := e.Repo.GetIdea(ctx, tx, in.IdeaID)
		if err != nil {
			return backend("get idea", err)
		}
		if idea.Status != domain.StatusProntaParaAvaliacao {
			return fmt.Errorf("%w: idea is %s, evaluation requires %s", ErrInvalidState, idea.Status, domain.StatusProntaParaAvaliacao)
		}
		if err := e.Repo.InsertEvaluation(ctx, tx, ev); err != nil {
			return backend("insert evaluation", err)
		}
		var justificativa *string
		if ev.Decisao == domain.StatusArquivada {
			justificativa = ev.Justificativa
		}
		if err := e.Repo.UpdateIdeaStatus(ctx, tx, idea.ID, ev.Decisao, justificativa, ev.CreatedAt); err != nil {
			return backend("update idea status", err)
		}
		return backend("append event", e.audit().Append(ctx, tx, events.EvaluationRecorded, "idea", idea.ID, in.ActorID, events.EventPayload{
			"evaluation_id": ev.ID,
			"from":          string(idea.Status),
			"to":            string(ev.Decisao),
		}))
	})
	if err != nil {
		return domain.Evaluation{}, err
	}
	statusTransitions.WithLabelValues(string(domain.StatusProntaParaAvaliacao), string(ev.Decisao), "evaluation").Inc()
	e.log().WithFields(logrus.Fields{"idea_id": ev.IdeaID, "actor_id": in.ActorID, "decisao": ev.Decisao}).Info("evaluation recorded")
	return ev, nil
}

func (e Engine) ListEvaluations(ctx context.Context, ideaID string) ([]domain.Evaluation, error) {
	if _, err := e.Repo.GetIdea(ctx, nil, ideaID); err != nil {
		return nil, backend("get idea", err)
	}
	items, err := e.Repo.ListEvaluations(ctx, nil, ideaID)
	if err != nil {
		return nil, backend("list evaluations", err)
	}
	return items, nil
}

// AssumeOwnership makes actor the owner. The claim is a conditional update, so
// of two concurrent claimers only one succeeds.
func (e Engine) AssumeOwnership(ctx context.Context, ideaID, actorID string) (domain.Idea, error) {
	if actorID == "" {
		return domain.Idea{}, validationf("actor is required")
	}
	var updated domain.Idea
	err := e.inTx(ctx, "assume ownership", func(tx *sql.Tx) error {
		idea, err := e.Repo.GetIdea(ctx, tx, ideaID)
		if err != nil {
			return backend("get idea", err)
		}
		if idea.HasOwner() {
			return fmt.Errorf("%w: idea %s already has an owner", ErrAlreadyOwned, idea.ID)
		}
		if idea.Status.Closed() {
			return fmt.Errorf("%w: idea is %s", ErrInvalidState, idea.Status)
		}
		won, err := e.Repo.ClaimOwnership(ctx, tx, idea.ID, actorID, e.timestamp())
		if err != nil {
			return backend("claim ownership", err)
		}
		if !won {
			return fmt.Errorf("%w: idea %s already has an owner", ErrAlreadyOwned, idea.ID)
		}
		if err := e.audit().Append(ctx, tx, events.IdeaOwnershipTaken, "idea", idea.ID, actorID, nil); err != nil {
			return backend("append event", err)
		}
		updated, err = e.Repo.GetIdea(ctx, tx, idea.ID)
		return backend("reload idea", err)
	})
	if err != nil {
		return domain.Idea{}, err
	}
	e.log().WithFields(logrus.Fields{"idea_id": ideaID, "actor_id": actorID}).Info("ownership assumed")
	return updated, nil
}

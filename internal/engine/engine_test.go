package engine_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"ideaflow/internal/config"
	"ideaflow/internal/db"
	"ideaflow/internal/domain"
	"ideaflow/internal/engine"
	"ideaflow/internal/logging"
	"ideaflow/internal/migrate"
	"ideaflow/internal/repo"
	"ideaflow/internal/storage"
)

type testEnv struct {
	Engine engine.Engine
	Store  *flakyStore
	Ctx    context.Context
}

// stepClock advances one second per reading so rows get distinct timestamps.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

// flakyStore wraps the filesystem store with injectable failures.
type flakyStore struct {
	*storage.FSStore
	mu         sync.Mutex
	putExists  int
	failDelete error
}

func (s *flakyStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	s.mu.Lock()
	if s.putExists > 0 {
		s.putExists--
		s.mu.Unlock()
		return storage.ErrExists
	}
	s.mu.Unlock()
	return s.FSStore.Put(ctx, key, r, size, contentType)
}

func (s *flakyStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	err := s.failDelete
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.FSStore.Delete(ctx, key)
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	fs, err := storage.NewFSStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	store := &flakyStore{FSStore: fs}
	eng := engine.New(conn, config.Default(), store, logging.Discard())
	clock := &stepClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	eng.Now = clock.Now
	return testEnv{Engine: eng, Store: store, Ctx: context.Background()}
}

func (env testEnv) createIdea(t *testing.T, author string) domain.Idea {
	t.Helper()
	idea, err := env.Engine.CreateIdea(env.Ctx, engine.CreateIdeaOptions{
		Titulo:    "Portal do cliente",
		Descricao: "Autoatendimento para faturas",
		Tags:      []string{"Portal", " portal ", "Clientes"},
		ActorID:   author,
	})
	if err != nil {
		t.Fatalf("create idea: %v", err)
	}
	return idea
}

func (env testEnv) moveTo(t *testing.T, id, actor string, targets ...domain.Status) domain.Idea {
	t.Helper()
	var idea domain.Idea
	var err error
	for _, target := range targets {
		idea, err = env.Engine.TransitionIdea(env.Ctx, engine.TransitionOptions{IdeaID: id, Target: target, ActorID: actor})
		if err != nil {
			t.Fatalf("transition to %s: %v", target, err)
		}
	}
	return idea
}

func TestCreateIdeaDefaults(t *testing.T) {
	env := newTestEnv(t)
	idea := env.createIdea(t, "ana")
	if idea.Status != domain.StatusGeracao {
		t.Fatalf("expected Geração, got %s", idea.Status)
	}
	if idea.AutorID != "ana" || idea.HasOwner() {
		t.Fatalf("unexpected author/owner: %+v", idea)
	}
	if len(idea.Tags) != 2 || idea.Tags[0] != "clientes" || idea.Tags[1] != "portal" {
		t.Fatalf("tags not normalized: %v", idea.Tags)
	}
	if idea.Votos != 0 || idea.Comentarios != 0 {
		t.Fatalf("expected zero counters, got %d/%d", idea.Votos, idea.Comentarios)
	}
}

func TestCreateIdeaRequiresTitleAndDescription(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateIdea(env.Ctx, engine.CreateIdeaOptions{Titulo: "  ", Descricao: "x", ActorID: "ana"})
	if !errors.Is(err, engine.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	_, err = env.Engine.CreateIdea(env.Ctx, engine.CreateIdeaOptions{Titulo: "x", Descricao: "", ActorID: "ana"})
	if !errors.Is(err, engine.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTransitionHappyPathToArchive(t *testing.T) {
	env := newTestEnv(t)
	idea := env.createIdea(t, "ana")
	idea = env.moveTo(t, idea.ID, "ana", domain.StatusEmDefinicao, domain.StatusProntaParaAvaliacao)
	if idea.Status != domain.StatusProntaParaAvaliacao {
		t.Fatalf("expected Pronta para Avaliação, got %s", idea.Status)
	}
	if _, err := env.Engine.RecordEvaluation(env.Ctx, engine.EvaluationInput{
		IdeaID: idea.ID, ActorID: "rui", NotaClarezaObjetivos: 4, NotaAnaliseNegocio: 4, NotaViabilidadeTecnica: 5,
		Decisao: domain.StatusAprovada,
	}); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	idea, err := env.Engine.TransitionIdea(env.Ctx, engine.TransitionOptions{
		IdeaID: idea.ID, Target: domain.StatusArquivada, ActorID: "ana", Justificativa: "Descontinuada",
	})
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if idea.Status != domain.StatusArquivada || idea.JustificativaRejeicao == nil || *idea.JustificativaRejeicao != "Descontinuada" {
		t.Fatalf("unexpected archived idea: %+v", idea)
	}
	_, err = env.Engine.TransitionIdea(env.Ctx, engine.TransitionOptions{IdeaID: idea.ID, Target: domain.StatusGeracao, ActorID: "ana"})
	if !errors.Is(err, engine.ErrInvalidTransition) {
		t.Fatalf("archived is terminal, got %v", err)
	}
}

func TestTransitionRequiresOwnerOrAuthor(t *testing.T) {
	env := newTestEnv(t)
	idea := env.createIdea(t, "ana")
	_, err := env.Engine.TransitionIdea(env.Ctx, engine.TransitionOptions{IdeaID: idea.ID, Target: domain.StatusEmDefinicao, ActorID: "bia"})
	if !errors.Is(err, engine.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if _, err := env.Engine.AssumeOwnership(env.Ctx, idea.ID, "bia"); err != nil {
		t.Fatalf("assume: %v", err)
	}
	env.moveTo(t, idea.ID, "bia", domain.StatusEmDefinicao)
	got, err := env.Engine.GetIdea(env.Ctx, idea.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.StatusEmDefinicao {
		t.Fatalf("owner transition not persisted: %s", got.Status)
	}
}

// ideaAt creates an idea authored by ana and drives it to status.
func (env testEnv) ideaAt(t *testing.T, status domain.Status) domain.Idea {
	t.Helper()
	idea := env.createIdea(t, "ana")
	if status == domain.StatusGeracao {
		return idea
	}
	idea = env.moveTo(t, idea.ID, "ana", domain.StatusEmDefinicao)
	if status == domain.StatusEmDefinicao {
		return idea
	}
	idea = env.moveTo(t, idea.ID, "ana", domain.StatusProntaParaAvaliacao)
	if status == domain.StatusProntaParaAvaliacao {
		return idea
	}
	_, err := env.Engine.RecordEvaluation(env.Ctx, engine.EvaluationInput{
		IdeaID:                 idea.ID,
		ActorID:                "comite",
		NotaClarezaObjetivos:   3,
		NotaAnaliseNegocio:     3,
		NotaViabilidadeTecnica: 3,
		Decisao:                domain.StatusAprovada,
	})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if status == domain.StatusAprovada {
		return env.mustGet(t, idea.ID)
	}
	return env.moveTo(t, idea.ID, "ana", domain.StatusArquivada)
}

func (env testEnv) mustGet(t *testing.T, id string) domain.Idea {
	t.Helper()
	idea, err := env.Engine.GetIdea(env.Ctx, id)
	if err != nil {
		t.Fatalf("get idea: %v", err)
	}
	return idea
}

func TestTransitionGrid(t *testing.T) {
	allowed := map[[2]domain.Status]bool{
		{domain.StatusGeracao, domain.StatusEmDefinicao}:             true,
		{domain.StatusEmDefinicao, domain.StatusProntaParaAvaliacao}: true,
		{domain.StatusAprovada, domain.StatusArquivada}:              true,
	}
	env := newTestEnv(t)
	for _, from := range domain.Statuses {
		for _, to := range domain.Statuses {
			t.Run(string(from)+" to "+string(to), func(t *testing.T) {
				idea := env.ideaAt(t, from)
				if idea.Status != from {
					t.Fatalf("setup reached %s, want %s", idea.Status, from)
				}
				_, err := env.Engine.TransitionIdea(env.Ctx, engine.TransitionOptions{IdeaID: idea.ID, Target: to, ActorID: "ana"})
				got := env.mustGet(t, idea.ID)
				if allowed[[2]domain.Status{from, to}] {
					if err != nil || got.Status != to {
						t.Fatalf("expected %s -> %s to succeed, got %v (status %s)", from, to, err, got.Status)
					}
					return
				}
				if !errors.Is(err, engine.ErrInvalidTransition) {
					t.Fatalf("expected invalid transition for %s -> %s, got %v", from, to, err)
				}
				if got.Status != from {
					t.Fatalf("status changed on rejected transition: %s -> %s", from, got.Status)
				}
			})
		}
	}
}

func TestTransitionUnknownIdea(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.TransitionIdea(env.Ctx, engine.TransitionOptions{IdeaID: "missing", Target: domain.StatusEmDefinicao, ActorID: "ana"})
	if !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestJustificationIgnoredOutsideArchive(t *testing.T) {
	env := newTestEnv(t)
	idea := env.createIdea(t, "ana")
	idea, err := env.Engine.TransitionIdea(env.Ctx, engine.TransitionOptions{
		IdeaID: idea.ID, Target: domain.StatusEmDefinicao, ActorID: "ana", Justificativa: "ignored",
	})
	if err != nil {
		t.Fatal(err)
	}
	if idea.JustificativaRejeicao != nil {
		t.Fatalf("justification stored outside archive: %v", *idea.JustificativaRejeicao)
	}
}

func TestNextStatuses(t *testing.T) {
	cases := map[domain.Status][]domain.Status{
		domain.StatusGeracao:             {domain.StatusEmDefinicao},
		domain.StatusEmDefinicao:         {domain.StatusProntaParaAvaliacao},
		domain.StatusProntaParaAvaliacao: {},
		domain.StatusAprovada:            {domain.StatusArquivada},
		domain.StatusArquivada:           {},
	}
	for from, want := range cases {
		got := engine.NextStatuses(from)
		if len(got) != len(want) {
			t.Fatalf("%s: expected %v, got %v", from, want, got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("%s: expected %v, got %v", from, want, got)
			}
		}
	}
}

func TestRecordEvaluationArchivesWithJustification(t *testing.T) {
	env := newTestEnv(t)
	idea := env.createIdea(t, "ana")
	env.moveTo(t, idea.ID, "ana", domain.StatusEmDefinicao, domain.StatusProntaParaAvaliacao)
	ev, err := env.Engine.RecordEvaluation(env.Ctx, engine.EvaluationInput{
		IdeaID: idea.ID, ActorID: "rui", NotaClarezaObjetivos: 2, NotaAnaliseNegocio: 1, NotaViabilidadeTecnica: 3,
		Decisao: domain.StatusArquivada, Justificativa: "Sem mercado",
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	got, err := env.Engine.GetIdea(env.Ctx, idea.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.StatusArquivada {
		t.Fatalf("expected Arquivada, got %s", got.Status)
	}
	if got.JustificativaRejeicao == nil || *got.JustificativaRejeicao != "Sem mercado" {
		t.Fatalf("justification not stored: %v", got.JustificativaRejeicao)
	}
	evals, err := env.Engine.ListEvaluations(env.Ctx, idea.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(evals) != 1 || evals[0].ID != ev.ID || evals[0].AvaliadorID != "rui" {
		t.Fatalf("unexpected evaluations: %+v", evals)
	}
}

func TestRecordEvaluationValidationWritesNothing(t *testing.T) {
	env := newTestEnv(t)
	idea := env.createIdea(t, "ana")
	env.moveTo(t, idea.ID, "ana", domain.StatusEmDefinicao, domain.StatusProntaParaAvaliacao)
	bad := []engine.EvaluationInput{
		{NotaClarezaObjetivos: 3, NotaAnaliseNegocio: 3, NotaViabilidadeTecnica: 3, Decisao: domain.StatusArquivada, Justificativa: "   "},
		{NotaClarezaObjetivos: 0, NotaAnaliseNegocio: 3, NotaViabilidadeTecnica: 3, Decisao: domain.StatusAprovada},
		{NotaClarezaObjetivos: 3, NotaAnaliseNegocio: 6, NotaViabilidadeTecnica: 3, Decisao: domain.StatusAprovada},
		{NotaClarezaObjetivos: 3, NotaAnaliseNegocio: 3, NotaViabilidadeTecnica: 3, Decisao: domain.StatusEmDefinicao},
	}
	for i, in := range bad {
		in.IdeaID = idea.ID
		in.ActorID = "rui"
		if _, err := env.Engine.RecordEvaluation(env.Ctx, in); !errors.Is(err, engine.ErrValidation) {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
	evals, err := env.Engine.ListEvaluations(env.Ctx, idea.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(evals) != 0 {
		t.Fatalf("expected no evaluations, got %d", len(evals))
	}
	got, _ := env.Engine.GetIdea(env.Ctx, idea.ID)
	if got.Status != domain.StatusProntaParaAvaliacao {
		t.Fatalf("status changed: %s", got.Status)
	}
}

func TestRecordEvaluationReportsFirstBadScore(t *testing.T) {
	env := newTestEnv(t)
	idea := env.ideaAt(t, domain.StatusProntaParaAvaliacao)
	in := engine.EvaluationInput{
		IdeaID:                 idea.ID,
		ActorID:                "rui",
		NotaClarezaObjetivos:   3,
		NotaAnaliseNegocio:     9,
		NotaViabilidadeTecnica: 0,
		Decisao:                domain.StatusAprovada,
	}
	for i := 0; i < 20; i++ {
		_, err := env.Engine.RecordEvaluation(env.Ctx, in)
		if !errors.Is(err, engine.ErrValidation) || !strings.Contains(err.Error(), "nota_analise_negocio") {
			t.Fatalf("attempt %d: expected nota_analise_negocio to be reported, got %v", i, err)
		}
	}
}

func TestRecordEvaluationRequiresReadyIdea(t *testing.T) {
	env := newTestEnv(t)
	idea := env.createIdea(t, "ana")
	in := engine.EvaluationInput{
		IdeaID: idea.ID, ActorID: "rui", NotaClarezaObjetivos: 5, NotaAnaliseNegocio: 5, NotaViabilidadeTecnica: 5,
		Decisao: domain.StatusAprovada,
	}
	if _, err := env.Engine.RecordEvaluation(env.Ctx, in); !errors.Is(err, engine.ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
	in.IdeaID = "missing"
	if _, err := env.Engine.RecordEvaluation(env.Ctx, in); !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	evals, _ := env.Engine.ListEvaluations(env.Ctx, idea.ID)
	if len(evals) != 0 {
		t.Fatalf("evaluation written for rejected call")
	}
}

func TestAssumeOwnership(t *testing.T) {
	env := newTestEnv(t)
	idea := env.createIdea(t, "ana")
	if !engine.CanAssumeOwnership(idea) {
		t.Fatalf("fresh idea should be claimable")
	}
	owned, err := env.Engine.AssumeOwnership(env.Ctx, idea.ID, "bia")
	if err != nil {
		t.Fatalf("assume: %v", err)
	}
	if owned.OwnerID == nil || *owned.OwnerID != "bia" {
		t.Fatalf("owner not set: %+v", owned)
	}
	if engine.CanAssumeOwnership(owned) {
		t.Fatalf("owned idea should not be claimable")
	}
	for _, actor := range []string{"bia", "caio"} {
		if _, err := env.Engine.AssumeOwnership(env.Ctx, idea.ID, actor); !errors.Is(err, engine.ErrAlreadyOwned) {
			t.Fatalf("%s: expected already owned, got %v", actor, err)
		}
	}
}

func TestAssumeOwnershipClosedIdea(t *testing.T) {
	env := newTestEnv(t)
	idea := env.createIdea(t, "ana")
	env.moveTo(t, idea.ID, "ana", domain.StatusEmDefinicao, domain.StatusProntaParaAvaliacao)
	if _, err := env.Engine.RecordEvaluation(env.Ctx, engine.EvaluationInput{
		IdeaID: idea.ID, ActorID: "rui", NotaClarezaObjetivos: 5, NotaAnaliseNegocio: 5, NotaViabilidadeTecnica: 5,
		Decisao: domain.StatusAprovada,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.AssumeOwnership(env.Ctx, idea.ID, "bia"); !errors.Is(err, engine.ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
	got, _ := env.Engine.GetIdea(env.Ctx, idea.ID)
	if got.HasOwner() {
		t.Fatalf("closed idea got an owner")
	}
}

func TestConcurrentOwnershipClaimsHaveOneWinner(t *testing.T) {
	env := newTestEnv(t)
	idea := env.createIdea(t, "ana")
	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.Engine.AssumeOwnership(env.Ctx, idea.ID, string(rune('a'+i)))
		}(i)
	}
	wg.Wait()
	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, engine.ErrAlreadyOwned):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one owner, got %d", wins)
	}
}

func TestListIdeasFiltersAndCursor(t *testing.T) {
	env := newTestEnv(t)
	first := env.createIdea(t, "ana")
	second := env.createIdea(t, "bia")
	third := env.createIdea(t, "ana")
	env.moveTo(t, second.ID, "bia", domain.StatusEmDefinicao)

	all, err := env.Engine.ListIdeas(env.Ctx, repoFilters("", "", 0, "", ""))
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].ID != third.ID || all[2].ID != first.ID {
		t.Fatalf("expected newest first, got %v", ids(all))
	}
	byAuthor, _ := env.Engine.ListIdeas(env.Ctx, repoFilters("", "ana", 0, "", ""))
	if len(byAuthor) != 2 {
		t.Fatalf("author filter: %v", ids(byAuthor))
	}
	byStatus, _ := env.Engine.ListIdeas(env.Ctx, repoFilters(string(domain.StatusEmDefinicao), "", 0, "", ""))
	if len(byStatus) != 1 || byStatus[0].ID != second.ID {
		t.Fatalf("status filter: %v", ids(byStatus))
	}
	page, _ := env.Engine.ListIdeas(env.Ctx, repoFilters("", "", 1, all[0].CreatedAt, all[0].ID))
	if len(page) != 1 || page[0].ID != second.ID {
		t.Fatalf("cursor page: %v", ids(page))
	}
	if _, err := env.Engine.ListIdeas(env.Ctx, repoFilters("Encerrada", "", 0, "", "")); !errors.Is(err, engine.ErrValidation) {
		t.Fatalf("expected validation error for unknown status, got %v", err)
	}
}

func TestListIdeasSearchFoldsAccentedCase(t *testing.T) {
	env := newTestEnv(t)
	agua, err := env.Engine.CreateIdea(env.Ctx, engine.CreateIdeaOptions{
		Titulo:    "ÁGUA potável",
		Descricao: "Reúso na FÁBRICA",
		ActorID:   "ana",
	})
	if err != nil {
		t.Fatal(err)
	}
	env.createIdea(t, "ana")

	for _, q := range []string{"água", "ÁGUA", "Água", "fábrica", "REÚSO"} {
		got, err := env.Engine.ListIdeas(env.Ctx, repo.IdeaFilters{Search: q})
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0].ID != agua.ID {
			t.Fatalf("search %q: got %v", q, ids(got))
		}
	}
	none, _ := env.Engine.ListIdeas(env.Ctx, repo.IdeaFilters{Search: "esgoto"})
	if len(none) != 0 {
		t.Fatalf("unexpected match: %v", ids(none))
	}
}

func TestCountByStatusIncludesEveryStatus(t *testing.T) {
	env := newTestEnv(t)
	a := env.createIdea(t, "ana")
	env.createIdea(t, "ana")
	env.moveTo(t, a.ID, "ana", domain.StatusEmDefinicao)
	counts, err := env.Engine.CountByStatus(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts.Total != 2 || len(counts.ByStatus) != len(domain.Statuses) {
		t.Fatalf("unexpected counts: %+v", counts)
	}
	if counts.ByStatus[domain.StatusGeracao] != 1 || counts.ByStatus[domain.StatusEmDefinicao] != 1 || counts.ByStatus[domain.StatusAprovada] != 0 {
		t.Fatalf("unexpected per-status counts: %+v", counts.ByStatus)
	}
}

func TestMutationsAppendEvents(t *testing.T) {
	env := newTestEnv(t)
	idea := env.createIdea(t, "ana")
	env.moveTo(t, idea.ID, "ana", domain.StatusEmDefinicao)
	evts, err := env.Engine.ListEvents(env.Ctx, eventFilters(idea.ID))
	if err != nil {
		t.Fatal(err)
	}
	if len(evts) != 2 || evts[0].Type != "idea.status_changed" || evts[1].Type != "idea.created" {
		t.Fatalf("unexpected events: %+v", evts)
	}
	if evts[0].TS == evts[1].TS {
		t.Fatalf("events should use the engine clock")
	}
}

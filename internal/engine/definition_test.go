package engine_test

import (
	"errors"
	"testing"

	"ideaflow/internal/domain"
	"ideaflow/internal/engine"
)

func TestComputeProgress(t *testing.T) {
	cases := []struct {
		name string
		doc  domain.Definition
		want int
	}{
		{"empty", domain.Definition{}, 0},
		{"blank text does not count", domain.Definition{PublicoAlvo: "   "}, 0},
		{"one of eight", domain.Definition{PublicoAlvo: "PMEs"}, 13},
		{"two of eight", domain.Definition{Mercado: "B2B", CapacidadeTecnica: true}, 25},
		{"three of eight", domain.Definition{Mercado: "B2B", HipotesesValor: "h", CapacidadeRecursos: true}, 38},
		{"five of eight", domain.Definition{
			AlinhamentoEstrategico: "a", PublicoAlvo: "b", Mercado: "c", HipotesesValor: "d", EstimativaRentabilidade: "e",
		}, 63},
		{"all", domain.Definition{
			AlinhamentoEstrategico: "a", PublicoAlvo: "b", Mercado: "c", HipotesesValor: "d", EstimativaRentabilidade: "e",
			CapacidadeTecnica: true, CapacidadeOperacional: true, CapacidadeRecursos: true,
		}, 100},
	}
	for _, tc := range cases {
		if got := engine.ComputeProgress(tc.doc); got != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, got)
		}
	}
}

func TestSaveDefinitionUpserts(t *testing.T) {
	env := newTestEnv(t)
	idea := env.createIdea(t, "ana")
	if _, err := env.Engine.GetDefinition(env.Ctx, idea.ID); !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("expected not found before save, got %v", err)
	}
	saved, err := env.Engine.SaveDefinition(env.Ctx, idea.ID, domain.Definition{PublicoAlvo: "PMEs", ProgressoPercentual: 99}, "ana")
	if err != nil {
		t.Fatal(err)
	}
	if saved.ProgressoPercentual != 13 {
		t.Fatalf("progress must be recomputed, got %d", saved.ProgressoPercentual)
	}
	saved, err = env.Engine.SaveDefinition(env.Ctx, idea.ID, domain.Definition{
		PublicoAlvo: "PMEs", Mercado: "Brasil", CapacidadeTecnica: true, CapacidadeOperacional: true,
	}, "ana")
	if err != nil {
		t.Fatal(err)
	}
	got, err := env.Engine.GetDefinition(env.Ctx, idea.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ProgressoPercentual != 50 || got.Mercado != "Brasil" || !got.CapacidadeOperacional || got.CapacidadeRecursos {
		t.Fatalf("unexpected definition: %+v", got)
	}
	if got.UpdatedAt != saved.UpdatedAt {
		t.Fatalf("updated_at mismatch")
	}
	if _, err := env.Engine.SaveDefinition(env.Ctx, "missing", domain.Definition{}, "ana"); !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestChecklistSeedAndEdit(t *testing.T) {
	env := newTestEnv(t)
	idea := env.createIdea(t, "ana")
	items, err := env.Engine.SeedChecklist(env.Ctx, idea.ID, "ana")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != len(engine.DefaultChecklist) {
		t.Fatalf("expected %d items, got %d", len(engine.DefaultChecklist), len(items))
	}
	again, err := env.Engine.SeedChecklist(env.Ctx, idea.ID, "ana")
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != len(items) {
		t.Fatalf("seeding twice duplicated items: %d", len(again))
	}
	if items[0].Categoria != "Análise de Mercado" {
		t.Fatalf("expected category order, got %s", items[0].Categoria)
	}

	done, err := env.Engine.SetChecklistItemDone(env.Ctx, items[0].ID, true, "ana")
	if err != nil || !done.Concluido {
		t.Fatalf("mark done: %+v %v", done, err)
	}
	if _, err := env.Engine.AddChecklistItem(env.Ctx, idea.ID, "", "x", "ana"); !errors.Is(err, engine.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	extra, err := env.Engine.AddChecklistItem(env.Ctx, idea.ID, "Riscos", "Riscos mapeados", "ana")
	if err != nil {
		t.Fatal(err)
	}
	if err := env.Engine.DeleteChecklistItem(env.Ctx, extra.ID, "ana"); err != nil {
		t.Fatal(err)
	}
	if err := env.Engine.DeleteChecklistItem(env.Ctx, extra.ID, "ana"); !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	list, err := env.Engine.ListChecklist(env.Ctx, idea.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != len(engine.DefaultChecklist) {
		t.Fatalf("unexpected checklist size %d", len(list))
	}
}

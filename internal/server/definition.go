package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"ideaflow/internal/domain"
	"ideaflow/internal/engine"
)

func registerDefinition(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-definition",
		Method:      http.MethodGet,
		Path:        "/ideas/{id}/definition",
		Summary:     "Get the idea's definition document",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *ideaPath) (*struct {
		Body domain.Definition `json:"body"`
	}, error) {
		d, err := e.GetDefinition(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Definition `json:"body"`
		}{Body: d}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "save-definition",
		Method:      http.MethodPut,
		Path:        "/ideas/{id}/definition",
		Summary:     "Save the definition document",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body DefinitionRequest `json:"body"`
	}) (*struct {
		Body domain.Definition `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		d, err := e.SaveDefinition(ctx, input.ID, domain.Definition{
			AlinhamentoEstrategico:  input.Body.AlinhamentoEstrategico,
			PublicoAlvo:             input.Body.PublicoAlvo,
			Mercado:                 input.Body.Mercado,
			HipotesesValor:          input.Body.HipotesesValor,
			EstimativaRentabilidade: input.Body.EstimativaRentabilidade,
			CapacidadeTecnica:       input.Body.CapacidadeTecnica,
			CapacidadeOperacional:   input.Body.CapacidadeOperacional,
			CapacidadeRecursos:      input.Body.CapacidadeRecursos,
		}, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Definition `json:"body"`
		}{Body: d}, nil
	})
}

func registerChecklist(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-checklist",
		Method:      http.MethodGet,
		Path:        "/ideas/{id}/checklist",
		Summary:     "List checklist items",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *ideaPath) (*struct {
		Body []domain.ChecklistItem `json:"body"`
	}, error) {
		items, err := e.ListChecklist(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.ChecklistItem `json:"body"`
		}{Body: nonNilSlice(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "seed-checklist",
		Method:      http.MethodPost,
		Path:        "/ideas/{id}/checklist/seed",
		Summary:     "Create the default checklist when none exists",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *ideaPath) (*struct {
		Body []domain.ChecklistItem `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.SeedChecklist(ctx, input.ID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.ChecklistItem `json:"body"`
		}{Body: nonNilSlice(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-checklist-item",
		Method:        http.MethodPost,
		Path:          "/ideas/{id}/checklist",
		Summary:       "Add a checklist item",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string               `path:"id"`
		Body ChecklistItemRequest `json:"body"`
	}) (*struct {
		Body domain.ChecklistItem `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		it, err := e.AddChecklistItem(ctx, input.ID, input.Body.Categoria, input.Body.Item, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ChecklistItem `json:"body"`
		}{Body: it}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-checklist-item",
		Method:      http.MethodPatch,
		Path:        "/checklist/{id}",
		Summary:     "Mark a checklist item done or open",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string                 `path:"id"`
		Body ChecklistUpdateRequest `json:"body"`
	}) (*struct {
		Body domain.ChecklistItem `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		it, err := e.SetChecklistItemDone(ctx, input.ID, input.Body.Concluido, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ChecklistItem `json:"body"`
		}{Body: it}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-checklist-item",
		Method:        http.MethodDelete,
		Path:          "/checklist/{id}",
		Summary:       "Delete a checklist item",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *ideaPath) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteChecklistItem(ctx, input.ID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"ideaflow/internal/domain"
	"ideaflow/internal/engine"
	"ideaflow/internal/repo"
)

type ideaPath struct {
	ID string `path:"id"`
}

func registerIdeas(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-idea",
		Method:        http.MethodPost,
		Path:          "/ideas",
		Summary:       "Submit an idea",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body CreateIdeaRequest `json:"body"`
	}) (*struct {
		Body domain.Idea `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		idea, err := e.CreateIdea(ctx, engine.CreateIdeaOptions{
			Titulo:    input.Body.Titulo,
			Descricao: input.Body.Descricao,
			Fonte:     input.Body.Fonte,
			Segmento:  input.Body.Segmento,
			Impacto:   input.Body.Impacto,
			Tags:      input.Body.Tags,
			ActorID:   actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Idea `json:"body"`
		}{Body: idea}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-ideas",
		Method:      http.MethodGet,
		Path:        "/ideas",
		Summary:     "List ideas",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Status  string `query:"status"`
		AutorID string `query:"autor_id"`
		OwnerID string `query:"owner_id"`
		Tag     string `query:"tag"`
		Search  string `query:"q"`
		Limit   int    `query:"limit" default:"50"`
		Cursor  string `query:"cursor"`
	}) (*struct {
		Body paginatedIdeas `json:"body"`
	}, error) {
		limit := normalizeLimit(input.Limit)
		cursorCreated, cursorID, err := parseCompositeCursor(input.Cursor)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
		}
		ideas, err := e.ListIdeas(ctx, repo.IdeaFilters{
			Status:          input.Status,
			AutorID:         input.AutorID,
			OwnerID:         input.OwnerID,
			Tag:             input.Tag,
			Search:          input.Search,
			Limit:           limit + 1,
			CursorCreatedAt: cursorCreated,
			CursorID:        cursorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedIdeas{}
		if len(ideas) > limit {
			ideas = ideas[:limit]
			last := ideas[limit-1]
			resp.NextCursor = composeCursor(last.CreatedAt, last.ID)
		}
		resp.Items = nonNilSlice(ideas)
		return &struct {
			Body paginatedIdeas `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-idea",
		Method:      http.MethodGet,
		Path:        "/ideas/{id}",
		Summary:     "Get idea",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *ideaPath) (*struct {
		Body domain.Idea `json:"body"`
	}, error) {
		idea, err := e.GetIdea(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Idea `json:"body"`
		}{Body: idea}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "transition-idea",
		Method:      http.MethodPost,
		Path:        "/ideas/{id}/status",
		Summary:     "Change idea status",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body TransitionRequest `json:"body"`
	}) (*struct {
		Body domain.Idea `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		idea, err := e.TransitionIdea(ctx, engine.TransitionOptions{
			IdeaID:        input.ID,
			Target:        domain.Status(input.Body.Status),
			ActorID:       actorID,
			Justificativa: input.Body.Justificativa,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Idea `json:"body"`
		}{Body: idea}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assume-ownership",
		Method:      http.MethodPost,
		Path:        "/ideas/{id}/ownership",
		Summary:     "Become the idea's owner",
		Errors:      []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *ideaPath) (*struct {
		Body domain.Idea `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		idea, err := e.AssumeOwnership(ctx, input.ID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Idea `json:"body"`
		}{Body: idea}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "next-statuses",
		Method:      http.MethodGet,
		Path:        "/ideas/{id}/next-statuses",
		Summary:     "Statuses the idea can move to directly",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *ideaPath) (*struct {
		Body NextStatusesResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		idea, err := e.GetIdea(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body NextStatusesResponse `json:"body"`
		}{Body: NextStatusesResponse{
			Status:             idea.Status,
			NextStatuses:       nonNilSlice(engine.NextStatuses(idea.Status)),
			CanChangeStatus:    idea.IsOwnerOrAuthor(actorID),
			CanAssumeOwnership: engine.CanAssumeOwnership(idea),
		}}, nil
	})
}

func registerDashboard(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "dashboard",
		Method:      http.MethodGet,
		Path:        "/dashboard",
		Summary:     "Idea counts by status",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body domain.StatusCounts `json:"body"`
	}, error) {
		counts, err := e.CountByStatus(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.StatusCounts `json:"body"`
		}{Body: counts}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Audit log, newest first",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     string `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		limit := normalizeLimit(input.Limit)
		cursor, err := parseIDCursor(input.Cursor)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
		}
		items, err := e.ListEvents(ctx, repo.EventFilters{
			Type:       input.Type,
			EntityKind: input.EntityKind,
			EntityID:   input.EntityID,
			Limit:      limit + 1,
			Cursor:     cursor,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{}
		if len(items) > limit {
			items = items[:limit]
			resp.NextCursor = strconv.FormatInt(items[limit-1].ID, 10)
		}
		resp.Items = nonNilSlice(items)
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})
}

package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"ideaflow/internal/domain"
	"ideaflow/internal/engine"
)

func registerEngagement(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "toggle-vote",
		Method:      http.MethodPost,
		Path:        "/ideas/{id}/vote",
		Summary:     "Add or remove the caller's vote",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *ideaPath) (*struct {
		Body VoteResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		voted, err := e.ToggleVote(ctx, input.ID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		idea, err := e.GetIdea(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body VoteResponse `json:"body"`
		}{Body: VoteResponse{IdeaID: idea.ID, Voted: voted, Votos: idea.Votos}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-vote",
		Method:      http.MethodGet,
		Path:        "/ideas/{id}/vote",
		Summary:     "Whether the caller voted",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *ideaPath) (*struct {
		Body VoteResponse `json:"body"`
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
			Body VoteResponse `json:"body"`
		}{Body: VoteResponse{IdeaID: idea.ID, Voted: e.HasVoted(ctx, idea.ID, actorID), Votos: idea.Votos}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-comments",
		Method:      http.MethodGet,
		Path:        "/ideas/{id}/comments",
		Summary:     "List comments, newest first",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *ideaPath) (*struct {
		Body []domain.Comment `json:"body"`
	}, error) {
		items, err := e.ListComments(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Comment `json:"body"`
		}{Body: nonNilSlice(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-comment",
		Method:        http.MethodPost,
		Path:          "/ideas/{id}/comments",
		Summary:       "Comment on an idea",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string         `path:"id"`
		Body CommentRequest `json:"body"`
	}) (*struct {
		Body domain.Comment `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.AddComment(ctx, input.ID, actorID, input.Body.Conteudo)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Comment `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-comment",
		Method:        http.MethodDelete,
		Path:          "/comments/{id}",
		Summary:       "Delete own comment",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *ideaPath) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteComment(ctx, input.ID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerEvaluations(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-evaluations",
		Method:      http.MethodGet,
		Path:        "/ideas/{id}/evaluations",
		Summary:     "List evaluations, newest first",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *ideaPath) (*struct {
		Body []domain.Evaluation `json:"body"`
	}, error) {
		items, err := e.ListEvaluations(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Evaluation `json:"body"`
		}{Body: nonNilSlice(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "record-evaluation",
		Method:        http.MethodPost,
		Path:          "/ideas/{id}/evaluations",
		Summary:       "Evaluate an idea ready for evaluation",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body EvaluationRequest `json:"body"`
	}) (*struct {
		Body domain.Evaluation `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		ev, err := e.RecordEvaluation(ctx, engine.EvaluationInput{
			IdeaID:                 input.ID,
			ActorID:                actorID,
			NotaClarezaObjetivos:   input.Body.NotaClarezaObjetivos,
			NotaAnaliseNegocio:     input.Body.NotaAnaliseNegocio,
			NotaViabilidadeTecnica: input.Body.NotaViabilidadeTecnica,
			Decisao:                domain.Status(input.Body.Decisao),
			Justificativa:          input.Body.Justificativa,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Evaluation `json:"body"`
		}{Body: ev}, nil
	})
}

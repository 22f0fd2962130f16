package server

import (
	"time"

	"ideaflow/internal/domain"
	"ideaflow/internal/engine/auth"
)

// Request payloads

type SignUpRequest struct {
	Email     string `json:"email" format:"email"`
	Password  string `json:"password" minLength:"8"`
	Nome      string `json:"nome"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UpdateProfileRequest struct {
	Nome      string `json:"nome"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

type CreateIdeaRequest struct {
	Titulo    string   `json:"titulo"`
	Descricao string   `json:"descricao"`
	Fonte     string   `json:"fonte,omitempty"`
	Segmento  string   `json:"segmento,omitempty"`
	Impacto   string   `json:"impacto,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

type TransitionRequest struct {
	Status        string `json:"status" enum:"Geração,Em Definição,Pronta para Avaliação,Aprovada,Arquivada"`
	Justificativa string `json:"justificativa,omitempty"`
}

type CommentRequest struct {
	Conteudo string `json:"conteudo"`
}

type EvaluationRequest struct {
	NotaClarezaObjetivos   int    `json:"nota_clareza_objetivos"`
	NotaAnaliseNegocio     int    `json:"nota_analise_negocio"`
	NotaViabilidadeTecnica int    `json:"nota_viabilidade_tecnica"`
	Decisao                string `json:"decisao"`
	Justificativa          string `json:"justificativa,omitempty"`
}

type DefinitionRequest struct {
	AlinhamentoEstrategico  string `json:"alinhamento_estrategico,omitempty"`
	PublicoAlvo             string `json:"publico_alvo,omitempty"`
	Mercado                 string `json:"mercado,omitempty"`
	HipotesesValor          string `json:"hipoteses_valor,omitempty"`
	EstimativaRentabilidade string `json:"estimativa_rentabilidade,omitempty"`
	CapacidadeTecnica       bool   `json:"capacidade_tecnica,omitempty"`
	CapacidadeOperacional   bool   `json:"capacidade_operacional,omitempty"`
	CapacidadeRecursos      bool   `json:"capacidade_recursos,omitempty"`
}

type ChecklistItemRequest struct {
	Categoria string `json:"categoria"`
	Item      string `json:"item"`
}

type ChecklistUpdateRequest struct {
	Concluido bool `json:"concluido"`
}

// Response payloads

type SessionResponse struct {
	Token     string      `json:"token"`
	TokenType string      `json:"token_type" example:"Bearer"`
	ExpiresAt string      `json:"expires_at" format:"date-time"`
	User      domain.User `json:"user"`
}

type NextStatusesResponse struct {
	Status             domain.Status   `json:"status"`
	NextStatuses       []domain.Status `json:"next_statuses"`
	CanChangeStatus    bool            `json:"can_change_status"`
	CanAssumeOwnership bool            `json:"can_assume_ownership"`
}

type VoteResponse struct {
	IdeaID string `json:"idea_id"`
	Voted  bool   `json:"voted"`
	Votos  int    `json:"votos"`
}

type AttachmentResponse struct {
	domain.Attachment
	URL string `json:"url,omitempty"`
}

type paginatedIdeas struct {
	Items      []domain.Idea `json:"items"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

type paginatedEvents struct {
	Items      []domain.Event `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// Conversion helpers

func sessionResponse(s *auth.Session) SessionResponse {
	return SessionResponse{
		Token:     s.Token,
		TokenType: "Bearer",
		ExpiresAt: s.ExpiresAt.UTC().Format(time.RFC3339),
		User:      s.User,
	}
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

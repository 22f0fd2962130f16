package ideaflowsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a minimal ideaflow HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v1",
		Timeout:  10 * time.Second,
	}
}

// User represents the API user model.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Nome      string `json:"nome"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Session is returned by SignIn.
type Session struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	ExpiresAt string `json:"expires_at"`
	User      User   `json:"user"`
}

// Idea represents the API idea model (partial).
type Idea struct {
	ID                    string   `json:"id"`
	Titulo                string   `json:"titulo"`
	Descricao             string   `json:"descricao"`
	Tags                  []string `json:"tags"`
	Status                string   `json:"status"`
	AutorID               string   `json:"autor_id"`
	OwnerID               string   `json:"owner_id,omitempty"`
	JustificativaRejeicao string   `json:"justificativa_rejeicao,omitempty"`
	Votos                 int      `json:"votos"`
	Comentarios           int      `json:"comentarios"`
	CreatedAt             string   `json:"created_at"`
}

// NewIdea is the payload for CreateIdea.
type NewIdea struct {
	Titulo    string   `json:"titulo"`
	Descricao string   `json:"descricao"`
	Fonte     string   `json:"fonte,omitempty"`
	Segmento  string   `json:"segmento,omitempty"`
	Impacto   string   `json:"impacto,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

// IdeaQuery narrows ListIdeas.
type IdeaQuery struct {
	Status  string
	AutorID string
	OwnerID string
	Tag     string
	Search  string
	Limit   int
	Cursor  string
}

// PaginatedIdeas wraps idea listings with cursors.
type PaginatedIdeas struct {
	Items      []Idea `json:"items"`
	NextCursor string `json:"next_cursor"`
}

// Vote is the result of toggling a vote.
type Vote struct {
	IdeaID string `json:"idea_id"`
	Voted  bool   `json:"voted"`
	Votos  int    `json:"votos"`
}

// Comment represents a comment on an idea.
type Comment struct {
	ID        string `json:"id"`
	IdeaID    string `json:"idea_id"`
	AutorID   string `json:"autor_id"`
	AutorNome string `json:"autor_nome,omitempty"`
	Conteudo  string `json:"conteudo"`
	CreatedAt string `json:"created_at"`
}

// Evaluation is a committee decision on an idea.
type Evaluation struct {
	ID                     string `json:"id"`
	IdeaID                 string `json:"idea_id"`
	AvaliadorID            string `json:"avaliador_id"`
	NotaClarezaObjetivos   int    `json:"nota_clareza_objetivos"`
	NotaAnaliseNegocio     int    `json:"nota_analise_negocio"`
	NotaViabilidadeTecnica int    `json:"nota_viabilidade_tecnica"`
	Decisao                string `json:"decisao"`
	Justificativa          string `json:"justificativa,omitempty"`
	CreatedAt              string `json:"created_at"`
}

// Dashboard holds idea counts per status.
type Dashboard struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
}

// Event represents an audit log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// PaginatedEvents wraps event listings with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// SignUp creates an account.
func (c *Client) SignUp(ctx context.Context, email, password, nome string) (User, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
		"nome":     nome,
	}
	var resp User
	err := c.do(ctx, http.MethodPost, "auth/signup", body, &resp)
	return resp, err
}

// SignIn opens a session and stores its token on the client.
func (c *Client) SignIn(ctx context.Context, email, password string) (Session, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
	}
	var resp Session
	if err := c.do(ctx, http.MethodPost, "auth/signin", body, &resp); err != nil {
		return resp, err
	}
	c.BearerToken = resp.Token
	return resp, nil
}

// SignOut ends the current session.
func (c *Client) SignOut(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "auth/signout", nil, nil); err != nil {
		return err
	}
	c.BearerToken = ""
	return nil
}

// Me returns the signed-in user.
func (c *Client) Me(ctx context.Context) (User, error) {
	var resp User
	err := c.do(ctx, http.MethodGet, "me", nil, &resp)
	return resp, err
}

// CreateIdea submits a new idea.
func (c *Client) CreateIdea(ctx context.Context, in NewIdea) (Idea, error) {
	var resp Idea
	err := c.do(ctx, http.MethodPost, "ideas", in, &resp)
	return resp, err
}

// GetIdea fetches an idea by id.
func (c *Client) GetIdea(ctx context.Context, id string) (Idea, error) {
	var resp Idea
	err := c.do(ctx, http.MethodGet, "ideas/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// ListIdeas returns one page of ideas, newest first.
func (c *Client) ListIdeas(ctx context.Context, q IdeaQuery) (PaginatedIdeas, error) {
	params := url.Values{}
	setParam(params, "status", q.Status)
	setParam(params, "autor_id", q.AutorID)
	setParam(params, "owner_id", q.OwnerID)
	setParam(params, "tag", q.Tag)
	setParam(params, "q", q.Search)
	setParam(params, "cursor", q.Cursor)
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	var resp PaginatedIdeas
	err := c.do(ctx, http.MethodGet, withQuery("ideas", params), nil, &resp)
	return resp, err
}

// Transition moves an idea to status.
func (c *Client) Transition(ctx context.Context, id, status, justificativa string) (Idea, error) {
	body := map[string]any{"status": status}
	if justificativa != "" {
		body["justificativa"] = justificativa
	}
	var resp Idea
	err := c.do(ctx, http.MethodPost, "ideas/"+url.PathEscape(id)+"/status", body, &resp)
	return resp, err
}

// AssumeOwnership makes the caller the idea's owner.
func (c *Client) AssumeOwnership(ctx context.Context, id string) (Idea, error) {
	var resp Idea
	err := c.do(ctx, http.MethodPost, "ideas/"+url.PathEscape(id)+"/ownership", nil, &resp)
	return resp, err
}

// ToggleVote adds or removes the caller's vote.
func (c *Client) ToggleVote(ctx context.Context, id string) (Vote, error) {
	var resp Vote
	err := c.do(ctx, http.MethodPost, "ideas/"+url.PathEscape(id)+"/vote", nil, &resp)
	return resp, err
}

// AddComment comments on an idea.
func (c *Client) AddComment(ctx context.Context, id, conteudo string) (Comment, error) {
	var resp Comment
	err := c.do(ctx, http.MethodPost, "ideas/"+url.PathEscape(id)+"/comments", map[string]any{"conteudo": conteudo}, &resp)
	return resp, err
}

// ListComments returns an idea's comments.
func (c *Client) ListComments(ctx context.Context, id string) ([]Comment, error) {
	var resp []Comment
	err := c.do(ctx, http.MethodGet, "ideas/"+url.PathEscape(id)+"/comments", nil, &resp)
	return resp, err
}

// Evaluate records a committee decision. decisao is "Aprovada" or "Arquivada".
func (c *Client) Evaluate(ctx context.Context, id string, clareza, negocio, viabilidade int, decisao, justificativa string) (Evaluation, error) {
	body := map[string]any{
		"nota_clareza_objetivos":   clareza,
		"nota_analise_negocio":     negocio,
		"nota_viabilidade_tecnica": viabilidade,
		"decisao":                  decisao,
	}
	if justificativa != "" {
		body["justificativa"] = justificativa
	}
	var resp Evaluation
	err := c.do(ctx, http.MethodPost, "ideas/"+url.PathEscape(id)+"/evaluations", body, &resp)
	return resp, err
}

// Dashboard returns idea counts by status.
func (c *Client) Dashboard(ctx context.Context) (Dashboard, error) {
	var resp Dashboard
	err := c.do(ctx, http.MethodGet, "dashboard", nil, &resp)
	return resp, err
}

// EventsPage returns a paginated audit log listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	setParam(params, "cursor", cursor)
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, withQuery("events", params), nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base
}

func setParam(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}

func withQuery(endpoint string, params url.Values) string {
	if len(params) == 0 {
		return endpoint
	}
	return endpoint + "?" + params.Encode()
}

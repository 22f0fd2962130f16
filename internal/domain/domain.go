package domain

// Status is the lifecycle stage of an idea.
type Status string

const (
	StatusGeracao             Status = "Geração"
	StatusEmDefinicao         Status = "Em Definição"
	StatusProntaParaAvaliacao Status = "Pronta para Avaliação"
	StatusAprovada            Status = "Aprovada"
	StatusArquivada           Status = "Arquivada"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{
	StatusGeracao,
	StatusEmDefinicao,
	StatusProntaParaAvaliacao,
	StatusAprovada,
	StatusArquivada,
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Closed reports whether the idea no longer accepts an owner.
func (s Status) Closed() bool {
	return s == StatusAprovada || s == StatusArquivada
}

type Idea struct {
	ID                    string   `json:"id"`
	Titulo                string   `json:"titulo"`
	Descricao             string   `json:"descricao"`
	Fonte                 *string  `json:"fonte,omitempty"`
	Segmento              *string  `json:"segmento,omitempty"`
	Impacto               *string  `json:"impacto,omitempty"`
	Tags                  []string `json:"tags"`
	Status                Status   `json:"status" enum:"Geração,Em Definição,Pronta para Avaliação,Aprovada,Arquivada"`
	AutorID               string   `json:"autor_id"`
	OwnerID               *string  `json:"owner_id,omitempty"`
	JustificativaRejeicao *string  `json:"justificativa_rejeicao,omitempty"`
	Votos                 int      `json:"votos"`
	Comentarios           int      `json:"comentarios"`
	CreatedAt             string   `json:"created_at" format:"date-time"`
	UpdatedAt             string   `json:"updated_at" format:"date-time"`
}

// HasOwner reports whether an owner is assigned.
func (i Idea) HasOwner() bool {
	return i.OwnerID != nil && *i.OwnerID != ""
}

// IsOwnerOrAuthor reports whether actorID may drive the idea's lifecycle.
func (i Idea) IsOwnerOrAuthor(actorID string) bool {
	if actorID == "" {
		return false
	}
	if i.AutorID == actorID {
		return true
	}
	return i.HasOwner() && *i.OwnerID == actorID
}

type Vote struct {
	IdeaID    string `json:"idea_id"`
	UserID    string `json:"user_id"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Comment struct {
	ID        string `json:"id"`
	IdeaID    string `json:"idea_id"`
	AutorID   string `json:"autor_id"`
	AutorNome string `json:"autor_nome,omitempty"`
	Conteudo  string `json:"conteudo"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Evaluation struct {
	ID                     string  `json:"id"`
	IdeaID                 string  `json:"idea_id"`
	AvaliadorID            string  `json:"avaliador_id"`
	NotaClarezaObjetivos   int     `json:"nota_clareza_objetivos" minimum:"1" maximum:"5"`
	NotaAnaliseNegocio     int     `json:"nota_analise_negocio" minimum:"1" maximum:"5"`
	NotaViabilidadeTecnica int     `json:"nota_viabilidade_tecnica" minimum:"1" maximum:"5"`
	Decisao                Status  `json:"decisao" enum:"Aprovada,Arquivada"`
	Justificativa          *string `json:"justificativa,omitempty"`
	CreatedAt              string  `json:"created_at" format:"date-time"`
}

// Definition is the structured elaboration of an idea. ProgressoPercentual is
// derived from the other fields and recomputed on every save.
type Definition struct {
	IdeaID                  string `json:"idea_id"`
	AlinhamentoEstrategico  string `json:"alinhamento_estrategico"`
	PublicoAlvo             string `json:"publico_alvo"`
	Mercado                 string `json:"mercado"`
	HipotesesValor          string `json:"hipoteses_valor"`
	EstimativaRentabilidade string `json:"estimativa_rentabilidade"`
	CapacidadeTecnica       bool   `json:"capacidade_tecnica"`
	CapacidadeOperacional   bool   `json:"capacidade_operacional"`
	CapacidadeRecursos      bool   `json:"capacidade_recursos"`
	ProgressoPercentual     int    `json:"progresso_percentual" minimum:"0" maximum:"100"`
	UpdatedAt               string `json:"updated_at,omitempty" format:"date-time"`
}

type Attachment struct {
	ID           string `json:"id"`
	IdeaID       string `json:"idea_id"`
	NomeArquivo  string `json:"nome_arquivo"`
	StoragePath  string `json:"storage_path"`
	TipoMime     string `json:"tipo_mime"`
	TamanhoBytes int64  `json:"tamanho_bytes"`
	UploadedBy   string `json:"uploaded_by"`
	CreatedAt    string `json:"created_at" format:"date-time"`
}

type ChecklistItem struct {
	ID        string `json:"id"`
	IdeaID    string `json:"idea_id"`
	Categoria string `json:"categoria"`
	Item      string `json:"item"`
	Concluido bool   `json:"concluido"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Nome         string `json:"nome"`
	AvatarURL    string `json:"avatar_url,omitempty"`
	PasswordHash string `json:"-"`
	CreatedAt    string `json:"created_at" format:"date-time"`
	UpdatedAt    string `json:"updated_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// StatusCounts is the dashboard summary. ByStatus always carries every status.
type StatusCounts struct {
	Total    int            `json:"total"`
	ByStatus map[Status]int `json:"by_status"`
}

package repo

import (
	"context"
	"database/sql"

	"ideaflow/internal/domain"
)

func (r Repo) UpsertDefinition(ctx context.Context, tx *sql.Tx, d domain.Definition) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO definitions(idea_id,alinhamento_estrategico,publico_alvo,mercado,hipoteses_valor,estimativa_rentabilidade,
capacidade_tecnica,capacidade_operacional,capacidade_recursos,progresso_percentual,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(idea_id) DO UPDATE SET
  alinhamento_estrategico=excluded.alinhamento_estrategico,
  publico_alvo=excluded.publico_alvo,
  mercado=excluded.mercado,
  hipoteses_valor=excluded.hipoteses_valor,
  estimativa_rentabilidade=excluded.estimativa_rentabilidade,
  capacidade_tecnica=excluded.capacidade_tecnica,
  capacidade_operacional=excluded.capacidade_operacional,
  capacidade_recursos=excluded.capacidade_recursos,
  progresso_percentual=excluded.progresso_percentual,
  updated_at=excluded.updated_at`,
		d.IdeaID, d.AlinhamentoEstrategico, d.PublicoAlvo, d.Mercado, d.HipotesesValor, d.EstimativaRentabilidade,
		boolInt(d.CapacidadeTecnica), boolInt(d.CapacidadeOperacional), boolInt(d.CapacidadeRecursos), d.ProgressoPercentual, d.UpdatedAt)
	return err
}

func (r Repo) GetDefinition(ctx context.Context, tx *sql.Tx, ideaID string) (domain.Definition, error) {
	var d domain.Definition
	var tec, op, rec int
	err := r.q(tx).QueryRowContext(ctx, `SELECT idea_id,alinhamento_estrategico,publico_alvo,mercado,hipoteses_valor,estimativa_rentabilidade,
capacidade_tecnica,capacidade_operacional,capacidade_recursos,progresso_percentual,updated_at FROM definitions WHERE idea_id=?`, ideaID).
		Scan(&d.IdeaID, &d.AlinhamentoEstrategico, &d.PublicoAlvo, &d.Mercado, &d.HipotesesValor, &d.EstimativaRentabilidade,
			&tec, &op, &rec, &d.ProgressoPercentual, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	d.CapacidadeTecnica = tec != 0
	d.CapacidadeOperacional = op != 0
	d.CapacidadeRecursos = rec != 0
	return d, err
}

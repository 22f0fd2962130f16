package engine

import (
	"context"

	"ideaflow/internal/domain"
	"ideaflow/internal/repo"
)

// CountByStatus returns the total and a count for every status, zero included.
func (e Engine) CountByStatus(ctx context.Context) (domain.StatusCounts, error) {
	counts, err := e.Repo.CountIdeasByStatus(ctx, nil)
	if err != nil {
		return domain.StatusCounts{}, backend("count ideas", err)
	}
	out := domain.StatusCounts{ByStatus: make(map[domain.Status]int, len(domain.Statuses))}
	for _, s := range domain.Statuses {
		out.ByStatus[s] = counts[s]
		out.Total += counts[s]
	}
	return out, nil
}

func (e Engine) ListEvents(ctx context.Context, f repo.EventFilters) ([]domain.Event, error) {
	items, err := e.Repo.LatestEvents(ctx, nil, f)
	if err != nil {
		return nil, backend("list events", err)
	}
	return items, nil
}

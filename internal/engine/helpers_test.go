package engine_test

import (
	"strconv"

	"ideaflow/internal/domain"
	"ideaflow/internal/repo"
)

func repoFilters(status, author string, limit int, cursorCreatedAt, cursorID string) repo.IdeaFilters {
	return repo.IdeaFilters{Status: status, AutorID: author, Limit: limit, CursorCreatedAt: cursorCreatedAt, CursorID: cursorID}
}

func eventFilters(entityID string) repo.EventFilters {
	return repo.EventFilters{EntityKind: "idea", EntityID: entityID}
}

func ids(items []domain.Idea) []string {
	out := make([]string, 0, len(items))
	for _, i := range items {
		out = append(out, i.ID)
	}
	return out
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}

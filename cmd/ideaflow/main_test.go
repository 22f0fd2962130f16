package main

import (
	"testing"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ideaflow/internal/domain"
)

func TestKeyValueRowsKeepsFieldOrder(t *testing.T) {
	u := domain.User{ID: "u1", Email: "ana@example.com", Nome: "Ana", PasswordHash: "secret", CreatedAt: "2024-01-01T00:00:00Z"}
	rows, err := keyValueRows(u)
	require.NoError(t, err)
	assert.Equal(t, []table.Row{
		{"id", "u1"},
		{"email", "ana@example.com"},
		{"nome", "Ana"},
		{"created_at", "2024-01-01T00:00:00Z"},
		{"updated_at", ""},
	}, rows)
}

func TestKeyValueRowsRendersNestedAndNull(t *testing.T) {
	v := struct {
		Tags  []string       `json:"tags"`
		Owner *string        `json:"owner_id"`
		Votos int            `json:"votos"`
		Meta  map[string]int `json:"meta"`
	}{Tags: []string{"portal", "clientes"}, Votos: 3, Meta: map[string]int{"a": 1}}
	rows, err := keyValueRows(v)
	require.NoError(t, err)
	assert.Equal(t, []table.Row{
		{"tags", `["portal","clientes"]`},
		{"owner_id", ""},
		{"votos", "3"},
		{"meta", `{"a":1}`},
	}, rows)
}

func TestKeyValueRowsNonObject(t *testing.T) {
	rows, err := keyValueRows([]int{1, 2})
	require.NoError(t, err)
	assert.Equal(t, []table.Row{{"value", "[1,2]"}}, rows)
}

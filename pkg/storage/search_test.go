package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderClause(t *testing.T) {
	tests := []struct {
		name     string
		sort     SortOrder
		expected string
	}{
		{"time desc", SortTimeDesc, " ORDER BY created_at DESC, key ASC"},
		{"time asc", SortTimeAsc, " ORDER BY created_at ASC, key ASC"},
		{"title asc", SortTitleAsc, " ORDER BY title ASC, key ASC"},
		{"title desc", SortTitleDesc, " ORDER BY title DESC, key ASC"},
		{"popularity asc", SortPopAsc, " ORDER BY visit_count ASC, key ASC"},
		{"popularity desc", SortPopDesc, " ORDER BY visit_count DESC, key ASC"},
		{"unknown falls back to time desc", SortOrder(99), " ORDER BY created_at DESC, key ASC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := SearchQuery{Sort: tt.sort}
			assert.Equal(t, tt.expected, q.orderClause())
		})
	}
}

func TestWhereClause(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		where, args := SearchQuery{}.whereClause()
		assert.Empty(t, where)
		assert.Empty(t, args)
	})

	t.Run("owner only", func(t *testing.T) {
		where, args := SearchQuery{OwnerID: "jsmith"}.whereClause()
		assert.Equal(t, " WHERE owner_id = $1", where)
		assert.Equal(t, []any{"jsmith"}, args)
	})

	t.Run("query and owner", func(t *testing.T) {
		where, args := SearchQuery{Query: "docs", OwnerID: "jsmith"}.whereClause()
		assert.Contains(t, where, "owner_id = $1")
		assert.Contains(t, where, "key ILIKE $2")
		assert.Contains(t, where, "coalesce(title, '') ILIKE $2")
		assert.Equal(t, []any{"jsmith", "%docs%"}, args)
	})

	t.Run("wildcards escaped", func(t *testing.T) {
		_, args := SearchQuery{Query: "50%_off"}.whereClause()
		assert.Equal(t, []any{`%50\%\_off%`}, args)
	})
}

func TestClampPage(t *testing.T) {
	q := SearchQuery{PerPage: 10}

	tests := []struct {
		name     string
		page     int
		total    int64
		expected int
	}{
		{"zero clamps to one", 0, 25, 1},
		{"negative clamps to one", -3, 25, 1},
		{"in range", 2, 25, 2},
		{"last page", 3, 25, 3},
		{"past the end clamps to last", 7, 25, 3},
		{"empty result set", 5, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := q
			q.Page = tt.page
			assert.Equal(t, tt.expected, q.clampPage(tt.total))
		})
	}
}

func TestPerPageDefault(t *testing.T) {
	assert.Equal(t, defaultPerPage, SearchQuery{}.perPage())
	assert.Equal(t, 5, SearchQuery{PerPage: 5}.perPage())
}

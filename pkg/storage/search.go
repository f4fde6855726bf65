package storage

import (
	"fmt"
	"strings"
)

// SortOrder enumerates the supported result orderings.
type SortOrder int

const (
	SortTimeDesc SortOrder = iota
	SortTimeAsc
	SortTitleAsc
	SortTitleDesc
	SortPopAsc
	SortPopDesc
)

// SearchQuery is an immutable description of one search: filters, sort, and
// page are all assembled before execution, never mutated afterwards.
type SearchQuery struct {
	// Query, when non-empty, is matched case-insensitively as a substring of
	// key, long URL, title, and owner.
	Query string
	// OwnerID, when non-empty, restricts results to one owner.
	OwnerID string
	Sort    SortOrder
	// Page is 1-indexed and clamped to [1, lastPage] at execution time.
	Page    int
	PerPage int
}

const defaultPerPage = 20

func (q SearchQuery) perPage() int {
	if q.PerPage <= 0 {
		return defaultPerPage
	}
	return q.PerPage
}

// lastPage is the number of pages for the given total; always at least 1.
func (q SearchQuery) lastPage(total int64) int {
	per := int64(q.perPage())
	if total <= per {
		return 1
	}
	pages := total / per
	if total%per != 0 {
		pages++
	}
	return int(pages)
}

// clampPage normalizes the 1-indexed page into [1, lastPage].
func (q SearchQuery) clampPage(total int64) int {
	page := q.Page
	if page < 1 {
		page = 1
	}
	if last := q.lastPage(total); page > last {
		page = last
	}
	return page
}

// whereClause builds the WHERE fragment and its arguments.
func (q SearchQuery) whereClause() (string, []any) {
	var conds []string
	var args []any

	if q.OwnerID != "" {
		args = append(args, q.OwnerID)
		conds = append(conds, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if q.Query != "" {
		args = append(args, "%"+escapeLike(q.Query)+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			"(key ILIKE $%d OR long_url ILIKE $%d OR coalesce(title, '') ILIKE $%d OR coalesce(owner_id, '') ILIKE $%d)",
			n, n, n, n))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// orderClause maps the sort order to SQL. A secondary sort on key keeps
// pagination stable across requests.
func (q SearchQuery) orderClause() string {
	var primary string
	switch q.Sort {
	case SortTimeAsc:
		primary = "created_at ASC"
	case SortTimeDesc:
		primary = "created_at DESC"
	case SortTitleAsc:
		primary = "title ASC"
	case SortTitleDesc:
		primary = "title DESC"
	case SortPopAsc:
		primary = "visit_count ASC"
	case SortPopDesc:
		primary = "visit_count DESC"
	default:
		primary = "created_at DESC"
	}
	return " ORDER BY " + primary + ", key ASC"
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

package discovery

import (
	"strings"

	"github.com/stacklok/loresync/internal/catalog"
)

// candidate is a database seen during discovery, in enumeration order.
type candidate struct {
	id    string
	title string
}

// match assigns candidates to logical databases by title. Exact
// case-insensitive matches are settled first for every database, then
// containment in either direction. A candidate is assigned at most once.
func match(dbs []catalog.LogicalDatabase, candidates []candidate) map[catalog.LogicalDatabase]Target {
	out := make(map[catalog.LogicalDatabase]Target)
	used := make(map[string]bool)

	pass := func(accept func(title, label string) bool) {
		for _, db := range dbs {
			if _, done := out[db]; done {
				continue
			}
			label := strings.ToLower(db.Label())
			for _, c := range candidates {
				title := strings.ToLower(strings.TrimSpace(c.title))
				if used[c.id] || title == "" {
					continue
				}
				if accept(title, label) {
					out[db] = Target{ID: c.id, Title: c.title}
					used[c.id] = true
					break
				}
			}
		}
	}

	pass(func(title, label string) bool { return title == label })
	pass(func(title, label string) bool {
		return strings.Contains(title, label) || strings.Contains(label, title)
	})
	return out
}

func containsAny(title string, phrases []string) bool {
	title = strings.ToLower(title)
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" && strings.Contains(title, p) {
			return true
		}
	}
	return false
}

// Package resolve maps source field names onto target property names.
package resolve

import (
	"slices"
	"strings"

	"github.com/stacklok/loresync/internal/catalog"
	"github.com/stacklok/loresync/internal/notion"
	"github.com/stacklok/loresync/internal/schema"
)

// Tier is the strategy that produced a match. Tiers are tried in the order
// alias, exact, substring, fuzzy.
type Tier string

// Resolution tiers.
const (
	TierAlias     Tier = "alias"
	TierExact     Tier = "exact"
	TierSubstring Tier = "substring"
	TierFuzzy     Tier = "fuzzy"
)

// Names shorter than minSubstringLen runes match by containment only as a
// whole word, so "HP" finds "Max HP" but not "Chapter".
const minSubstringLen = 3

// Match is a resolved target property.
type Match struct {
	Property schema.Property
	Tier     Tier
}

// Resolver resolves field names. It is safe for concurrent use.
type Resolver struct {
	aliases map[catalog.LogicalDatabase]map[string]string
}

// New returns a Resolver using the built-in alias tables with overrides
// merged over them. Override keys are source field names.
func New(overrides map[catalog.LogicalDatabase]map[string]string) *Resolver {
	r := &Resolver{aliases: make(map[catalog.LogicalDatabase]map[string]string)}
	add := func(db catalog.LogicalDatabase, table map[string]string) {
		if r.aliases[db] == nil {
			r.aliases[db] = make(map[string]string)
		}
		for field, target := range table {
			r.aliases[db][Normalize(field)] = target
		}
	}
	for db, table := range builtinAliases {
		add(db, table)
	}
	for db, table := range overrides {
		add(db, table)
	}
	return r
}

// Alias returns the preferred target name for a source field, if any.
func (r *Resolver) Alias(db catalog.LogicalDatabase, field string) (string, bool) {
	target, ok := r.aliases[db][Normalize(field)]
	return target, ok
}

// Resolve returns the target property for field, or false when no tier
// matches. Within a tier the first property in schema order wins.
func (r *Resolver) Resolve(db catalog.LogicalDatabase, field string, s *schema.Schema) (Match, bool) {
	name := Normalize(field)
	if name == "" || s.Empty() {
		return Match{}, false
	}

	type candidate struct {
		prop schema.Property
		norm string
	}
	var candidates []candidate
	for _, p := range s.Properties {
		if !eligible(p) {
			continue
		}
		candidates = append(candidates, candidate{prop: p, norm: Normalize(p.Name)})
	}

	if alias, ok := r.Alias(db, field); ok {
		want := Normalize(alias)
		for _, c := range candidates {
			if c.norm == want {
				return Match{Property: c.prop, Tier: TierAlias}, true
			}
		}
	}

	for _, c := range candidates {
		if c.norm == name {
			return Match{Property: c.prop, Tier: TierExact}, true
		}
	}

	for _, c := range candidates {
		if containsEither(c.norm, name) {
			return Match{Property: c.prop, Tier: TierSubstring}, true
		}
	}

	fieldTokens := tokens(name)
	for _, c := range candidates {
		if tokensMatch(fieldTokens, tokens(c.norm)) {
			return Match{Property: c.prop, Tier: TierFuzzy}, true
		}
	}

	return Match{}, false
}

func eligible(p schema.Property) bool {
	if p.Type == notion.PropertyTitle || !p.Supported() {
		return false
	}
	_, reserved := reservedNames[Normalize(p.Name)]
	return !reserved
}

func containsEither(a, b string) bool {
	return contains(a, b) || contains(b, a)
}

func contains(s, sub string) bool {
	if len([]rune(sub)) >= minSubstringLen {
		return strings.Contains(s, sub)
	}
	return slices.Contains(strings.Fields(s), sub)
}

func tokensMatch(as, bs []string) bool {
	for _, a := range as {
		for _, b := range bs {
			if a == b || strings.Contains(a, b) || strings.Contains(b, a) {
				return true
			}
			ga, okA := synonymIndex[a]
			gb, okB := synonymIndex[b]
			if okA && okB && ga == gb {
				return true
			}
		}
	}
	return false
}

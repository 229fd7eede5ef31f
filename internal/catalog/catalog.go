// Package catalog defines the fixed set of logical databases the sync engine
// knows how to synchronize, and where each one lives in the relational store.
package catalog

import (
	"fmt"
	"strings"
)

// LogicalDatabase identifies one kind of creative entity.
type LogicalDatabase string

const (
	// Character holds people, creatures and other actors.
	Character LogicalDatabase = "character"
	// World holds settings, planets and realms.
	World LogicalDatabase = "world"
	// Story holds top-level narratives.
	Story LogicalDatabase = "story"
	// Chapter holds the chapters belonging to stories.
	Chapter LogicalDatabase = "chapter"
	// MagicSystem holds magic and power systems.
	MagicSystem LogicalDatabase = "magic_system"
	// Faction holds groups, guilds and organizations.
	Faction LogicalDatabase = "faction"
	// Lore holds free-form lore entries.
	Lore LogicalDatabase = "lore"
)

// SharedTable is the physical table holding every logical database that has
// no dedicated table. Rows are told apart by the database_name column.
const SharedTable = "creative_entries"

type definition struct {
	label string
	table string
	// discriminator is the database_name value for rows in SharedTable.
	discriminator string
}

var definitions = map[LogicalDatabase]definition{
	Character:   {label: "Characters", table: "characters"},
	World:       {label: "Worlds", table: "worlds"},
	Story:       {label: "Stories", table: "stories"},
	Chapter:     {label: "Chapters", table: "chapters"},
	MagicSystem: {label: "Magic Systems", table: SharedTable, discriminator: "Magic Systems"},
	Faction:     {label: "Factions", table: SharedTable, discriminator: "Factions"},
	Lore:        {label: "Lore", table: SharedTable, discriminator: "Lore"},
}

// ordered is the fixed processing order.
var ordered = []LogicalDatabase{Character, World, Story, Chapter, MagicSystem, Faction, Lore}

// All returns every logical database in processing order.
func All() []LogicalDatabase {
	out := make([]LogicalDatabase, len(ordered))
	copy(out, ordered)
	return out
}

// Parse accepts either the identifier ("magic_system") or the label
// ("Magic Systems"), case-insensitively.
func Parse(s string) (LogicalDatabase, error) {
	needle := strings.ToLower(strings.TrimSpace(s))
	for _, db := range ordered {
		if needle == string(db) || needle == strings.ToLower(definitions[db].label) {
			return db, nil
		}
	}
	return "", fmt.Errorf("unknown logical database %q", s)
}

// Valid reports whether d is one of the known logical databases.
func (d LogicalDatabase) Valid() bool {
	_, ok := definitions[d]
	return ok
}

// Label is the human-facing name used for the database in the workspace.
func (d LogicalDatabase) Label() string {
	return definitions[d].label
}

// SourceTable is the relational table holding rows of this kind.
func (d LogicalDatabase) SourceTable() string {
	return definitions[d].table
}

// Discriminator returns the database_name value scoping rows in a shared
// table, or "" when the logical database owns its table.
func (d LogicalDatabase) Discriminator() string {
	return definitions[d].discriminator
}

// Filter returns the logical databases named in only, in processing order.
// An empty only returns All().
func Filter(only []LogicalDatabase) []LogicalDatabase {
	if len(only) == 0 {
		return All()
	}
	want := make(map[LogicalDatabase]bool, len(only))
	for _, db := range only {
		want[db] = true
	}
	var out []LogicalDatabase
	for _, db := range ordered {
		if want[db] {
			out = append(out, db)
		}
	}
	return out
}

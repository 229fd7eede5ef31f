package resolve

import "github.com/stacklok/loresync/internal/catalog"

// builtinAliases maps, per logical database, a source field name to the
// target property name templates conventionally use for it.
var builtinAliases = map[catalog.LogicalDatabase]map[string]string{
	catalog.Character: {
		"Backstory":   "Background",
		"Bio":         "Background",
		"Looks":       "Appearance",
		"Motivation":  "Goals",
		"Traits":      "Personality",
		"Powers":      "Abilities",
		"Affiliation": "Faction",
	},
	catalog.World: {
		"Climate":    "Weather",
		"Geography":  "Terrain",
		"Population": "Inhabitants",
		"Government": "Politics",
	},
	catalog.Story: {
		"Synopsis": "Premise",
		"Summary":  "Premise",
		"Logline":  "Premise",
		"Category": "Genre",
		"Status":   "Stage",
	},
	catalog.Chapter: {
		"Summary": "Synopsis",
		"Number":  "Chapter Number",
		"POV":     "Point of View",
	},
	catalog.MagicSystem: {
		"Rules":         "Laws",
		"Cost":          "Limitations",
		"Source":        "Origin",
		"Practitioners": "Users",
	},
	catalog.Faction: {
		"Size":   "Members",
		"Leader": "Leadership",
		"Goals":  "Agenda",
		"Base":   "Headquarters",
	},
	catalog.Lore: {
		"Category": "Type",
		"Era":      "Period",
		"Related":  "Connections",
	},
}

// synonymGroups are words treated as interchangeable by the fuzzy tier.
var synonymGroups = [][]string{
	{"history", "background", "timeline", "backstory", "past"},
	{"appearance", "looks", "description", "physical"},
	{"goal", "goals", "motivation", "desire", "objective", "agenda"},
	{"personality", "traits", "temperament", "nature"},
	{"abilities", "powers", "skills", "talents"},
	{"faction", "affiliation", "allegiance", "organization"},
	{"location", "place", "region", "setting"},
	{"climate", "weather"},
	{"size", "members", "population", "headcount"},
	{"rules", "laws", "principles"},
	{"cost", "limitation", "limitations", "price", "drawback"},
	{"leader", "ruler", "leadership", "head"},
	{"summary", "synopsis", "premise", "overview", "logline"},
	{"tags", "keywords", "labels"},
	{"status", "stage", "state"},
}

// reservedNames are system-managed and never resolution targets.
var reservedNames = map[string]struct{}{
	"id":         {},
	"created at": {},
	"updated at": {},
}

var synonymIndex = func() map[string]int {
	idx := make(map[string]int)
	for i, group := range synonymGroups {
		for _, w := range group {
			idx[w] = i
		}
	}
	return idx
}()

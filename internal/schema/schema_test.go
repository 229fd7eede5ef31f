package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/loresync/internal/notion"
)

const charactersDB = `{
	"object": "database",
	"id": "db-1",
	"title": [{"plain_text": "Characters"}],
	"properties": {
		"Full Name": {"id": "title", "type": "title", "title": {}},
		"Tags": {"id": "t1", "type": "multi_select", "multi_select": {"options": [
			{"id": "o1", "name": "fire"}, {"id": "o2", "name": "ice"}, {"id": "o3", "name": "storm"}
		]}},
		"Role": {"id": "r1", "type": "select", "select": {"options": [{"id": "o4", "name": "Hero"}]}},
		"Background": {"id": "b1", "type": "rich_text", "rich_text": {}},
		"Owner": {"id": "p1", "type": "people", "people": {}}
	}
}`

func TestParse(t *testing.T) {
	t.Parallel()

	s, err := Parse([]byte(charactersDB))
	require.NoError(t, err)

	names := make([]string, 0, s.Len())
	for _, p := range s.Properties {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"Full Name", "Tags", "Role", "Background", "Owner"}, names)

	title, ok := s.TitleProperty()
	require.True(t, ok)
	assert.Equal(t, "Full Name", title.Name)
	assert.Equal(t, "title", title.ID)

	tags, ok := s.Lookup("tags")
	require.True(t, ok)
	assert.Equal(t, notion.PropertyMultiSelect, tags.Type)
	assert.Equal(t, []Option{{ID: "o1", Name: "fire"}, {ID: "o2", Name: "ice"}, {ID: "o3", Name: "storm"}}, tags.Options)

	opt, ok := tags.Option(" ICE ")
	require.True(t, ok)
	assert.Equal(t, "ice", opt.Name)
	_, ok = tags.Option("lightning")
	assert.False(t, ok)

	owner, ok := s.Lookup("Owner")
	require.True(t, ok)
	assert.False(t, owner.Supported())
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
	}{
		{name: "invalid json", doc: `{"properties":`},
		{name: "two titles", doc: `{"properties":{"A":{"type":"title"},"B":{"type":"title"}}}`},
		{name: "no title", doc: `{"properties":{"A":{"type":"rich_text"}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
		})
	}
}

func TestParse_EmptyPropertiesIsEmptySchema(t *testing.T) {
	t.Parallel()

	s, err := Parse([]byte(`{"object":"database","id":"db","properties":{}}`))
	require.NoError(t, err)
	assert.True(t, s.Empty())
	_, ok := s.TitleProperty()
	assert.False(t, ok)
}

func TestInferFromPage(t *testing.T) {
	t.Parallel()

	page := `{
		"object": "page",
		"id": "p-1",
		"properties": {
			"Name": {"id": "title", "type": "title", "title": [{"plain_text": "Arda"}]},
			"Climate": {"id": "c1", "type": "select", "select": {"name": "Temperate"}},
			"Population": {"id": "n1", "type": "number", "number": 12}
		}
	}`

	s, err := InferFromPage([]byte(page))
	require.NoError(t, err)
	require.Equal(t, 3, s.Len())
	assert.Equal(t, Property{Name: "Climate", ID: "c1", Type: notion.PropertySelect}, s.Properties[1])
	assert.Empty(t, s.Properties[1].Options)
	assert.Equal(t, notion.PropertyNumber, s.Properties[2].Type)
}

package coerce

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/loresync/internal/notion"
)

func multi(names ...string) notion.PropertyValue {
	v := notion.PropertyValue{Type: notion.PropertyMultiSelect}
	for _, n := range names {
		v.MultiSelect = append(v.MultiSelect, notion.SelectOption{Name: n})
	}
	return v
}

func TestBuilder_MergesMultiSelect(t *testing.T) {
	t.Parallel()

	b := NewBuilder()
	assert.True(t, b.Add("Tags", multi("A", "B")))
	assert.True(t, b.Add("Tags", multi("b", "C")))
	assert.False(t, b.Add("Tags", multi("A")))

	props, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, multi("A", "B", "C"), props["Tags"])
}

func TestBuilder_FirstValueWinsForOtherTypes(t *testing.T) {
	t.Parallel()

	b := NewBuilder()
	assert.True(t, b.Add("Name", notion.TitleValue("first")))
	assert.False(t, b.Add("Name", notion.TitleValue("second")))
	assert.True(t, b.Add("Notes", notion.PropertyValue{Type: notion.PropertyRichText, RichText: Segments("x")}))

	assert.True(t, b.Has("Name"))
	assert.Equal(t, 2, b.Len())
	assert.Equal(t, []string{"Name", "Notes"}, b.Names())

	props, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, notion.TitleValue("first"), props["Name"])
}

func TestBuilder_EmptyIsRejected(t *testing.T) {
	t.Parallel()

	_, err := NewBuilder().Build()
	require.ErrorIs(t, err, ErrNoProperties)
}

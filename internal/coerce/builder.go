package coerce

import (
	"errors"
	"strings"

	"github.com/stacklok/loresync/internal/notion"
)

// ErrNoProperties is returned by Build when nothing survived resolution and
// coercion. Such an item must not be written.
var ErrNoProperties = errors.New("no properties to write")

// Builder accumulates the properties of one page. Several source fields may
// target the same property: multi-select contributions are unioned, any
// other type keeps the first value.
type Builder struct {
	props map[string]notion.PropertyValue
	order []string
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{props: make(map[string]notion.PropertyValue)}
}

// Add contributes a value for the named property. It reports whether the
// value changed what will be written.
func (b *Builder) Add(name string, v notion.PropertyValue) bool {
	existing, ok := b.props[name]
	if !ok {
		b.props[name] = v
		b.order = append(b.order, name)
		return true
	}
	if existing.Type != notion.PropertyMultiSelect || v.Type != notion.PropertyMultiSelect {
		return false
	}

	seen := make(map[string]struct{}, len(existing.MultiSelect))
	for _, o := range existing.MultiSelect {
		seen[strings.ToLower(o.Name)] = struct{}{}
	}
	changed := false
	for _, o := range v.MultiSelect {
		key := strings.ToLower(o.Name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		existing.MultiSelect = append(existing.MultiSelect, o)
		changed = true
	}
	b.props[name] = existing
	return changed
}

// Has reports whether a value was contributed for name.
func (b *Builder) Has(name string) bool {
	_, ok := b.props[name]
	return ok
}

// Len returns the number of properties.
func (b *Builder) Len() int {
	return len(b.order)
}

// Names returns the property names in the order they were first added.
func (b *Builder) Names() []string {
	return append([]string(nil), b.order...)
}

// Build returns the properties to write, or ErrNoProperties.
func (b *Builder) Build() (map[string]notion.PropertyValue, error) {
	if len(b.props) == 0 {
		return nil, ErrNoProperties
	}
	out := make(map[string]notion.PropertyValue, len(b.props))
	for k, v := range b.props {
		out[k] = v
	}
	return out, nil
}

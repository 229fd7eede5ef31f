// Package schema models the property schema of a target database and keeps
// per-user copies of it so each run does not have to refetch it.
package schema

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/stacklok/loresync/internal/notion"
)

// TitlePropertyID is the id every workspace assigns to a database's title
// property. Title-only writes are keyed by it when no schema is known.
const TitlePropertyID = "title"

// Source records how a schema was obtained.
type Source string

const (
	// SourceCached means the schema was served from the cache.
	SourceCached Source = "cached"
	// SourceFetched means the schema came from the retrieve-database endpoint.
	SourceFetched Source = "fetched"
	// SourceInferred means the schema was reconstructed from a sample page.
	SourceInferred Source = "inferred"
	// SourceTitleOnly means nothing could be learned and only the title is written.
	SourceTitleOnly Source = "title-only"
)

// Option is a declared select or multi-select option.
type Option struct {
	ID   string `json:"id,omitempty" yaml:"id,omitempty"`
	Name string `json:"name" yaml:"name"`
}

// Property is one property of a target database.
type Property struct {
	Name    string              `json:"name" yaml:"name"`
	ID      string              `json:"id,omitempty" yaml:"id,omitempty"`
	Type    notion.PropertyType `json:"type" yaml:"type"`
	Options []Option            `json:"options,omitempty" yaml:"options,omitempty"`
}

// Supported reports whether the engine can write this property.
func (p Property) Supported() bool {
	return p.Type.Writable()
}

// Option returns the declared option matching name case-insensitively.
func (p Property) Option(name string) (Option, bool) {
	name = strings.TrimSpace(name)
	for _, o := range p.Options {
		if strings.EqualFold(o.Name, name) {
			return o, true
		}
	}
	return Option{}, false
}

// Schema is the ordered property list of a target database. Order follows
// the workspace's own enumeration and is significant for name resolution.
type Schema struct {
	Properties []Property `json:"properties" yaml:"properties"`
}

// Empty reports whether the schema has no properties.
func (s *Schema) Empty() bool {
	return s == nil || len(s.Properties) == 0
}

// Len returns the number of properties.
func (s *Schema) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Properties)
}

// TitleProperty returns the title property, if any.
func (s *Schema) TitleProperty() (Property, bool) {
	if s == nil {
		return Property{}, false
	}
	for _, p := range s.Properties {
		if p.Type == notion.PropertyTitle {
			return p, true
		}
	}
	return Property{}, false
}

// Lookup finds a property by name, ignoring case.
func (s *Schema) Lookup(name string) (Property, bool) {
	if s == nil {
		return Property{}, false
	}
	for _, p := range s.Properties {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Property{}, false
}

// Validate checks that a non-empty schema has exactly one title property.
func (s *Schema) Validate() error {
	if s.Empty() {
		return nil
	}
	titles := 0
	for _, p := range s.Properties {
		if p.Name == "" {
			return fmt.Errorf("property with empty name")
		}
		if p.Type == notion.PropertyTitle {
			titles++
		}
	}
	if titles != 1 {
		return fmt.Errorf("schema must have exactly one title property, found %d", titles)
	}
	return nil
}

// Parse reads the property schema out of a retrieve-database response.
func Parse(database []byte) (*Schema, error) {
	if !gjson.ValidBytes(database) {
		return nil, fmt.Errorf("invalid database document")
	}
	props := gjson.GetBytes(database, "properties")
	s := &Schema{}
	props.ForEach(func(name, prop gjson.Result) bool {
		p := Property{
			Name: name.String(),
			ID:   prop.Get("id").String(),
			Type: notion.PropertyType(prop.Get("type").String()),
		}
		switch p.Type {
		case notion.PropertySelect, notion.PropertyMultiSelect:
			prop.Get(string(p.Type) + ".options").ForEach(func(_, opt gjson.Result) bool {
				p.Options = append(p.Options, Option{
					ID:   opt.Get("id").String(),
					Name: opt.Get("name").String(),
				})
				return true
			})
		}
		s.Properties = append(s.Properties, p)
		return true
	})
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// InferFromPage reconstructs a schema from a page's property types. Values
// are ignored, so select properties come back without declared options.
func InferFromPage(page []byte) (*Schema, error) {
	if !gjson.ValidBytes(page) {
		return nil, fmt.Errorf("invalid page document")
	}
	s := &Schema{}
	gjson.GetBytes(page, "properties").ForEach(func(name, prop gjson.Result) bool {
		s.Properties = append(s.Properties, Property{
			Name: name.String(),
			ID:   prop.Get("id").String(),
			Type: notion.PropertyType(prop.Get("type").String()),
		})
		return true
	})
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

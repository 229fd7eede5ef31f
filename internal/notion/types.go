package notion

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// Object kinds returned by search and retrieval endpoints.
const (
	ObjectPage     = "page"
	ObjectDatabase = "database"
)

// Block types the engine looks at.
const (
	BlockChildDatabase = "child_database"
	BlockChildPage     = "child_page"
)

// User is the bot user behind the integration token.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
	Bot  *struct {
		WorkspaceName string `json:"workspace_name"`
	} `json:"bot,omitempty"`
}

// Block is a child block of a page. Only the fields discovery needs are decoded.
type Block struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	HasChildren   bool   `json:"has_children"`
	ChildDatabase *struct {
		Title string `json:"title"`
	} `json:"child_database,omitempty"`
	ChildPage *struct {
		Title string `json:"title"`
	} `json:"child_page,omitempty"`
}

// Title returns the title of an embedded database or child page block.
func (b Block) Title() string {
	switch {
	case b.ChildDatabase != nil:
		return b.ChildDatabase.Title
	case b.ChildPage != nil:
		return b.ChildPage.Title
	}
	return ""
}

// Object is a page or database. The raw JSON is retained because database
// schemas and page properties are workspace-defined and read with gjson.
type Object struct {
	ID     string
	Kind   string
	Raw    json.RawMessage
	Parent Parent
}

// UnmarshalJSON keeps the raw document alongside the decoded identity.
func (o *Object) UnmarshalJSON(b []byte) error {
	o.Raw = append(o.Raw[:0], b...)
	doc := gjson.ParseBytes(b)
	o.ID = doc.Get("id").String()
	o.Kind = doc.Get("object").String()
	o.Parent = Parent{
		DatabaseID: doc.Get("parent.database_id").String(),
		PageID:     doc.Get("parent.page_id").String(),
		Workspace:  doc.Get("parent.workspace").Bool(),
	}
	return nil
}

// MarshalJSON returns the raw document.
func (o Object) MarshalJSON() ([]byte, error) {
	if len(o.Raw) == 0 {
		return []byte("null"), nil
	}
	return o.Raw, nil
}

// Title returns the plain-text title of a database, or the value of a
// page's title property.
func (o Object) Title() string {
	doc := gjson.ParseBytes(o.Raw)
	if o.Kind == ObjectDatabase {
		return joinPlainText(doc.Get("title"))
	}
	var title string
	doc.Get("properties").ForEach(func(_, prop gjson.Result) bool {
		if prop.Get("type").String() != "title" {
			return true
		}
		title = joinPlainText(prop.Get("title"))
		return false
	})
	return title
}

func joinPlainText(segments gjson.Result) string {
	var b strings.Builder
	segments.ForEach(func(_, seg gjson.Result) bool {
		text := seg.Get("plain_text")
		if !text.Exists() {
			text = seg.Get("text.content")
		}
		b.WriteString(text.String())
		return true
	})
	return b.String()
}

// List is one page of a cursor-paginated listing.
type List[T any] struct {
	Results    []T    `json:"results"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor"`
}

// Parent identifies where a page lives.
type Parent struct {
	DatabaseID string `json:"database_id,omitempty"`
	PageID     string `json:"page_id,omitempty"`
	Workspace  bool   `json:"workspace,omitempty"`
}

// Sort orders a database query.
type Sort struct {
	Property  string `json:"property,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Direction string `json:"direction"`
}

// QueryRequest is the body of a database query.
type QueryRequest struct {
	Sorts       []Sort `json:"sorts,omitempty"`
	StartCursor string `json:"start_cursor,omitempty"`
	PageSize    int    `json:"page_size,omitempty"`
}

// SearchFilter restricts search results to one object kind.
type SearchFilter struct {
	Property string `json:"property"`
	Value    string `json:"value"`
}

// SearchRequest is the body of a workspace search.
type SearchRequest struct {
	Query       string        `json:"query,omitempty"`
	Filter      *SearchFilter `json:"filter,omitempty"`
	StartCursor string        `json:"start_cursor,omitempty"`
	PageSize    int           `json:"page_size,omitempty"`
}

// OnlyKind returns a filter matching objects of the given kind.
func OnlyKind(kind string) *SearchFilter {
	return &SearchFilter{Property: "object", Value: kind}
}

// CreatePageRequest is the body of a page creation.
type CreatePageRequest struct {
	Parent     Parent                   `json:"parent"`
	Properties map[string]PropertyValue `json:"properties"`
}

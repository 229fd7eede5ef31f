package notion

import (
	"encoding/json"
	"fmt"
)

// PropertyType is a database property type as named by the workspace API.
type PropertyType string

// Property types the engine can write.
const (
	PropertyTitle       PropertyType = "title"
	PropertyRichText    PropertyType = "rich_text"
	PropertyNumber      PropertyType = "number"
	PropertySelect      PropertyType = "select"
	PropertyMultiSelect PropertyType = "multi_select"
	PropertyCheckbox    PropertyType = "checkbox"
	PropertyDate        PropertyType = "date"
	PropertyURL         PropertyType = "url"
	PropertyEmail       PropertyType = "email"
	PropertyPhoneNumber PropertyType = "phone_number"
)

// Writable reports whether values of this type can be sent on page creation.
func (t PropertyType) Writable() bool {
	switch t {
	case PropertyTitle, PropertyRichText, PropertyNumber, PropertySelect,
		PropertyMultiSelect, PropertyCheckbox, PropertyDate, PropertyURL,
		PropertyEmail, PropertyPhoneNumber:
		return true
	}
	return false
}

// MaxTextLength is the longest content a single text segment may carry.
const MaxTextLength = 2000

// TextContent is the payload of a text segment.
type TextContent struct {
	Content string `json:"content"`
}

// RichText is one text segment.
type RichText struct {
	Type      string       `json:"type"`
	Text      *TextContent `json:"text,omitempty"`
	PlainText string       `json:"plain_text,omitempty"`
}

// NewText returns a canonical text segment.
func NewText(content string) RichText {
	return RichText{Type: "text", Text: &TextContent{Content: content}}
}

// Content returns the text the segment carries.
func (r RichText) Content() string {
	if r.Text != nil {
		return r.Text.Content
	}
	return r.PlainText
}

// SelectOption references a select or multi-select option by name.
type SelectOption struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// DateValue is a date property value.
type DateValue struct {
	Start string `json:"start"`
}

// PropertyValue is a value to write into one page property. Only the field
// matching Type is encoded.
type PropertyValue struct {
	Type        PropertyType
	Title       []RichText
	RichText    []RichText
	Number      *float64
	Select      *SelectOption
	MultiSelect []SelectOption
	Checkbox    bool
	Date        *DateValue
	URL         string
	Email       string
	PhoneNumber string
}

// MarshalJSON emits {"<type>": <value>}.
func (v PropertyValue) MarshalJSON() ([]byte, error) {
	var payload any
	switch v.Type {
	case PropertyTitle:
		payload = nonNilText(v.Title)
	case PropertyRichText:
		payload = nonNilText(v.RichText)
	case PropertyNumber:
		payload = v.Number
	case PropertySelect:
		payload = v.Select
	case PropertyMultiSelect:
		if v.MultiSelect == nil {
			payload = []SelectOption{}
		} else {
			payload = v.MultiSelect
		}
	case PropertyCheckbox:
		payload = v.Checkbox
	case PropertyDate:
		payload = v.Date
	case PropertyURL:
		payload = v.URL
	case PropertyEmail:
		payload = v.Email
	case PropertyPhoneNumber:
		payload = v.PhoneNumber
	default:
		return nil, fmt.Errorf("cannot encode property of type %q", v.Type)
	}
	return json.Marshal(map[PropertyType]any{v.Type: payload})
}

func nonNilText(segments []RichText) []RichText {
	if segments == nil {
		return []RichText{}
	}
	return segments
}

// TitleValue builds a title property value from plain text.
func TitleValue(text string) PropertyValue {
	return PropertyValue{Type: PropertyTitle, Title: []RichText{NewText(text)}}
}

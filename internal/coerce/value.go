// Package coerce converts loosely typed source values into the exact shape
// a target property requires, or reports why a value has to be dropped.
package coerce

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/stacklok/loresync/internal/notion"
)

// Kind discriminates Value.
type Kind int

// Value kinds.
const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindList
	KindDate
	KindRichText
	KindOption
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindDate:
		return "date"
	case KindRichText:
		return "rich_text"
	case KindOption:
		return "option"
	}
	return "null"
}

// Value is a source value of one of a closed set of shapes. Only the field
// matching Kind is meaningful; an Option keeps its label in Str.
type Value struct {
	Kind     Kind
	Str      string
	Num      float64
	Bool     bool
	List     []Value
	Time     time.Time
	Segments []notion.RichText
}

// Constructors for the common shapes.
func Null() Value                { return Value{Kind: KindNull} }
func String(s string) Value      { return Value{Kind: KindString, Str: s} }
func Number(n float64) Value     { return Value{Kind: KindNumber, Num: n} }
func Bool(b bool) Value          { return Value{Kind: KindBool, Bool: b} }
func List(items ...Value) Value  { return Value{Kind: KindList, List: items} }
func Date(t time.Time) Value     { return Value{Kind: KindDate, Time: t} }
func OptionValue(n string) Value { return Value{Kind: KindOption, Str: n} }

// FromAny converts a value decoded from JSON (or a database row) into a Value.
// Unknown shapes become Null, which every property type drops.
func FromAny(v any) Value {
	switch x := v.(type) {
	case nil:
		return Null()
	case Value:
		return x
	case string:
		return String(x)
	case bool:
		return Bool(x)
	case float64:
		return Number(x)
	case float32:
		return Number(float64(x))
	case int:
		return Number(float64(x))
	case int32:
		return Number(float64(x))
	case int64:
		return Number(float64(x))
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return Number(f)
		}
		return String(x.String())
	case time.Time:
		return Date(x)
	case []string:
		items := make([]Value, 0, len(x))
		for _, s := range x {
			items = append(items, String(s))
		}
		return List(items...)
	case []any:
		if segs, ok := segmentsOf(x); ok {
			return Value{Kind: KindRichText, Segments: segs}
		}
		items := make([]Value, 0, len(x))
		for _, item := range x {
			items = append(items, FromAny(item))
		}
		return List(items...)
	case map[string]any:
		return fromObject(x)
	}
	return Null()
}

func fromObject(m map[string]any) Value {
	if seg, ok := segmentOf(m); ok {
		return Value{Kind: KindRichText, Segments: []notion.RichText{seg}}
	}
	if name, ok := m["name"].(string); ok {
		return OptionValue(name)
	}
	if start, ok := m["start"].(string); ok {
		return String(start)
	}
	return Null()
}

// segmentsOf recognizes an array of text segments in any of the shapes the
// workspace or earlier application versions produced.
func segmentsOf(items []any) ([]notion.RichText, bool) {
	if len(items) == 0 {
		return nil, false
	}
	segs := make([]notion.RichText, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, false
		}
		seg, ok := segmentOf(m)
		if !ok {
			return nil, false
		}
		segs = append(segs, seg)
	}
	return segs, true
}

func segmentOf(m map[string]any) (notion.RichText, bool) {
	if text, ok := m["text"].(map[string]any); ok {
		if content, ok := text["content"].(string); ok {
			return notion.NewText(content), true
		}
	}
	if content, ok := m["text"].(string); ok {
		return notion.NewText(content), true
	}
	if plain, ok := m["plain_text"].(string); ok {
		return notion.NewText(plain), true
	}
	return notion.RichText{}, false
}

// Text flattens a value to display text. Lists are joined with ", ".
func (v Value) Text() string {
	switch v.Kind {
	case KindString, KindOption:
		return v.Str
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindDate:
		return v.Time.Format(dateLayout)
	case KindRichText:
		var b strings.Builder
		for _, s := range v.Segments {
			b.WriteString(s.Content())
		}
		return b.String()
	case KindList:
		parts := make([]string, 0, len(v.List))
		for _, item := range v.List {
			if t := item.Text(); t != "" {
				parts = append(parts, t)
			}
		}
		return strings.Join(parts, ", ")
	}
	return ""
}

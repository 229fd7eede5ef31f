package coerce

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/stacklok/loresync/internal/notion"
	"github.com/stacklok/loresync/internal/schema"
)

// DropError explains why a value was not written.
type DropError struct {
	Property string
	Type     notion.PropertyType
	Reason   string
}

func (e *DropError) Error() string {
	return fmt.Sprintf("dropping value for %q (%s): %s", e.Property, e.Type, e.Reason)
}

// IsDrop reports whether err is a DropError.
func IsDrop(err error) bool {
	var d *DropError
	return errors.As(err, &d)
}

// Coercer converts values. The zero value is ready to use.
type Coercer struct {
	// Now anchors natural-language dates. Defaults to time.Now.
	Now func() time.Time
}

// Coerce converts v into a value for property p using the package default Coercer.
func Coerce(p schema.Property, v Value) (notion.PropertyValue, error) {
	return Coercer{}.Coerce(p, v)
}

// Coerce converts v into a value for property p, or returns a *DropError.
// Select and multi-select values must name an option declared on p; new
// options are never created.
func (c Coercer) Coerce(p schema.Property, v Value) (notion.PropertyValue, error) {
	drop := func(format string, args ...any) (notion.PropertyValue, error) {
		return notion.PropertyValue{}, &DropError{Property: p.Name, Type: p.Type, Reason: fmt.Sprintf(format, args...)}
	}
	if v.Kind == KindNull {
		return drop("no value")
	}

	switch p.Type {
	case notion.PropertyTitle:
		text := strings.TrimSpace(v.Text())
		if text == "" {
			return drop("blank title")
		}
		return notion.PropertyValue{Type: p.Type, Title: Segments(text)}, nil

	case notion.PropertyRichText:
		segs := richText(v)
		if len(segs) == 0 {
			return drop("empty text")
		}
		return notion.PropertyValue{Type: p.Type, RichText: segs}, nil

	case notion.PropertyNumber:
		switch v.Kind {
		case KindNumber:
			n := v.Num
			return notion.PropertyValue{Type: p.Type, Number: &n}, nil
		case KindString:
			n, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
			if err != nil {
				return drop("%q is not a number", v.Str)
			}
			return notion.PropertyValue{Type: p.Type, Number: &n}, nil
		}
		return drop("%s is not a number", v.Kind)

	case notion.PropertySelect:
		labels := labelsOf(v, false)
		if len(labels) == 0 {
			return drop("no option label")
		}
		opt, ok := p.Option(labels[0])
		if !ok {
			return drop("option %q is not declared", labels[0])
		}
		return notion.PropertyValue{Type: p.Type, Select: &notion.SelectOption{Name: opt.Name}}, nil

	case notion.PropertyMultiSelect:
		var (
			opts []notion.SelectOption
			seen = map[string]struct{}{}
		)
		for _, label := range labelsOf(v, true) {
			opt, ok := p.Option(label)
			if !ok {
				continue
			}
			key := strings.ToLower(opt.Name)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			opts = append(opts, notion.SelectOption{Name: opt.Name})
		}
		if len(opts) == 0 {
			return drop("no declared options among %v", labelsOf(v, true))
		}
		return notion.PropertyValue{Type: p.Type, MultiSelect: opts}, nil

	case notion.PropertyCheckbox:
		if v.Kind == KindBool {
			return notion.PropertyValue{Type: p.Type, Checkbox: v.Bool}, nil
		}
		s := strings.ToLower(strings.TrimSpace(v.Text()))
		return notion.PropertyValue{Type: p.Type, Checkbox: s == "true" || s == "1"}, nil

	case notion.PropertyDate:
		var t time.Time
		switch v.Kind {
		case KindDate:
			t = v.Time
		case KindString, KindRichText:
			parsed, ok := parseDate(v.Text(), c.now())
			if !ok {
				return drop("%q is not a date", v.Text())
			}
			t = parsed
		default:
			return drop("%s is not a date", v.Kind)
		}
		return notion.PropertyValue{Type: p.Type, Date: &notion.DateValue{Start: t.Format(dateLayout)}}, nil

	case notion.PropertyURL:
		s := strings.TrimSpace(v.Text())
		lower := strings.ToLower(s)
		if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
			return drop("%q is not an http URL", s)
		}
		return notion.PropertyValue{Type: p.Type, URL: s}, nil

	case notion.PropertyEmail:
		s := strings.TrimSpace(v.Text())
		if !strings.Contains(s, "@") {
			return drop("%q is not an email address", s)
		}
		return notion.PropertyValue{Type: p.Type, Email: s}, nil

	case notion.PropertyPhoneNumber:
		s := strings.TrimSpace(v.Text())
		if !looksLikePhone(s) {
			return drop("%q is not a phone number", s)
		}
		return notion.PropertyValue{Type: p.Type, PhoneNumber: s}, nil
	}

	return drop("unsupported property type")
}

func (c Coercer) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Segments splits text into canonical segments no longer than
// notion.MaxTextLength runes each.
func Segments(text string) []notion.RichText {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	segs := make([]notion.RichText, 0, len(runes)/notion.MaxTextLength+1)
	for len(runes) > 0 {
		n := min(len(runes), notion.MaxTextLength)
		segs = append(segs, notion.NewText(string(runes[:n])))
		runes = runes[n:]
	}
	return segs
}

func richText(v Value) []notion.RichText {
	if v.Kind != KindRichText {
		return Segments(strings.TrimSpace(v.Text()))
	}
	var out []notion.RichText
	for _, s := range v.Segments {
		if content := s.Content(); content != "" {
			out = append(out, Segments(content)...)
		}
	}
	return out
}

// labelsOf extracts option labels. Strings are split on commas when split
// is set, which is how multi-select values are commonly stored as text.
func labelsOf(v Value, split bool) []string {
	var out []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	switch v.Kind {
	case KindString:
		if split {
			for _, part := range strings.Split(v.Str, ",") {
				add(part)
			}
		} else {
			add(v.Str)
		}
	case KindOption:
		add(v.Str)
	case KindNumber, KindBool, KindRichText:
		add(v.Text())
	case KindList:
		for _, item := range v.List {
			out = append(out, labelsOf(item, split)...)
		}
	}
	return out
}

func looksLikePhone(s string) bool {
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case strings.ContainsRune("+-(). ", r):
		default:
			return false
		}
	}
	return digits >= 3
}

// Package records reads unsynchronized source rows and writes the marker
// that records their target page.
package records

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stacklok/loresync/internal/catalog"
	"github.com/stacklok/loresync/internal/coerce"
)

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks -source=records.go Store

var (
	// ErrAlreadySynced is returned by MarkSynced when the row's marker is
	// already set, or the row no longer matches.
	ErrAlreadySynced = errors.New("record already synced")
)

// Column names with a fixed meaning in every source table.
const (
	ColumnID           = "id"
	ColumnUserID       = "user_id"
	ColumnPageID       = "notion_page_id"
	ColumnProperties   = "properties"
	ColumnDatabaseName = "database_name"
	ColumnCreatedAt    = "created_at"
	ColumnUpdatedAt    = "updated_at"
)

// titleColumns are checked in order for the record's title.
var titleColumns = []string{"title", "name"}

// titleKeys are checked, case-insensitively, in the properties bag when no
// title column is set.
var titleKeys = []string{"Name", "Title"}

// Field is one source value to be resolved and coerced.
type Field struct {
	Name  string
	Value coerce.Value
}

// Record is an unsynchronized source row.
type Record struct {
	ID        uuid.UUID
	Title     string
	Fields    []Field
	CreatedAt time.Time
}

// Store reads and marks source records.
type Store interface {
	// ListUnsynced returns the user's rows of db whose marker is null,
	// ordered by creation time then id.
	ListUnsynced(ctx context.Context, userID uuid.UUID, db catalog.LogicalDatabase) ([]Record, error)

	// MarkSynced sets the marker on one row. It only succeeds if the marker
	// is still null, so a row is never marked twice.
	MarkSynced(ctx context.Context, userID uuid.UUID, db catalog.LogicalDatabase, recordID uuid.UUID, pageID string) error
}

// fromDocument builds a Record from a row rendered as a JSON-like document.
// Direct columns other than bookkeeping ones become fields, followed by the
// properties bag; both sorted by name.
func fromDocument(doc map[string]any) (Record, error) {
	id, err := uuid.Parse(fmt.Sprint(doc[ColumnID]))
	if err != nil {
		return Record{}, fmt.Errorf("record has invalid id %v: %w", doc[ColumnID], err)
	}
	rec := Record{ID: id, CreatedAt: asTime(doc[ColumnCreatedAt])}

	titleFrom := ""
	for _, col := range titleColumns {
		if s, ok := doc[col].(string); ok && strings.TrimSpace(s) != "" {
			rec.Title, titleFrom = s, col
			break
		}
	}

	bag, _ := doc[ColumnProperties].(map[string]any)
	titleKey := ""
	if rec.Title == "" {
		for _, want := range titleKeys {
			for k, v := range bag {
				if s, ok := v.(string); ok && strings.EqualFold(k, want) && strings.TrimSpace(s) != "" {
					rec.Title, titleKey = s, k
					break
				}
			}
			if titleKey != "" {
				break
			}
		}
	}

	var columns []string
	for k := range doc {
		if k == titleFrom || bookkeeping(k) {
			continue
		}
		columns = append(columns, k)
	}
	sort.Strings(columns)
	for _, k := range columns {
		rec.Fields = append(rec.Fields, Field{Name: k, Value: coerce.FromAny(doc[k])})
	}

	keys := make([]string, 0, len(bag))
	for k := range bag {
		if k != titleKey {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		rec.Fields = append(rec.Fields, Field{Name: k, Value: coerce.FromAny(bag[k])})
	}

	return rec, nil
}

func bookkeeping(column string) bool {
	switch column {
	case ColumnID, ColumnUserID, ColumnPageID, ColumnProperties, ColumnDatabaseName,
		ColumnCreatedAt, ColumnUpdatedAt:
		return true
	}
	return strings.HasSuffix(column, "_id")
}

func asTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed
			}
		}
	}
	return time.Time{}
}

func sortRecords(recs []Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.Before(recs[j].CreatedAt)
		}
		return recs[i].ID.String() < recs[j].ID.String()
	})
}

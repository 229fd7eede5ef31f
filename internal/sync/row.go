package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/stacklok/loresync/internal/catalog"
	"github.com/stacklok/loresync/internal/coerce"
	"github.com/stacklok/loresync/internal/discovery"
	"github.com/stacklok/loresync/internal/notion"
	"github.com/stacklok/loresync/internal/records"
	"github.com/stacklok/loresync/internal/schema"
)

var (
	// ErrBlankReadBack means a created page read back without the title
	// that was written.
	ErrBlankReadBack = errors.New("created page has no title")

	// ErrTitleMismatch means a created page read back with a different
	// title than the one written.
	ErrTitleMismatch = errors.New("created page title does not match")

	// ErrArchivedReadBack means a created page read back as archived.
	ErrArchivedReadBack = errors.New("created page is archived")
)

// titleOnlyProperty addresses the title when nothing else is known about
// the target schema.
var titleOnlyProperty = schema.Property{
	Name: schema.TitlePropertyID,
	ID:   schema.TitlePropertyID,
	Type: notion.PropertyTitle,
}

// rowWriter carries one logical database's context through its rows.
type rowWriter struct {
	m      *defaultSyncManager
	userID uuid.UUID
	db     catalog.LogicalDatabase
	target discovery.Target
	schema *schema.Schema
}

// sync takes one row through mapping, writing, verification and marking.
// It returns the id of the created page.
func (w *rowWriter) sync(ctx context.Context, rec records.Record) (string, error) {
	props, title, err := w.properties(ctx, rec)
	if err != nil {
		return "", &Error{
			Err:     err,
			Message: fmt.Sprintf("none of %d fields could be written", len(rec.Fields)),
			Stage:   StageMapping,
		}
	}

	page, err := w.m.deps.Workspace.CreatePage(ctx, notion.CreatePageRequest{
		Parent:     notion.Parent{DatabaseID: w.target.ID},
		Properties: props,
	})
	if err != nil {
		return "", &Error{Err: err, Message: "failed to create page", Stage: StageWrite}
	}

	if w.m.opts.VerifyWrites {
		if err := w.verify(ctx, page.ID, title); err != nil {
			return "", &Error{Err: err, Message: fmt.Sprintf("page %s could not be confirmed", page.ID), Stage: StageVerify}
		}
	}

	if err := w.m.deps.Records.MarkSynced(ctx, w.userID, w.db, rec.ID, page.ID); err != nil {
		msg := "failed to record page id"
		if errors.Is(err, records.ErrAlreadySynced) {
			msg = fmt.Sprintf("row was marked elsewhere, page %s is orphaned", page.ID)
		}
		return "", &Error{Err: err, Message: msg, Stage: StageMark}
	}
	return page.ID, nil
}

// properties resolves and coerces the row's fields. Misses and drops are
// not errors; only an empty result is. It also returns the title text being
// written, empty when the row carries none.
func (w *rowWriter) properties(ctx context.Context, rec records.Record) (map[string]notion.PropertyValue, string, error) {
	b := coerce.NewBuilder()
	c := w.m.deps.Coercer

	titleProp, ok := w.schema.TitleProperty()
	if !ok {
		titleProp = titleOnlyProperty
	}
	var title string
	if pv, err := c.Coerce(titleProp, coerce.String(rec.Title)); err == nil {
		b.Add(titleProp.Name, pv)
		title = plainText(pv.Title)
	} else {
		slog.DebugContext(ctx, "Row has no usable title",
			"logical_database", w.db, "record_id", rec.ID, "reason", err)
	}

	for _, f := range rec.Fields {
		match, ok := w.m.deps.Resolver.Resolve(w.db, f.Name, w.schema)
		if !ok {
			slog.DebugContext(ctx, "No target property for field",
				"logical_database", w.db, "record_id", rec.ID, "field", f.Name)
			continue
		}
		pv, err := c.Coerce(match.Property, f.Value)
		if err != nil {
			slog.DebugContext(ctx, "Dropping field value",
				"logical_database", w.db,
				"record_id", rec.ID,
				"field", f.Name,
				"property", match.Property.Name,
				"property_type", match.Property.Type,
				"tier", match.Tier,
				"reason", err)
			continue
		}
		b.Add(match.Property.Name, pv)
	}

	props, err := b.Build()
	return props, title, err
}

func plainText(segments []notion.RichText) string {
	var sb strings.Builder
	for _, seg := range segments {
		sb.WriteString(seg.Content())
	}
	return sb.String()
}

// verify reads the page back. A page written with a title must come back
// with the same one, ignoring surrounding whitespace.
func (w *rowWriter) verify(ctx context.Context, pageID, title string) error {
	page, err := w.m.deps.Workspace.RetrievePage(ctx, pageID)
	if err != nil {
		return err
	}
	if gjson.GetBytes(page.Raw, "archived").Bool() {
		return ErrArchivedReadBack
	}
	want := strings.TrimSpace(title)
	if want == "" {
		return nil
	}
	got := strings.TrimSpace(page.Title())
	if got == "" {
		return ErrBlankReadBack
	}
	if got != want {
		return fmt.Errorf("%w: wrote %q, read %q", ErrTitleMismatch, want, got)
	}
	return nil
}

// logRowFailure logs with enough context to diagnose a schema mismatch.
func logRowFailure(ctx context.Context, logger *slog.Logger, rec records.Record, err error) {
	var syncErr *Error
	if errors.As(err, &syncErr) {
		logger.WarnContext(ctx, "Row failed to synchronize",
			"record_id", rec.ID, "stage", syncErr.Stage, "reason", syncErr.Message, "error", syncErr.Err)
		return
	}
	logger.WarnContext(ctx, "Row failed to synchronize", "record_id", rec.ID, "error", err)
}

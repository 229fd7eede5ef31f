package schema

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/stacklok/loresync/internal/notion"
	"github.com/stacklok/loresync/internal/otel"
	"github.com/stacklok/loresync/internal/telemetry"
)

// Workspace is the part of the workspace client the provider needs.
type Workspace interface {
	RetrieveDatabase(ctx context.Context, databaseID string) (*notion.Object, error)
	QueryDatabase(ctx context.Context, databaseID string, req notion.QueryRequest) (*notion.List[notion.Object], error)
}

// Provider returns a usable schema for a target database, consulting the
// cache first and falling back to a live fetch and then to inference.
type Provider struct {
	cache     Cache
	workspace Workspace
	metrics   *telemetry.SchemaMetrics
	tracer    trace.Tracer
	now       func() time.Time
	group     singleflight.Group
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithMetrics records schema sizes.
func WithMetrics(m *telemetry.SchemaMetrics) ProviderOption {
	return func(p *Provider) { p.metrics = m }
}

// WithTracer traces lookups.
func WithTracer(t trace.Tracer) ProviderOption {
	return func(p *Provider) { p.tracer = t }
}

// NewProvider creates a Provider.
func NewProvider(cache Cache, workspace Workspace, opts ...ProviderOption) *Provider {
	p := &Provider{cache: cache, workspace: workspace, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Get returns the schema entry for key. With refresh set the cache is
// bypassed and the result replaces whatever was cached. The returned entry
// is never nil on success; its Source is SourceTitleOnly when neither the
// schema endpoint nor a sample page yielded any property.
func (p *Provider) Get(ctx context.Context, key Key, refresh bool) (*Entry, error) {
	ctx, span := otel.StartSpan(ctx, p.tracer, "schema.get", trace.WithAttributes(
		otel.AttrLogicalDatabase.String(string(key.Database)),
		otel.AttrTargetID.String(key.TargetID),
		attribute.Bool("schema.refresh", refresh),
	))
	defer span.End()

	if !refresh {
		entry, err := p.cache.Get(ctx, key)
		switch {
		case err == nil:
			span.SetAttributes(otel.AttrSchemaSource.String(string(SourceCached)))
			return &Entry{Key: entry.Key, Schema: entry.Schema, Source: SourceCached, CachedAt: entry.CachedAt}, nil
		case !errors.Is(err, ErrNotCached):
			slog.WarnContext(ctx, "Schema cache read failed, fetching live",
				"logical_database", key.Database, "error", err)
		}
	}

	flightKey := fmt.Sprintf("%s/%s/%s", key.UserID, key.Database, key.TargetID)
	v, err, _ := p.group.Do(flightKey, func() (any, error) {
		return p.load(ctx, key)
	})
	if err != nil {
		otel.RecordError(span, err)
		return nil, err
	}
	entry := v.(*Entry)
	span.SetAttributes(otel.AttrSchemaSource.String(string(entry.Source)))
	return entry, nil
}

func (p *Provider) load(ctx context.Context, key Key) (*Entry, error) {
	s, source, err := p.fetch(ctx, key)
	if err != nil {
		return nil, err
	}

	entry := &Entry{Key: key, Schema: s, Source: source, CachedAt: p.now().UTC()}
	p.metrics.RecordProperties(ctx, string(key.Database), string(source), s.Len())

	if source == SourceTitleOnly {
		return entry, nil
	}
	if err := p.cache.Put(ctx, entry); err != nil {
		slog.WarnContext(ctx, "Failed to cache schema",
			"logical_database", key.Database, "target_id", key.TargetID, "error", err)
	}
	return entry, nil
}

// fetch reads the authoritative schema and falls back to inference when it
// is empty. Errors from the schema endpoint are returned; a failed
// inference only degrades to title-only.
func (p *Provider) fetch(ctx context.Context, key Key) (*Schema, Source, error) {
	db, err := p.workspace.RetrieveDatabase(ctx, key.TargetID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to retrieve schema for %s: %w", key.Database, err)
	}

	s, err := Parse(db.Raw)
	if err != nil {
		slog.WarnContext(ctx, "Ignoring malformed schema",
			"logical_database", key.Database, "target_id", key.TargetID, "error", err)
		s = &Schema{}
	}
	if !s.Empty() {
		return s, SourceFetched, nil
	}

	inferred, err := p.infer(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "Schema inference failed, writing titles only",
			"logical_database", key.Database, "target_id", key.TargetID, "error", err)
		return &Schema{}, SourceTitleOnly, nil
	}
	if inferred.Empty() {
		slog.WarnContext(ctx, "No schema available, writing titles only",
			"logical_database", key.Database, "target_id", key.TargetID)
		return &Schema{}, SourceTitleOnly, nil
	}
	slog.InfoContext(ctx, "Inferred schema from sample page",
		"logical_database", key.Database, "properties", inferred.Len())
	return inferred, SourceInferred, nil
}

func (p *Provider) infer(ctx context.Context, key Key) (*Schema, error) {
	res, err := p.workspace.QueryDatabase(ctx, key.TargetID, notion.QueryRequest{PageSize: 1})
	if err != nil {
		return nil, err
	}
	if len(res.Results) == 0 {
		return &Schema{}, nil
	}
	return InferFromPage(res.Results[0].Raw)
}

// Cached lists the cached entries of a user without touching the workspace.
func (p *Provider) Cached(ctx context.Context, userID uuid.UUID) ([]*Entry, error) {
	return p.cache.List(ctx, userID)
}

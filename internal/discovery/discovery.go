// Package discovery finds the workspace database that backs each logical
// database. Three strategies are tried in order and the first one that finds
// anything wins:
//
//   - template-root: the template page remembered from an earlier run
//   - auto-discover: a workspace page that looks like the template
//   - workspace-search: every shared database, matched by title
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/loresync/internal/catalog"
	"github.com/stacklok/loresync/internal/notion"
	"github.com/stacklok/loresync/internal/otel"
)

// ErrNothingFound is returned when no strategy found a single database.
var ErrNothingFound = errors.New("no target databases found")

// Workspace is the part of the workspace client discovery needs.
type Workspace interface {
	AllBlockChildren(ctx context.Context, blockID string) ([]notion.Block, error)
	SearchAll(ctx context.Context, req notion.SearchRequest, maxPages int) ([]notion.Object, error)
}

// RootStore remembers the template root page per user.
type RootStore interface {
	// GetTemplateRoot returns "" when nothing is on file.
	GetTemplateRoot(ctx context.Context, userID uuid.UUID) (string, error)
	SetTemplateRoot(ctx context.Context, userID uuid.UUID, pageID string) error
	ClearTemplateRoot(ctx context.Context, userID uuid.UUID) error
}

// Target is a workspace database assigned to a logical database.
type Target struct {
	ID    string `json:"id" yaml:"id"`
	Title string `json:"title" yaml:"title"`
}

// Request scopes one discovery.
type Request struct {
	UserID uuid.UUID
	// Databases to look for; empty means all.
	Databases []catalog.LogicalDatabase
}

func (r Request) wanted() []catalog.LogicalDatabase {
	return catalog.Filter(r.Databases)
}

// Result is what discovery found.
type Result struct {
	Databases  map[catalog.LogicalDatabase]Target
	Missing    []catalog.LogicalDatabase
	Tier       string
	RootPageID string
}

// Empty reports whether no database was found.
func (r *Result) Empty() bool {
	return r == nil || len(r.Databases) == 0
}

// Target returns the target for db.
func (r *Result) Target(db catalog.LogicalDatabase) (Target, bool) {
	if r == nil {
		return Target{}, false
	}
	t, ok := r.Databases[db]
	return t, ok
}

// Strategy is one way of finding target databases.
type Strategy interface {
	Name() string
	Discover(ctx context.Context, req Request) (*Result, error)
}

// Options tunes the auto-discover strategy.
type Options struct {
	TemplateSignatures []string
	MaxCandidatePages  int
	MinEmbeddedMatches int
}

// Discoverer runs strategies in order.
type Discoverer struct {
	strategies []Strategy
	tracer     trace.Tracer
}

// Option configures a Discoverer.
type Option func(*Discoverer)

// WithTracer traces discovery.
func WithTracer(t trace.Tracer) Option {
	return func(d *Discoverer) { d.tracer = t }
}

// WithStrategies replaces the default strategies.
func WithStrategies(strategies ...Strategy) Option {
	return func(d *Discoverer) { d.strategies = strategies }
}

// New returns a Discoverer using the template-root, auto-discover and
// workspace-search strategies.
func New(ws Workspace, roots RootStore, opts Options, options ...Option) *Discoverer {
	d := &Discoverer{
		strategies: []Strategy{
			NewTemplateRoot(ws, roots),
			NewAutoDiscover(ws, roots, opts),
			NewWorkspaceSearch(ws),
		},
	}
	for _, o := range options {
		o(d)
	}
	return d
}

// Discover returns the first non-empty result. A strategy error only moves
// on to the next strategy, except a rejected credential, which is returned
// at once. When every strategy comes back empty the result lists all
// requested databases as missing and the error wraps ErrNothingFound.
func (d *Discoverer) Discover(ctx context.Context, req Request) (*Result, error) {
	ctx, span := otel.StartSpan(ctx, d.tracer, "discovery.discover",
		trace.WithAttributes(otel.AttrUserID.String(req.UserID.String())))
	defer span.End()

	var errs []error
	for _, s := range d.strategies {
		res, err := s.Discover(ctx, req)
		if err != nil {
			if errors.Is(err, notion.ErrUnauthorized) || ctx.Err() != nil {
				otel.RecordError(span, err)
				return nil, err
			}
			slog.WarnContext(ctx, "Discovery strategy failed, trying next",
				"strategy", s.Name(), "user_id", req.UserID, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		if res.Empty() {
			slog.DebugContext(ctx, "Discovery strategy found nothing", "strategy", s.Name())
			continue
		}

		res.Tier = s.Name()
		res.Missing = missing(req.wanted(), res.Databases)
		span.SetAttributes(otel.AttrDiscoveryTier.String(res.Tier), otel.AttrResultCount.Int(len(res.Databases)))
		slog.InfoContext(ctx, "Discovered target databases",
			"strategy", res.Tier, "found", len(res.Databases), "missing", len(res.Missing))
		return res, nil
	}

	err := ErrNothingFound
	if len(errs) > 0 {
		err = fmt.Errorf("%w: %w", ErrNothingFound, errors.Join(errs...))
	}
	otel.RecordError(span, err)
	return &Result{Databases: map[catalog.LogicalDatabase]Target{}, Missing: req.wanted()}, err
}

func missing(wanted []catalog.LogicalDatabase, found map[catalog.LogicalDatabase]Target) []catalog.LogicalDatabase {
	var out []catalog.LogicalDatabase
	for _, db := range wanted {
		if _, ok := found[db]; !ok {
			out = append(out, db)
		}
	}
	return out
}

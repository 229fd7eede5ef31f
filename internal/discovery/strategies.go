package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/stacklok/loresync/internal/notion"
)

// Strategy names, also reported as Result.Tier.
const (
	TierTemplateRoot    = "template-root"
	TierAutoDiscover    = "auto-discover"
	TierWorkspaceSearch = "workspace-search"
)

const (
	// maxNestedPages bounds how many child pages of a root are scanned for
	// embedded databases.
	maxNestedPages = 10
	// searchPageLimit bounds workspace-wide database listing.
	searchPageLimit = 10
)

// embeddedDatabases lists the databases embedded in pageID and in its
// direct child pages.
func embeddedDatabases(ctx context.Context, ws Workspace, pageID string) ([]candidate, error) {
	blocks, err := ws.AllBlockChildren(ctx, pageID)
	if err != nil {
		return nil, err
	}

	var out []candidate
	var nested []string
	for _, b := range blocks {
		switch b.Type {
		case notion.BlockChildDatabase:
			out = append(out, candidate{id: b.ID, title: b.Title()})
		case notion.BlockChildPage:
			if b.HasChildren && len(nested) < maxNestedPages {
				nested = append(nested, b.ID)
			}
		}
	}
	for _, id := range nested {
		children, err := ws.AllBlockChildren(ctx, id)
		if err != nil {
			slog.DebugContext(ctx, "Skipping unreadable child page", "page_id", id, "error", err)
			continue
		}
		for _, b := range children {
			if b.Type == notion.BlockChildDatabase {
				out = append(out, candidate{id: b.ID, title: b.Title()})
			}
		}
	}
	return out, nil
}

type templateRoot struct {
	ws    Workspace
	roots RootStore
}

// NewTemplateRoot returns the strategy that reuses the remembered template
// root page. An unreachable root is forgotten so the next tier can replace it.
func NewTemplateRoot(ws Workspace, roots RootStore) Strategy {
	return &templateRoot{ws: ws, roots: roots}
}

func (*templateRoot) Name() string { return TierTemplateRoot }

func (s *templateRoot) Discover(ctx context.Context, req Request) (*Result, error) {
	rootID, err := s.roots.GetTemplateRoot(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to read template root: %w", err)
	}
	if rootID == "" {
		return &Result{}, nil
	}

	candidates, err := embeddedDatabases(ctx, s.ws, rootID)
	if err != nil {
		if errors.Is(err, notion.ErrNotFound) {
			slog.WarnContext(ctx, "Template root is no longer reachable", "root_page_id", rootID)
			if err := s.roots.ClearTemplateRoot(ctx, req.UserID); err != nil {
				slog.WarnContext(ctx, "Failed to forget template root", "error", err)
			}
			return &Result{}, nil
		}
		return nil, err
	}
	return &Result{Databases: match(req.wanted(), candidates), RootPageID: rootID}, nil
}

type autoDiscover struct {
	ws    Workspace
	roots RootStore
	opts  Options
}

// NewAutoDiscover returns the strategy that looks for the template page
// among the workspace's pages and remembers it when found.
func NewAutoDiscover(ws Workspace, roots RootStore, opts Options) Strategy {
	if opts.MaxCandidatePages <= 0 {
		opts.MaxCandidatePages = 20
	}
	if opts.MinEmbeddedMatches <= 0 {
		opts.MinEmbeddedMatches = 2
	}
	return &autoDiscover{ws: ws, roots: roots, opts: opts}
}

func (*autoDiscover) Name() string { return TierAutoDiscover }

func (s *autoDiscover) Discover(ctx context.Context, req Request) (*Result, error) {
	pages, err := s.candidatePages(ctx)
	if err != nil {
		return nil, err
	}

	for _, p := range pages {
		signed := containsAny(p.Title(), s.opts.TemplateSignatures)
		candidates, err := embeddedDatabases(ctx, s.ws, p.ID)
		if err != nil {
			if errors.Is(err, notion.ErrUnauthorized) {
				return nil, err
			}
			slog.DebugContext(ctx, "Skipping candidate page", "page_id", p.ID, "error", err)
			continue
		}
		found := match(req.wanted(), candidates)
		if len(found) == 0 || (!signed && len(found) < s.opts.MinEmbeddedMatches) {
			continue
		}

		if err := s.roots.SetTemplateRoot(ctx, req.UserID, p.ID); err != nil {
			slog.WarnContext(ctx, "Failed to remember template root", "root_page_id", p.ID, "error", err)
		}
		return &Result{Databases: found, RootPageID: p.ID}, nil
	}
	return &Result{}, nil
}

// candidatePages returns up to MaxCandidatePages standalone pages, pages
// whose title carries a template signature first.
func (s *autoDiscover) candidatePages(ctx context.Context) ([]notion.Object, error) {
	size := min(s.opts.MaxCandidatePages, notion.MaxPageSize)
	maxPages := (s.opts.MaxCandidatePages + size - 1) / size
	objs, err := s.ws.SearchAll(ctx, notion.SearchRequest{
		Filter:   notion.OnlyKind(notion.ObjectPage),
		PageSize: size,
	}, maxPages)
	if err != nil {
		return nil, fmt.Errorf("failed to search workspace pages: %w", err)
	}

	var signed, rest []notion.Object
	for _, o := range objs {
		// Rows of a database are never a template.
		if o.Parent.DatabaseID != "" {
			continue
		}
		if containsAny(o.Title(), s.opts.TemplateSignatures) {
			signed = append(signed, o)
		} else {
			rest = append(rest, o)
		}
	}
	signed = append(signed, rest...)
	if len(signed) > s.opts.MaxCandidatePages {
		signed = signed[:s.opts.MaxCandidatePages]
	}
	return signed, nil
}

type workspaceSearch struct {
	ws Workspace
}

// NewWorkspaceSearch returns the strategy that matches every database
// shared with the integration by title.
func NewWorkspaceSearch(ws Workspace) Strategy {
	return &workspaceSearch{ws: ws}
}

func (*workspaceSearch) Name() string { return TierWorkspaceSearch }

func (s *workspaceSearch) Discover(ctx context.Context, req Request) (*Result, error) {
	objs, err := s.ws.SearchAll(ctx, notion.SearchRequest{
		Filter: notion.OnlyKind(notion.ObjectDatabase),
	}, searchPageLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to search workspace databases: %w", err)
	}

	candidates := make([]candidate, 0, len(objs))
	for _, o := range objs {
		candidates = append(candidates, candidate{id: o.ID, title: o.Title()})
	}
	return &Result{Databases: match(req.wanted(), candidates)}, nil
}

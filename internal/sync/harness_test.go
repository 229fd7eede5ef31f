package sync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/stacklok/loresync/internal/catalog"
	"github.com/stacklok/loresync/internal/discovery"
	"github.com/stacklok/loresync/internal/gate"
	"github.com/stacklok/loresync/internal/notion"
	"github.com/stacklok/loresync/internal/notion/notiontest"
	"github.com/stacklok/loresync/internal/records"
	"github.com/stacklok/loresync/internal/resolve"
	"github.com/stacklok/loresync/internal/schema"
	"github.com/stacklok/loresync/internal/status"
	"github.com/stacklok/loresync/internal/sync/state"
)

const (
	charactersSchema = `{
		"Name": {"id": "title", "type": "title", "title": {}},
		"Tags": {"id": "tg", "type": "multi_select", "multi_select": {"options": [
			{"id": "o1", "name": "fire"}, {"id": "o2", "name": "ice"}, {"id": "o3", "name": "storm"},
			{"id": "o4", "name": "A"}, {"id": "o5", "name": "B"}, {"id": "o6", "name": "C"}
		]}},
		"Background": {"id": "bg", "type": "rich_text", "rich_text": {}},
		"Age": {"id": "ag", "type": "number", "number": {}}
	}`
	worldsSchema = `{
		"Name": {"id": "title", "type": "title", "title": {}},
		"Weather": {"id": "wt", "type": "rich_text", "rich_text": {}}
	}`
	storiesSchema = `{
		"Title": {"id": "title", "type": "title", "title": {}},
		"Synopsis Notes": {"id": "sn", "type": "rich_text", "rich_text": {}},
		"Premise": {"id": "pr", "type": "rich_text", "rich_text": {}}
	}`
)

// harness wires a Manager to a fake workspace and file-backed stores.
type harness struct {
	srv     *notiontest.Server
	dir     string
	user    uuid.UUID
	client  *notion.Client
	state   state.StateService
	records records.Store
	cache   schema.Cache
	now     time.Time
	manager Manager
}

type harnessOption func(*harness, *Dependencies, *Options)

func withRecords(store records.Store) harnessOption {
	return func(_ *harness, deps *Dependencies, _ *Options) { deps.Records = store }
}

func withAliases(overrides map[catalog.LogicalDatabase]map[string]string) harnessOption {
	return func(_ *harness, deps *Dependencies, _ *Options) { deps.Resolver = resolve.New(overrides) }
}

func withToken(token string) harnessOption {
	return func(h *harness, deps *Dependencies, _ *Options) {
		deps.Workspace = newClient(h.srv, token)
	}
}

func newClient(srv *notiontest.Server, token string) *notion.Client {
	client, err := notion.NewClient(notion.Options{
		BaseURL: srv.BaseURL(),
		Token:   token,
		Gate: gate.New(gate.Options{
			Requests:       1000,
			MaxRetries:     1,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     time.Millisecond,
		}),
	})
	if err != nil {
		panic(err)
	}
	return client
}

// newHarness starts a workspace holding a "Story Bible" template with the
// given databases, keyed by id, each with its schema.
func newHarness(t *testing.T, databases map[string][2]string, opts ...harnessOption) *harness {
	t.Helper()

	srv := notiontest.NewServer()
	t.Cleanup(srv.Close)
	srv.AddPage("root", "Story Bible", "")
	for id, def := range databases {
		srv.AddDatabase(id, def[0], "root", def[1])
	}

	h := &harness{
		srv:    srv,
		dir:    t.TempDir(),
		user:   uuid.New(),
		client: newClient(srv, notiontest.Token),
		cache:  schema.NewMemoryCache(),
		now:    time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	h.state = state.NewFileStateService(status.NewFileStatusPersistence(h.dir), h.dir)
	h.records = records.NewFileStore(h.dir)

	deps := Dependencies{
		Workspace: h.client,
		Discoverer: discovery.New(h.client, h.state, discovery.Options{
			TemplateSignatures: []string{"story bible"},
			MaxCandidatePages:  20,
			MinEmbeddedMatches: 2,
		}),
		Schemas: schema.NewProvider(h.cache, h.client),
		Records: h.records,
		State:   h.state,
	}
	options := Options{
		VerifyWrites: true,
		StaleAfter:   24 * time.Hour,
		Now:          func() time.Time { return h.now },
	}
	for _, opt := range opts {
		opt(h, &deps, &options)
	}
	h.manager = NewManager(deps, options)
	return h
}

// writeRecords stores the user's source tables. content is YAML keyed by
// physical table name.
func (h *harness) writeRecords(t *testing.T, content string) {
	t.Helper()
	dir := filepath.Join(h.dir, h.user.String())
	require.NoError(t, os.MkdirAll(dir, 0750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, records.RecordsFileName), []byte(content), 0600))
}

// markers returns the page id recorded on each row, keyed by row id.
func (h *harness) markers(t *testing.T) map[string]string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(h.dir, h.user.String(), records.RecordsFileName))
	require.NoError(t, err)
	var tables map[string][]map[string]any
	require.NoError(t, yaml.Unmarshal(data, &tables))

	out := map[string]string{}
	for _, rows := range tables {
		for _, row := range rows {
			if page, ok := row[records.ColumnPageID]; ok && page != nil {
				out[fmt.Sprint(row[records.ColumnID])] = fmt.Sprint(page)
			}
		}
	}
	return out
}

func (h *harness) run(t *testing.T) *RunResult {
	t.Helper()
	res, err := h.manager.Run(context.Background(), RunRequest{UserID: h.user})
	require.NoError(t, err)
	return res
}

package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/loresync/internal/catalog"
	"github.com/stacklok/loresync/internal/notion"
	"github.com/stacklok/loresync/internal/records"
	"github.com/stacklok/loresync/internal/records/mocks"
	"github.com/stacklok/loresync/internal/schema"
	"github.com/stacklok/loresync/internal/status"
)

func characterOnly() map[string][2]string {
	return map[string][2]string{"db-characters": {"Characters", charactersSchema}}
}

func optionNames(raw json.RawMessage) []string {
	var out []string
	for _, o := range gjson.GetBytes(raw, "multi_select").Array() {
		out = append(out, o.Get("name").String())
	}
	return out
}

func TestNewManager(t *testing.T) {
	t.Parallel()

	m := NewManager(Dependencies{}, Options{})
	assert.IsType(t, &defaultSyncManager{}, m)
}

func TestRun_ElenweScenario(t *testing.T) {
	t.Parallel()

	h := newHarness(t, characterOnly())
	id := uuid.New()
	h.writeRecords(t, fmt.Sprintf(`
characters:
  - id: %s
    name: Elenwë
    properties:
      Tags: fire, ice
`, id))

	res := h.run(t)

	assert.Equal(t, 1, res.TotalSynced)
	assert.Equal(t, 0, res.TotalErrors)
	assert.Empty(t, res.Error)

	created := h.srv.Created()
	require.Len(t, created, 1)
	page := created[0]
	assert.Equal(t, "db-characters", page.DatabaseID)
	assert.Equal(t, "Elenwë", gjson.GetBytes(page.Properties["Name"], "title.0.text.content").String())
	assert.Equal(t, []string{"fire", "ice"}, optionNames(page.Properties["Tags"]))

	assert.Equal(t, map[string]string{id.String(): page.ID}, h.markers(t))

	character := res.Databases[catalog.Character]
	require.NotNil(t, character)
	assert.Equal(t, status.SyncPhaseComplete, character.Phase)
	assert.Equal(t, "db-characters", character.TargetID)
	assert.Equal(t, schema.SourceFetched, character.SchemaSource)
	assert.Equal(t, 4, character.SchemaProperties)
}

func TestRun_SecondRunSynchronizesNothing(t *testing.T) {
	t.Parallel()

	h := newHarness(t, characterOnly())
	h.writeRecords(t, fmt.Sprintf(`
characters:
  - id: %s
    name: Fëanor
  - id: %s
    name: Fingolfin
`, uuid.New(), uuid.New()))

	first := h.run(t)
	require.Equal(t, 2, first.TotalSynced)

	second := h.run(t)
	assert.Equal(t, 0, second.TotalSynced)
	assert.Equal(t, 0, second.TotalErrors)
	assert.Len(t, h.srv.Created(), 2)
	assert.Equal(t, status.SyncPhaseComplete, second.Databases[catalog.Character].Phase)
	assert.Equal(t, "template-root", second.DiscoveryTier)
}

func TestRun_PropertyMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		databases map[string][2]string
		aliases   map[catalog.LogicalDatabase]map[string]string
		table     string
		row       string
		check     func(t *testing.T, props map[string]json.RawMessage)
	}{
		{
			name: "alias beats substring",
			databases: map[string][2]string{
				"db-stories": {"Stories", storiesSchema},
			},
			table: "stories",
			row: `
    title: The Silmarillion
    properties:
      Synopsis: Jewels and ruin.`,
			check: func(t *testing.T, props map[string]json.RawMessage) {
				t.Helper()
				assert.Equal(t, "Jewels and ruin.", gjson.GetBytes(props["Premise"], "rich_text.0.text.content").String())
				assert.NotContains(t, props, "Synopsis Notes")
			},
		},
		{
			name:      "multi-select contributions are merged",
			databases: characterOnly(),
			aliases:   map[catalog.LogicalDatabase]map[string]string{catalog.Character: {"Labels": "Tags"}},
			table:     "characters",
			row: `
    name: Maedhros
    properties:
      Tags: [A, B]
      Labels: [B, C]`,
			check: func(t *testing.T, props map[string]json.RawMessage) {
				t.Helper()
				assert.ElementsMatch(t, []string{"A", "B", "C"}, optionNames(props["Tags"]))
			},
		},
		{
			name:      "unknown options are filtered out",
			databases: characterOnly(),
			table:     "characters",
			row: `
    name: Glorfindel
    properties:
      Tags: fire, lava`,
			check: func(t *testing.T, props map[string]json.RawMessage) {
				t.Helper()
				assert.Equal(t, []string{"fire"}, optionNames(props["Tags"]))
			},
		},
		{
			name:      "unmatched and uncoercible fields are dropped",
			databases: characterOnly(),
			table:     "characters",
			row: `
    name: Beren
    properties:
      Shoe Size: 12
      Age: not a number
      Backstory: Lost a hand.`,
			check: func(t *testing.T, props map[string]json.RawMessage) {
				t.Helper()
				assert.Len(t, props, 2)
				assert.Contains(t, props, "Name")
				assert.Equal(t, "Lost a hand.", gjson.GetBytes(props["Background"], "rich_text.0.text.content").String())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var opts []harnessOption
			if tt.aliases != nil {
				opts = append(opts, withAliases(tt.aliases))
			}
			h := newHarness(t, tt.databases, opts...)
			h.writeRecords(t, fmt.Sprintf("%s:\n  - id: %s%s\n", tt.table, uuid.New(), tt.row))

			res := h.run(t)
			require.Equal(t, 1, res.TotalSynced, "errors: %d", res.TotalErrors)

			created := h.srv.Created()
			require.Len(t, created, 1)
			tt.check(t, created[0].Properties)
		})
	}
}

func TestRun_ZeroPropertyGuard(t *testing.T) {
	t.Parallel()

	h := newHarness(t, characterOnly())
	id := uuid.New()
	h.writeRecords(t, fmt.Sprintf(`
characters:
  - id: %s
    properties:
      Shoe Size: 12
`, id))

	res := h.run(t)

	assert.Equal(t, 0, res.TotalSynced)
	assert.Equal(t, 1, res.TotalErrors)
	assert.Equal(t, 0, h.srv.Calls("pages.create"))
	assert.Empty(t, h.markers(t))

	character := res.Databases[catalog.Character]
	assert.Equal(t, status.SyncPhaseFailed, character.Phase)
	assert.Equal(t, "1 of 1 rows failed", character.Message)
}

func TestRun_InferredSchema(t *testing.T) {
	t.Parallel()

	h := newHarness(t, map[string][2]string{
		"db-worlds": {"Worlds", worldsSchema},
	})
	h.srv.HideSchema("db-worlds")
	h.srv.AddRow("db-worlds", "sample-row", `{
		"Name": {"id": "title", "type": "title", "title": []},
		"Weather": {"id": "wt", "type": "rich_text", "rich_text": []}
	}`)
	h.writeRecords(t, fmt.Sprintf(`
worlds:
  - id: %s
    name: Arda
    properties:
      Climate: Long winters.
`, uuid.New()))

	res := h.run(t)
	require.Equal(t, 1, res.TotalSynced)

	world := res.Databases[catalog.World]
	assert.Equal(t, schema.SourceInferred, world.SchemaSource)
	assert.Equal(t, 2, world.SchemaProperties)

	created := h.srv.Created()
	require.Len(t, created, 1)
	assert.Equal(t, "Long winters.", gjson.GetBytes(created[0].Properties["Weather"], "rich_text.0.text.content").String())

	entry, err := h.cache.Get(context.Background(), schema.Key{UserID: h.user, Database: catalog.World, TargetID: "db-worlds"})
	require.NoError(t, err)
	require.Equal(t, 2, entry.Schema.Len())
	assert.Equal(t, "Name", entry.Schema.Properties[0].Name)
	assert.Equal(t, notion.PropertyTitle, entry.Schema.Properties[0].Type)
	assert.Equal(t, "Weather", entry.Schema.Properties[1].Name)
	assert.Equal(t, notion.PropertyRichText, entry.Schema.Properties[1].Type)
}

func TestRun_TitleOnly(t *testing.T) {
	t.Parallel()

	h := newHarness(t, map[string][2]string{
		"db-worlds": {"Worlds", worldsSchema},
	})
	h.srv.HideSchema("db-worlds")
	h.writeRecords(t, fmt.Sprintf(`
worlds:
  - id: %s
    name: Valinor
    properties:
      Climate: Eternal spring.
`, uuid.New()))

	res := h.run(t)
	require.Equal(t, 1, res.TotalSynced)
	assert.Equal(t, schema.SourceTitleOnly, res.Databases[catalog.World].SchemaSource)

	created := h.srv.Created()
	require.Len(t, created, 1)
	assert.Len(t, created[0].Properties, 1)
	assert.Equal(t, "Valinor", gjson.GetBytes(created[0].Properties[schema.TitlePropertyID], "title.0.text.content").String())

	_, err := h.cache.Get(context.Background(), schema.Key{UserID: h.user, Database: catalog.World, TargetID: "db-worlds"})
	assert.ErrorIs(t, err, schema.ErrNotCached)
}

func TestRun_MissingTargetIsSkipped(t *testing.T) {
	t.Parallel()

	h := newHarness(t, characterOnly())
	h.writeRecords(t, fmt.Sprintf(`
worlds:
  - id: %s
    name: Arda
`, uuid.New()))

	res := h.run(t)

	world := res.Databases[catalog.World]
	require.NotNil(t, world)
	assert.Equal(t, status.SyncPhaseSkipped, world.Phase)
	assert.Zero(t, world.Synced)
	assert.Zero(t, world.Errors)
	assert.Contains(t, res.Missing, catalog.World)
	assert.NotContains(t, res.Missing, catalog.Character)
	assert.Len(t, res.Databases, len(catalog.All()))
	assert.Empty(t, h.srv.Created())
}

func TestRun_VerificationFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t, characterOnly())
	h.srv.BlankReadBack = true
	h.writeRecords(t, fmt.Sprintf(`
characters:
  - id: %s
    name: Lúthien
`, uuid.New()))

	res := h.run(t)

	assert.Equal(t, 0, res.TotalSynced)
	assert.Equal(t, 1, res.TotalErrors)
	assert.Len(t, h.srv.Created(), 1)
	assert.Empty(t, h.markers(t))
}

func TestRun_TitleMismatchOnReadBack(t *testing.T) {
	t.Parallel()

	h := newHarness(t, characterOnly())
	h.srv.SetTitleReadBack("Tinúviel")
	h.writeRecords(t, fmt.Sprintf(`
characters:
  - id: %s
    name: "  Lúthien  "
`, uuid.New()))

	res := h.run(t)

	assert.Equal(t, 0, res.TotalSynced)
	assert.Equal(t, 1, res.TotalErrors)
	assert.Len(t, h.srv.Created(), 1)
	assert.Empty(t, h.markers(t))

	h.srv.SetTitleReadBack("")
	res = h.run(t)

	assert.Equal(t, 1, res.TotalSynced)
	assert.Len(t, h.markers(t), 1)
}

func TestRun_WriteFailureIsRetriedNextRun(t *testing.T) {
	t.Parallel()

	h := newHarness(t, characterOnly())
	h.srv.Fail("pages.create", http.StatusBadRequest, 1, "")
	id := uuid.New()
	h.writeRecords(t, fmt.Sprintf(`
characters:
  - id: %s
    name: Túrin
`, id))

	first := h.run(t)
	assert.Equal(t, 1, first.TotalErrors)
	assert.Empty(t, h.markers(t))

	second := h.run(t)
	assert.Equal(t, 1, second.TotalSynced)
	assert.Equal(t, 0, second.TotalErrors)
	assert.Contains(t, h.markers(t), id.String())
}

func TestRun_SchemaFailureDoesNotStopOtherDatabases(t *testing.T) {
	t.Parallel()

	h := newHarness(t, map[string][2]string{
		"db-characters": {"Characters", charactersSchema},
		"db-worlds":     {"Worlds", worldsSchema},
	})
	h.srv.Fail("databases.retrieve", http.StatusNotFound, 1, "")
	h.writeRecords(t, fmt.Sprintf(`
characters:
  - id: %s
    name: Húrin
worlds:
  - id: %s
    name: Beleriand
`, uuid.New(), uuid.New()))

	res := h.run(t)

	character := res.Databases[catalog.Character]
	assert.Equal(t, status.SyncPhaseFailed, character.Phase)
	assert.Contains(t, character.Message, "Schema unavailable")
	assert.Equal(t, 0, character.Errors)

	world := res.Databases[catalog.World]
	assert.Equal(t, status.SyncPhaseComplete, world.Phase)
	assert.Equal(t, 1, world.Synced)
}

func TestRun_NothingDiscovered(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	res := h.run(t)

	assert.NotEmpty(t, res.Error)
	assert.ElementsMatch(t, catalog.All(), res.Missing)
	for _, db := range catalog.All() {
		assert.Equal(t, status.SyncPhaseSkipped, res.Databases[db].Phase, db)
	}
}

func TestRun_RejectedCredential(t *testing.T) {
	t.Parallel()

	h := newHarness(t, characterOnly(), withToken("wrong-token"))
	res, err := h.manager.Run(context.Background(), RunRequest{UserID: h.user})

	require.Error(t, err)
	assert.ErrorIs(t, err, notion.ErrUnauthorized)
	assert.Nil(t, res)
}

func TestRun_InvalidRequest(t *testing.T) {
	t.Parallel()

	h := newHarness(t, characterOnly())

	_, err := h.manager.Run(context.Background(), RunRequest{})
	assert.ErrorIs(t, err, ErrNoUser)

	restricted := NewManager(Dependencies{}, Options{Databases: []catalog.LogicalDatabase{catalog.Story}})
	_, err = restricted.Run(context.Background(), RunRequest{
		UserID:    h.user,
		Databases: []catalog.LogicalDatabase{catalog.Lore},
	})
	assert.ErrorIs(t, err, ErrDatabaseNotEnabled)
}

func TestRun_RequestedSubset(t *testing.T) {
	t.Parallel()

	h := newHarness(t, map[string][2]string{
		"db-characters": {"Characters", charactersSchema},
		"db-worlds":     {"Worlds", worldsSchema},
	})
	h.writeRecords(t, fmt.Sprintf(`
characters:
  - id: %s
    name: Húrin
worlds:
  - id: %s
    name: Beleriand
`, uuid.New(), uuid.New()))

	res, err := h.manager.Run(context.Background(), RunRequest{
		UserID:    h.user,
		Databases: []catalog.LogicalDatabase{catalog.World},
	})
	require.NoError(t, err)

	assert.Len(t, res.Databases, 1)
	assert.Equal(t, 1, res.Databases[catalog.World].Synced)
	require.Len(t, h.srv.Created(), 1)
	assert.Equal(t, "db-worlds", h.srv.Created()[0].DatabaseID)
}

// cancellingStore cancels the run once the first row is marked.
type cancellingStore struct {
	records.Store
	cancel context.CancelFunc
}

func (c *cancellingStore) MarkSynced(
	ctx context.Context, userID uuid.UUID, db catalog.LogicalDatabase, recordID uuid.UUID, pageID string,
) error {
	err := c.Store.MarkSynced(ctx, userID, db, recordID, pageID)
	c.cancel()
	return err
}

func TestRun_CancellationFinishesRowInFlight(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := newHarness(t, map[string][2]string{
		"db-characters": {"Characters", charactersSchema},
		"db-worlds":     {"Worlds", worldsSchema},
	}, func(hh *harness, deps *Dependencies, _ *Options) {
		deps.Records = &cancellingStore{Store: hh.records, cancel: cancel}
	})
	first, second := uuid.New(), uuid.New()
	h.writeRecords(t, fmt.Sprintf(`
characters:
  - id: %s
    name: Idril
    created_at: "2024-01-01T00:00:00Z"
  - id: %s
    name: Tuor
    created_at: "2024-01-02T00:00:00Z"
worlds:
  - id: %s
    name: Gondolin
`, first, second, uuid.New()))

	res, err := h.manager.Run(ctx, RunRequest{UserID: h.user})
	require.NoError(t, err)

	assert.True(t, res.Cancelled)
	character := res.Databases[catalog.Character]
	assert.Equal(t, 1, character.Synced)
	assert.Equal(t, status.SyncPhaseFailed, character.Phase)
	assert.Contains(t, character.Message, "cancelled")
	assert.NotContains(t, res.Databases, catalog.World)

	markers := h.markers(t)
	assert.Contains(t, markers, first.String())
	assert.NotContains(t, markers, second.String())

	saved, err := h.state.GetSyncStatus(context.Background(), h.user, catalog.Character)
	require.NoError(t, err)
	assert.Equal(t, status.SyncPhaseFailed, saved.Phase)
}

func TestRun_StoreFailures(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)

	h := newHarness(t, map[string][2]string{
		"db-characters": {"Characters", charactersSchema},
		"db-worlds":     {"Worlds", worldsSchema},
	}, withRecords(store))

	rowID := uuid.New()
	store.EXPECT().
		ListUnsynced(gomock.Any(), h.user, catalog.Character).
		Return(nil, errors.New("connection refused"))
	store.EXPECT().
		ListUnsynced(gomock.Any(), h.user, catalog.World).
		Return([]records.Record{{ID: rowID, Title: "Nargothrond"}}, nil)
	store.EXPECT().
		MarkSynced(gomock.Any(), h.user, catalog.World, rowID, gomock.Any()).
		Return(records.ErrAlreadySynced)

	res := h.run(t)

	character := res.Databases[catalog.Character]
	assert.Equal(t, status.SyncPhaseFailed, character.Phase)
	assert.Contains(t, character.Message, "connection refused")

	world := res.Databases[catalog.World]
	assert.Equal(t, 0, world.Synced)
	assert.Equal(t, 1, world.Errors)
	assert.Len(t, h.srv.Created(), 1)
}

func TestStatus(t *testing.T) {
	t.Parallel()

	h := newHarness(t, map[string][2]string{
		"db-characters": {"Characters", charactersSchema},
		"db-worlds":     {"Worlds", worldsSchema},
	})
	h.writeRecords(t, fmt.Sprintf(`
characters:
  - id: %s
    name: Finrod
worlds:
  - id: %s
`, uuid.New(), uuid.New()))

	report, err := h.manager.Status(context.Background(), h.user)
	require.NoError(t, err)
	require.Len(t, report.Databases, len(catalog.All()))
	for _, ds := range report.Databases {
		assert.Equal(t, status.HealthNeverSynced, ds.Health, ds.Database)
	}

	h.run(t)

	report, err = h.manager.Status(context.Background(), h.user)
	require.NoError(t, err)
	byDB := map[catalog.LogicalDatabase]DatabaseStatus{}
	for _, ds := range report.Databases {
		byDB[ds.Database] = ds
	}
	assert.Equal(t, catalog.Character, report.Databases[0].Database)

	character := byDB[catalog.Character]
	assert.Equal(t, status.HealthHealthy, character.Health)
	assert.Equal(t, "db-characters", character.TargetID)
	assert.Equal(t, 4, character.SchemaProperties)
	assert.Equal(t, 1, character.Synced)
	require.NotNil(t, character.LastSyncTime)
	assert.True(t, character.LastSyncTime.Equal(h.now))

	// The world row has no title and nothing else to write.
	assert.Equal(t, status.HealthError, byDB[catalog.World].Health)
	assert.Equal(t, status.HealthNeverSynced, byDB[catalog.Story].Health)
	assert.Equal(t, "Stories", byDB[catalog.Story].Label)

	h.now = h.now.Add(25 * time.Hour)
	report, err = h.manager.Status(context.Background(), h.user)
	require.NoError(t, err)
	assert.Equal(t, status.HealthStale, report.Databases[0].Health)
}

func TestStatus_RequiresUser(t *testing.T) {
	t.Parallel()

	m := NewManager(Dependencies{}, Options{})
	_, err := m.Status(context.Background(), uuid.Nil)
	assert.ErrorIs(t, err, ErrNoUser)
}

// gatedStore holds ListUnsynced until release is closed.
type gatedStore struct {
	records.Store
	entered chan struct{}
	release chan struct{}
}

func (s *gatedStore) ListUnsynced(ctx context.Context, userID uuid.UUID, db catalog.LogicalDatabase) ([]records.Record, error) {
	select {
	case s.entered <- struct{}{}:
	default:
	}
	<-s.release
	return s.Store.ListUnsynced(ctx, userID, db)
}

func TestRun_OverlappingRunsForOneUser(t *testing.T) {
	t.Parallel()

	gated := &gatedStore{entered: make(chan struct{}, 1), release: make(chan struct{})}
	h := newHarness(t, characterOnly(), func(h *harness, deps *Dependencies, _ *Options) {
		gated.Store = h.records
		deps.Records = gated
	})
	h.writeRecords(t, fmt.Sprintf(`
characters:
  - id: %s
    name: Fëanor
  - id: %s
    name: Fingolfin
  - id: %s
    name: Finarfin
`, uuid.New(), uuid.New(), uuid.New()))

	type outcome struct {
		res *RunResult
		err error
	}
	first := make(chan outcome, 1)
	go func() {
		res, err := h.manager.Run(context.Background(), RunRequest{UserID: h.user})
		first <- outcome{res, err}
	}()
	<-gated.entered

	_, err := h.manager.Run(context.Background(), RunRequest{UserID: h.user})
	require.ErrorIs(t, err, ErrRunInProgress)

	close(gated.release)
	got := <-first
	require.NoError(t, got.err)
	assert.Equal(t, 3, got.res.TotalSynced)
	assert.Len(t, h.srv.Created(), 3)
	assert.Len(t, h.markers(t), 3)

	// The guard is released once the run returns.
	again := h.run(t)
	assert.Equal(t, 0, again.TotalSynced)
	assert.Len(t, h.srv.Created(), 3)
}

package v1

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/loresync/internal/catalog"
	"github.com/stacklok/loresync/internal/notion"
	"github.com/stacklok/loresync/internal/status"
	"github.com/stacklok/loresync/internal/sync"
	"github.com/stacklok/loresync/internal/sync/mocks"
)

func TestRunSync(t *testing.T) {
	t.Parallel()

	user := uuid.New()

	tests := []struct {
		name       string
		path       string
		body       string
		setupMock  func(*mocks.MockManager)
		wantStatus int
		wantBody   string
	}{
		{
			name: "no body runs everything",
			path: "/users/" + user.String() + "/sync",
			setupMock: func(m *mocks.MockManager) {
				m.EXPECT().
					Run(gomock.Any(), sync.RunRequest{UserID: user}).
					Return(&sync.RunResult{UserID: user, TotalSynced: 3, Databases: map[catalog.LogicalDatabase]*sync.DatabaseResult{
						catalog.Character: {Phase: status.SyncPhaseComplete, Synced: 3},
					}}, nil)
			},
			wantStatus: http.StatusOK,
			wantBody:   `"totalSynced":3`,
		},
		{
			name: "databases by label and refresh",
			path: "/users/" + user.String() + "/sync",
			body: `{"databases":["Magic Systems","lore"],"refreshSchema":true}`,
			setupMock: func(m *mocks.MockManager) {
				m.EXPECT().
					Run(gomock.Any(), sync.RunRequest{
						UserID:        user,
						Databases:     []catalog.LogicalDatabase{catalog.MagicSystem, catalog.Lore},
						RefreshSchema: true,
					}).
					Return(&sync.RunResult{UserID: user}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "user is not a UUID",
			path:       "/users/alice/sync",
			setupMock:  func(*mocks.MockManager) {},
			wantStatus: http.StatusBadRequest,
			wantBody:   "userID must be a UUID",
		},
		{
			name:       "unknown database",
			path:       "/users/" + user.String() + "/sync",
			body:       `{"databases":["spaceships"]}`,
			setupMock:  func(*mocks.MockManager) {},
			wantStatus: http.StatusBadRequest,
			wantBody:   "unknown logical database",
		},
		{
			name:       "unknown field",
			path:       "/users/" + user.String() + "/sync",
			body:       `{"force":true}`,
			setupMock:  func(*mocks.MockManager) {},
			wantStatus: http.StatusBadRequest,
			wantBody:   "invalid request body",
		},
		{
			name: "database not enabled",
			path: "/users/" + user.String() + "/sync",
			body: `{"databases":["lore"]}`,
			setupMock: func(m *mocks.MockManager) {
				m.EXPECT().Run(gomock.Any(), gomock.Any()).
					Return(nil, fmt.Errorf("%w: lore", sync.ErrDatabaseNotEnabled))
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "run already in progress",
			path: "/users/" + user.String() + "/sync",
			setupMock: func(m *mocks.MockManager) {
				m.EXPECT().Run(gomock.Any(), gomock.Any()).Return(nil, sync.ErrRunInProgress)
			},
			wantStatus: http.StatusConflict,
			wantBody:   "already in progress",
		},
		{
			name: "credential rejected",
			path: "/users/" + user.String() + "/sync",
			setupMock: func(m *mocks.MockManager) {
				m.EXPECT().Run(gomock.Any(), gomock.Any()).
					Return(nil, fmt.Errorf("workspace is not reachable: %w", notion.ErrUnauthorized))
			},
			wantStatus: http.StatusBadGateway,
			wantBody:   "credential rejected",
		},
		{
			name: "caller went away",
			path: "/users/" + user.String() + "/sync",
			setupMock: func(m *mocks.MockManager) {
				m.EXPECT().Run(gomock.Any(), gomock.Any()).Return(nil, context.Canceled)
			},
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)
			t.Cleanup(ctrl.Finish)

			manager := mocks.NewMockManager(ctrl)
			tt.setupMock(manager)

			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
			rr := httptest.NewRecorder()
			Router(manager).ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
			if tt.wantBody != "" {
				assert.Contains(t, rr.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestGetStatus(t *testing.T) {
	t.Parallel()

	user := uuid.New()

	t.Run("report", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		t.Cleanup(ctrl.Finish)

		manager := mocks.NewMockManager(ctrl)
		manager.EXPECT().Status(gomock.Any(), user).Return(&sync.StatusReport{
			UserID: user,
			Databases: []sync.DatabaseStatus{
				{Database: catalog.Character, Label: "Characters", TargetID: "db-1", SchemaProperties: 4, Health: status.HealthHealthy},
				{Database: catalog.World, Label: "Worlds", Health: status.HealthNeverSynced},
			},
		}, nil)

		rr := httptest.NewRecorder()
		Router(manager).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/users/"+user.String()+"/status", nil))

		require.Equal(t, http.StatusOK, rr.Code)
		var report sync.StatusReport
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
		require.Len(t, report.Databases, 2)
		assert.Equal(t, status.HealthHealthy, report.Databases[0].Health)
		assert.Equal(t, 4, report.Databases[0].SchemaProperties)
		assert.Equal(t, status.HealthNeverSynced, report.Databases[1].Health)
	})

	t.Run("state unreadable", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		t.Cleanup(ctrl.Finish)

		manager := mocks.NewMockManager(ctrl)
		manager.EXPECT().Status(gomock.Any(), user).Return(nil, errors.New("permission denied"))

		rr := httptest.NewRecorder()
		Router(manager).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/users/"+user.String()+"/status", nil))

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.NotContains(t, rr.Body.String(), "permission denied")
	})

	t.Run("nil user", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		t.Cleanup(ctrl.Finish)

		manager := mocks.NewMockManager(ctrl)
		manager.EXPECT().Status(gomock.Any(), uuid.Nil).Return(nil, sync.ErrNoUser)

		rr := httptest.NewRecorder()
		Router(manager).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/users/"+uuid.Nil.String()+"/status", nil))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

package common

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serve routes path through a chi router that records the parameter.
func serve(t *testing.T, path string, handle func(r *http.Request)) {
	t.Helper()
	router := chi.NewRouter()
	router.Get("/users/{userID}", func(_ http.ResponseWriter, r *http.Request) { handle(r) })
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(httptest.NewRecorder(), req)
}

func TestGetAndValidateURLParam(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		path       string
		wantValue  string
		wantErrMsg string
	}{
		{name: "plain value", path: "/users/alice", wantValue: "alice"},
		{name: "encoded value is decoded", path: "/users/a%2Fb", wantValue: "a/b"},
		{name: "encoded whitespace", path: "/users/a%20b", wantErrMsg: "userID cannot contain whitespace"},
		{name: "only whitespace", path: "/users/%20", wantErrMsg: "userID cannot be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			called := false
			serve(t, tt.path, func(r *http.Request) {
				called = true
				got, err := GetAndValidateURLParam(r, "userID")
				if tt.wantErrMsg != "" {
					assert.EqualError(t, err, tt.wantErrMsg)
					return
				}
				require.NoError(t, err)
				assert.Equal(t, tt.wantValue, got)
			})
			assert.True(t, called)
		})
	}
}

func TestGetUUIDParam(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	serve(t, "/users/"+id.String(), func(r *http.Request) {
		got, err := GetUUIDParam(r, "userID")
		require.NoError(t, err)
		assert.Equal(t, id, got)
	})

	serve(t, "/users/not-a-uuid", func(r *http.Request) {
		_, err := GetUUIDParam(r, "userID")
		assert.EqualError(t, err, "userID must be a UUID")
	})
}

func TestWriteErrorResponse(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	WriteErrorResponse(rr, "boom", http.StatusTeapot)

	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"boom"}`, rr.Body.String())
}

package httpclient_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/loresync/internal/httpclient"
)

// newTestServer disables keep-alives so closing one server cannot disturb
// parallel tests sharing the default transport.
func newTestServer(handler http.Handler) *httptest.Server {
	server := httptest.NewServer(handler)
	server.Config.SetKeepAlivesEnabled(false)
	return server
}

func TestDefaultClient_Get(t *testing.T) {
	t.Parallel()

	var received http.Header
	server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = r.Header.Clone()
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(`{"object":"user"}`))
	}))
	defer server.Close()

	client := httpclient.NewDefaultClient(0)
	header := http.Header{}
	header.Set("Authorization", "Bearer secret")

	data, err := client.Get(context.Background(), server.URL, header)

	require.NoError(t, err)
	assert.JSONEq(t, `{"object":"user"}`, string(data))
	assert.Equal(t, httpclient.UserAgent, received.Get("User-Agent"))
	assert.Equal(t, "application/json", received.Get("Accept"))
	assert.Equal(t, "Bearer secret", received.Get("Authorization"))
	assert.Empty(t, received.Get("Content-Type"))
}

func TestDefaultClient_Post(t *testing.T) {
	t.Parallel()

	var (
		contentType string
		body        []byte
	)
	server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		contentType = r.Header.Get("Content-Type")
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"page-1"}`))
	}))
	defer server.Close()

	client := httpclient.NewDefaultClient(5 * time.Second)
	data, err := client.Post(context.Background(), server.URL, nil, []byte(`{"parent":{}}`))

	require.NoError(t, err)
	assert.Equal(t, "application/json", contentType)
	assert.JSONEq(t, `{"parent":{}}`, string(body))
	assert.JSONEq(t, `{"id":"page-1"}`, string(data))
}

func TestDefaultClient_HTTPErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		statusCode     int
		retryAfter     string
		responseBody   string
		wantRetryAfter time.Duration
	}{
		{name: "404 Not Found", statusCode: http.StatusNotFound, responseBody: `{"code":"object_not_found"}`},
		{name: "401 Unauthorized", statusCode: http.StatusUnauthorized, responseBody: `{"code":"unauthorized"}`},
		{name: "500 Internal Server Error", statusCode: http.StatusInternalServerError},
		{
			name:           "429 with delta seconds",
			statusCode:     http.StatusTooManyRequests,
			retryAfter:     "2",
			responseBody:   `{"code":"rate_limited"}`,
			wantRetryAfter: 2 * time.Second,
		},
		{
			name:       "429 with garbage hint",
			statusCode: http.StatusTooManyRequests,
			retryAfter: "soon",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				if tt.retryAfter != "" {
					w.Header().Set("Retry-After", tt.retryAfter)
				}
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(tt.responseBody))
			}))
			defer server.Close()

			client := httpclient.NewDefaultClient(5 * time.Second)
			_, err := client.Get(context.Background(), server.URL, nil)

			require.Error(t, err)
			assert.Contains(t, err.Error(), fmt.Sprintf("HTTP %d", tt.statusCode))

			var httpErr *httpclient.HTTPError
			require.True(t, errors.As(err, &httpErr))
			assert.Equal(t, tt.statusCode, httpErr.StatusCode)
			assert.Equal(t, tt.responseBody, string(httpErr.Body))
			assert.Equal(t, tt.wantRetryAfter, httpErr.RetryAfter)
		})
	}
}

func TestDefaultClient_NetworkErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		url           string
		errorContains string
	}{
		{name: "invalid URL scheme", url: "://invalid-url", errorContains: "failed to create request"},
		{name: "invalid URL format", url: "not-a-valid-url", errorContains: "failed to execute request"},
		{name: "empty URL", url: "", errorContains: "failed to execute request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := httpclient.NewDefaultClient(5 * time.Second)
			_, err := client.Get(context.Background(), tt.url, nil)

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorContains)
		})
	}
}

func TestDefaultClient_ContextTimeout(t *testing.T) {
	t.Parallel()

	server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(2 * time.Second)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := httpclient.NewDefaultClient(30 * time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := client.Get(ctx, server.URL, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDefaultClient_SizeLimit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		write func(w http.ResponseWriter)
	}{
		{
			name: "via Content-Length",
			write: func(w http.ResponseWriter) {
				w.Header().Set("Content-Length", fmt.Sprintf("%d", httpclient.MaxResponseSize+1))
				w.WriteHeader(http.StatusOK)
			},
		},
		{
			name: "via actual content",
			write: func(w http.ResponseWriter) {
				w.WriteHeader(http.StatusOK)
				chunk := make([]byte, 1024*1024)
				for i := 0; i < httpclient.MaxResponseSize/len(chunk)+1; i++ {
					_, _ = w.Write(chunk)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				tt.write(w)
			}))
			defer server.Close()

			client := httpclient.NewDefaultClient(30 * time.Second)
			_, err := client.Get(context.Background(), server.URL, nil)

			require.Error(t, err)
			assert.Contains(t, err.Error(), "exceeds maximum allowed size")
		})
	}
}

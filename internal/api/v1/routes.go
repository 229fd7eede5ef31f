// Package v1 provides the sync and status endpoints.
package v1

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/loresync/internal/api/common"
	"github.com/stacklok/loresync/internal/catalog"
	"github.com/stacklok/loresync/internal/sync"
)

// maxBodyBytes bounds sync request bodies.
const maxBodyBytes = 64 << 10

// SyncRequest is the optional body of a sync call.
type SyncRequest struct {
	// Databases restricts the run, by identifier or label.
	Databases     []string `json:"databases,omitempty"`
	RefreshSchema bool     `json:"refreshSchema,omitempty"`
}

// Routes holds the handlers' dependencies
type Routes struct {
	manager sync.Manager
}

// Router creates the v1 router
func Router(manager sync.Manager) http.Handler {
	routes := &Routes{manager: manager}

	r := chi.NewRouter()
	r.Route("/users/{userID}", func(r chi.Router) {
		r.Post("/sync", routes.runSync)
		r.Get("/status", routes.getStatus)
	})
	return r
}

func (rt *Routes) runSync(w http.ResponseWriter, r *http.Request) {
	userID, err := common.GetUUIDParam(r, "userID")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	var body SyncRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		common.WriteErrorResponse(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	req := sync.RunRequest{UserID: userID, RefreshSchema: body.RefreshSchema}
	for _, name := range body.Databases {
		db, err := catalog.Parse(name)
		if err != nil {
			common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}
		req.Databases = append(req.Databases, db)
	}

	result, err := rt.manager.Run(r.Context(), req)
	if err != nil {
		slog.WarnContext(r.Context(), "Sync could not start", "user_id", userID, "error", err)
		common.WriteErrorResponse(w, err.Error(), runErrorStatus(err))
		return
	}
	common.WriteJSONResponse(w, result, http.StatusOK)
}

func runErrorStatus(err error) int {
	switch {
	case errors.Is(err, sync.ErrNoUser), errors.Is(err, sync.ErrDatabaseNotEnabled):
		return http.StatusBadRequest
	case errors.Is(err, sync.ErrRunInProgress):
		return http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	// The workspace rejected the credential or could not be reached.
	return http.StatusBadGateway
}

func (rt *Routes) getStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := common.GetUUIDParam(r, "userID")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	report, err := rt.manager.Status(r.Context(), userID)
	if err != nil {
		if errors.Is(err, sync.ErrNoUser) {
			common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}
		slog.ErrorContext(r.Context(), "Failed to read sync status", "user_id", userID, "error", err)
		common.WriteErrorResponse(w, "failed to read sync status", http.StatusInternalServerError)
		return
	}
	common.WriteJSONResponse(w, report, http.StatusOK)
}

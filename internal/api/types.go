package api

import "github.com/stacklok/loresync/internal/versions"

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status" example:"healthy"`
}

// VersionResponse is the body of GET /version. Release is false for
// development builds, whose sync state is not version-checked.
type VersionResponse struct {
	versions.VersionInfo
	Release bool `json:"release"`
}

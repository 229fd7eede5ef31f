package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/loresync/internal/config"
	"github.com/stacklok/loresync/internal/status"
)

func TestNewStateService(t *testing.T) {
	t.Parallel()

	t.Run("file storage", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		cfg := &config.Config{FileStorage: &config.FileStorageConfig{BaseDir: dir}}
		service, err := NewStateService(cfg, status.NewFileStatusPersistence(dir), nil)
		require.NoError(t, err)
		fileService, ok := service.(*fileStateService)
		require.True(t, ok)
		assert.Equal(t, dir, fileService.basePath)
	})

	t.Run("database storage requires a pool", func(t *testing.T) {
		t.Parallel()
		cfg := &config.Config{Database: &config.DatabaseConfig{Host: "localhost"}}
		_, err := NewStateService(cfg, nil, nil)
		require.Error(t, err)
	})
}

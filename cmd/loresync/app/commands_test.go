package app

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/loresync/internal/catalog"
	"github.com/stacklok/loresync/internal/status"
	"github.com/stacklok/loresync/internal/sync"
	"github.com/stacklok/loresync/internal/versions"
)

// These tests share the global viper instance and so do not run in parallel.

func TestVersionCmd(t *testing.T) {
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"version", "--format", "json"})
	require.NoError(t, root.Execute())

	var info versions.VersionInfo
	require.NoError(t, json.Unmarshal(out.Bytes(), &info))
	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.GoVersion)

	out.Reset()
	root = NewRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.True(t, strings.HasPrefix(out.String(), "loresync "))
}

func TestSyncRequest(t *testing.T) {
	user := uuid.New()

	tests := []struct {
		name    string
		args    []string
		want    sync.RunRequest
		wantErr string
	}{
		{
			name: "user only",
			args: []string{"--user", user.String()},
			want: sync.RunRequest{UserID: user},
		},
		{
			name: "databases by label and id",
			args: []string{"--user", user.String(), "--database", "Characters", "--database", "magic_system", "--refresh-schema"},
			want: sync.RunRequest{
				UserID:        user,
				Databases:     []catalog.LogicalDatabase{catalog.Character, catalog.MagicSystem},
				RefreshSchema: true,
			},
		},
		{
			name:    "user is not a UUID",
			args:    []string{"--user", "alice"},
			wantErr: "--user must be a UUID",
		},
		{
			name:    "unknown database",
			args:    []string{"--user", user.String(), "--database", "spaceships"},
			wantErr: "unknown logical database",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newSyncCmd()
			require.NoError(t, cmd.ParseFlags(tt.args))

			req, err := syncRequest(cmd)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, req)
		})
	}
}

func TestSyncCmd_RequiresUser(t *testing.T) {
	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"sync"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user")
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		input string
		want  bool
	}{
		{name: "yes flag skips the prompt", args: []string{"--yes"}, want: true},
		{name: "answered y", input: "y\n", want: true},
		{name: "answered YES without newline", input: "YES", want: true},
		{name: "answered no", input: "no\n", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &cobra.Command{}
			cmd.Flags().BoolP("yes", "y", false, "")
			require.NoError(t, cmd.ParseFlags(tt.args))
			cmd.SetIn(strings.NewReader(tt.input))
			cmd.SetOut(&bytes.Buffer{})

			got, err := confirm(cmd, "Continue?")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMigrate_RequiresDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fileStorage:\n  baseDir: ./data\n"), 0600))

	viper.Set("config", path)
	t.Cleanup(func() { viper.Set("config", "") })

	_, _, err := migrationConnString()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database configuration is required")
}

func TestPrintRunResult(t *testing.T) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)

	require.NoError(t, printRunResult(cmd, &sync.RunResult{
		DiscoveryTier: "template-root",
		Databases: map[catalog.LogicalDatabase]*sync.DatabaseResult{
			catalog.World:     {Phase: status.SyncPhaseSkipped, Message: "No target database found"},
			catalog.Character: {Phase: status.SyncPhaseFailed, Synced: 2, Errors: 1, Message: "1 of 3 rows failed"},
		},
		TotalSynced: 2,
		TotalErrors: 1,
	}))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Targets found by template-root", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "Characters"), lines[1])
	assert.Contains(t, lines[1], "1 of 3 rows failed")
	assert.True(t, strings.HasPrefix(lines[2], "Worlds"), lines[2])
	assert.Equal(t, "Total: 2 synced, 1 failed", lines[3])
}

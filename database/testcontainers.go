package database

import (
	"context"
	"io"
	"log"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

const (
	testImage    = "postgres:16-alpine"
	testDatabase = "loresync"
	testRole     = "loresync"
	testPassword = "loresync"
)

// SetupTestDBContainer starts a throwaway Postgres and returns a pool on an
// empty database. The returned func closes the pool and removes the container.
func SetupTestDBContainer(t *testing.T, ctx context.Context) (*pgxpool.Pool, func()) {
	t.Helper()

	container, err := postgres.Run(ctx, testImage,
		postgres.WithDatabase(testDatabase),
		postgres.WithUsername(testRole),
		postgres.WithPassword(testPassword),
		postgres.BasicWaitStrategies(),
		tc.WithLogger(log.New(io.Discard, "", 0)),
	)
	require.NoError(t, err)

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)

	return pool, func() {
		pool.Close()
		tc.CleanupContainer(t, container)
	}
}

// SetupTestDB is SetupTestDBContainer plus the full migration set. The
// migrations are rolled back once and re-applied so every down step runs.
func SetupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	t.Helper()

	pool, cleanup := SetupTestDBContainer(t, context.Background())

	dsn := pool.Config().ConnString()
	for _, step := range []func() error{
		func() error { return MigrateUp(dsn) },
		func() error { return MigrateDown(dsn, 0) },
		func() error { return MigrateUp(dsn) },
	} {
		if err := step(); err != nil {
			cleanup()
			require.NoError(t, err)
		}
	}

	return pool, cleanup
}

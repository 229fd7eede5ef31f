package schema

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stacklok/loresync/internal/catalog"
	"github.com/stacklok/loresync/internal/db/sqlc"
)

type dbCache struct {
	pool *pgxpool.Pool
}

// NewDBCache returns a cache backed by the schema_cache table.
func NewDBCache(pool *pgxpool.Pool) Cache {
	return &dbCache{pool: pool}
}

func (d *dbCache) Get(ctx context.Context, key Key) (*Entry, error) {
	row, err := sqlc.New(d.pool).GetSchemaCacheEntry(ctx, sqlc.GetSchemaCacheEntryParams{
		UserID:          key.UserID,
		LogicalDatabase: string(key.Database),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotCached
		}
		return nil, fmt.Errorf("failed to read schema cache for %s: %w", key.Database, err)
	}
	if row.TargetID != key.TargetID {
		return nil, ErrNotCached
	}
	return entryFromRow(row)
}

func (d *dbCache) Put(ctx context.Context, entry *Entry) error {
	doc, err := json.Marshal(entry.Schema)
	if err != nil {
		return fmt.Errorf("failed to marshal schema for %s: %w", entry.Key.Database, err)
	}
	err = sqlc.New(d.pool).UpsertSchemaCacheEntry(ctx, sqlc.UpsertSchemaCacheEntryParams{
		UserID:          entry.Key.UserID,
		LogicalDatabase: string(entry.Key.Database),
		TargetID:        entry.Key.TargetID,
		Source:          string(entry.Source),
		Schema:          doc,
		CachedAt:        entry.CachedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to write schema cache for %s: %w", entry.Key.Database, err)
	}
	return nil
}

func (d *dbCache) List(ctx context.Context, userID uuid.UUID) ([]*Entry, error) {
	rows, err := sqlc.New(d.pool).ListSchemaCacheEntries(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list schema cache: %w", err)
	}
	out := make([]*Entry, 0, len(rows))
	for _, row := range rows {
		e, err := entryFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func entryFromRow(row sqlc.SchemaCache) (*Entry, error) {
	db, err := catalog.Parse(row.LogicalDatabase)
	if err != nil {
		return nil, err
	}
	s := &Schema{}
	if err := json.Unmarshal(row.Schema, s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema for %s: %w", db, err)
	}
	return &Entry{
		Key:      Key{UserID: row.UserID, Database: db, TargetID: row.TargetID},
		Schema:   s,
		Source:   Source(row.Source),
		CachedAt: row.CachedAt,
	}, nil
}

package records

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stacklok/loresync/internal/catalog"
)

type pgStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore returns a Store reading the application's tables.
func NewPostgresStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

// listQuery renders each row as jsonb so tables with different direct
// columns share one code path.
func listQuery(db catalog.LogicalDatabase) string {
	q := fmt.Sprintf(
		"SELECT to_jsonb(t) FROM %s t WHERE t.user_id = $1 AND t.notion_page_id IS NULL",
		pgx.Identifier{db.SourceTable()}.Sanitize(),
	)
	if db.Discriminator() != "" {
		q += " AND t.database_name = $2"
	}
	return q + " ORDER BY t.created_at, t.id"
}

func markQuery(db catalog.LogicalDatabase) string {
	q := fmt.Sprintf(
		"UPDATE %s SET notion_page_id = $1, updated_at = now() WHERE id = $2 AND user_id = $3 AND notion_page_id IS NULL",
		pgx.Identifier{db.SourceTable()}.Sanitize(),
	)
	if db.Discriminator() != "" {
		q += " AND database_name = $4"
	}
	return q
}

func (s *pgStore) ListUnsynced(ctx context.Context, userID uuid.UUID, db catalog.LogicalDatabase) ([]Record, error) {
	args := []any{userID}
	if d := db.Discriminator(); d != "" {
		args = append(args, d)
	}

	rows, err := s.pool.Query(ctx, listQuery(db), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", db.SourceTable(), err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", db.SourceTable(), err)
		}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var doc map[string]any
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode %s row: %w", db.SourceTable(), err)
		}
		rec, err := fromDocument(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s rows: %w", db.SourceTable(), err)
	}
	return out, nil
}

func (s *pgStore) MarkSynced(
	ctx context.Context, userID uuid.UUID, db catalog.LogicalDatabase, recordID uuid.UUID, pageID string,
) error {
	args := []any{pageID, recordID, userID}
	if d := db.Discriminator(); d != "" {
		args = append(args, d)
	}
	tag, err := s.pool.Exec(ctx, markQuery(db), args...)
	if err != nil {
		return fmt.Errorf("failed to mark %s as synced: %w", recordID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", recordID, ErrAlreadySynced)
	}
	return nil
}

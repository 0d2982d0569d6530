package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"smartledger/internal/domain/ledger"
	"smartledger/internal/infrastructure/storage"
)

// FetchLatest returns the single latest record of the entity for the
// owner, or (nil, nil) when the owner has no row.
func (s *Storage) FetchLatest(ctx context.Context, entity ledger.Entity, owner string) (*ledger.Record, error) {
	schema, err := checkedSchema(entity)
	if err != nil {
		return nil, err
	}

	cols := fieldColumns(schema)
	query := fmt.Sprintf(
		`SELECT %s, updated_at FROM %s WHERE owner_id = $1 ORDER BY updated_at DESC LIMIT 1`,
		strings.Join(cols, ", "), entity,
	)

	rec := &ledger.Record{Owner: owner, Values: make(ledger.Values, len(cols))}

	dest := make([]any, 0, len(cols)+1)
	raw := make([]any, len(cols))
	for i := range cols {
		dest = append(dest, &raw[i])
	}
	dest = append(dest, &rec.UpdatedAt)

	if err := s.pool.QueryRow(ctx, query, owner).Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		s.log.Error("failed to fetch latest record",
			"entity", entity, "owner", owner, "error", err)
		return nil, storeError("fetch", entity, err)
	}

	for i, f := range schema.Fields {
		rec.Values[f.Name] = raw[i]
	}
	rec.Values = schema.Coerce(rec.Values)
	return rec, nil
}

// Upsert writes values merged with the owner as the full record for that
// owner. One row per owner per table, enforced by the conflict target on
// owner_id; every save replaces the tracked fields entirely.
func (s *Storage) Upsert(ctx context.Context, entity ledger.Entity, owner string, values ledger.Values) (*ledger.Record, error) {
	schema, err := checkedSchema(entity)
	if err != nil {
		return nil, err
	}

	cols := fieldColumns(schema)
	placeholders := make([]string, 0, len(cols)+1)
	updates := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(cols)+1)

	args = append(args, owner)
	placeholders = append(placeholders, "$1")
	for i, f := range schema.Fields {
		args = append(args, values[f.Name])
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+2))
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", f.Name, f.Name))
	}
	updates = append(updates, "updated_at = NOW()")

	query := fmt.Sprintf(
		`INSERT INTO %s (owner_id, %s) VALUES (%s)
		 ON CONFLICT (owner_id) DO UPDATE SET %s
		 RETURNING updated_at`,
		entity, strings.Join(cols, ", "), strings.Join(placeholders, ", "),
		strings.Join(updates, ", "),
	)

	rec := &ledger.Record{Owner: owner, Values: schema.Coerce(values)}
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&rec.UpdatedAt); err != nil {
		s.log.Error("failed to upsert record",
			"entity", entity, "owner", owner, "error", err)
		return nil, storeError("upsert", entity, err)
	}

	return rec, nil
}

// checkedSchema guards the table name interpolated into queries: only
// the five known entities pass.
func checkedSchema(entity ledger.Entity) (ledger.Schema, error) {
	e, err := ledger.ParseEntity(string(entity))
	if err != nil {
		return ledger.Schema{}, err
	}
	return ledger.SchemaOf(e), nil
}

func fieldColumns(schema ledger.Schema) []string {
	cols := make([]string, len(schema.Fields))
	for i, f := range schema.Fields {
		cols[i] = f.Name
	}
	return cols
}

// storeError keeps the backend's human-readable message when Postgres
// supplied one.
func storeError(op string, entity ledger.Entity, err error) *storage.StoreError {
	msg := err.Error()
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Message != "" {
		msg = pgErr.Message
	}
	return &storage.StoreError{Op: op, Entity: entity, Message: msg, Err: err}
}

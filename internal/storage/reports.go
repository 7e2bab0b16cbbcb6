// internal/storage/reports.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"hr-toolkit/internal/model"
)

// SaveReport persists the outcome of a maintenance run.
func (s *Storage) SaveReport(ctx context.Context, r *model.Report) error {
	query := `
		INSERT INTO maintenance_reports (id, kind, collection, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.DB.ExecContext(ctx, query, r.ID, string(r.Kind), r.Collection, []byte(r.Payload), r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// ListReportsPaginated retrieves reports using cursor-based pagination.
// An empty kind lists every kind.
func (s *Storage) ListReportsPaginated(ctx context.Context, kind model.JobKind, cursor string, limit int) ([]model.Report, string, error) {
	query := `
		SELECT id, kind, collection, payload, created_at
		FROM maintenance_reports
		WHERE ($1 = '' OR kind = $1)
		  AND ($2::uuid IS NULL OR id > $2::uuid)
		ORDER BY id
		LIMIT $3
	`

	var cursorArg any
	if cursor != "" {
		if _, err := uuid.Parse(cursor); err != nil {
			return nil, "", fmt.Errorf("invalid cursor: %w", err)
		}
		cursorArg = cursor
	}

	rows, err := s.DB.QueryContext(ctx, query, string(kind), cursorArg, limit)
	if err != nil {
		return nil, "", fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	reports := []model.Report{}
	var lastID uuid.UUID
	for rows.Next() {
		var (
			r       model.Report
			kindStr string
			payload []byte
		)
		if err := rows.Scan(&r.ID, &kindStr, &r.Collection, &payload, &r.CreatedAt); err != nil {
			return nil, "", fmt.Errorf("scan failed: %w", err)
		}
		r.Kind = model.JobKind(kindStr)
		r.Payload = append([]byte(nil), payload...)
		lastID = r.ID
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("iterate reports: %w", err)
	}

	nextCursor := ""
	if len(reports) == limit {
		nextCursor = lastID.String()
	}
	return reports, nextCursor, nil
}

// SaveSchema records the canonical field set of a collection.
func (s *Storage) SaveSchema(ctx context.Context, schema *model.CollectionSchema) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO collection_schemas (collection, fields, absent_fields, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (collection) DO UPDATE
		SET fields = EXCLUDED.fields,
		    absent_fields = EXCLUDED.absent_fields,
		    updated_at = EXCLUDED.updated_at
	`, schema.Collection, pq.Array(schema.Fields), pq.Array(schema.AbsentFields), schema.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save schema: %w", err)
	}
	return nil
}

// GetSchema returns the recorded schema, or ErrNotFound.
func (s *Storage) GetSchema(ctx context.Context, collection string) (*model.CollectionSchema, error) {
	var schema model.CollectionSchema
	err := s.DB.QueryRowContext(ctx, `
		SELECT collection, fields, absent_fields, updated_at
		FROM collection_schemas
		WHERE collection = $1
	`, collection).Scan(&schema.Collection, pq.Array(&schema.Fields), pq.Array(&schema.AbsentFields), &schema.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("schema %s: %w", collection, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schema: %w", err)
	}
	return &schema, nil
}

func (s *Storage) ListSchemas(ctx context.Context) ([]model.CollectionSchema, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT collection, fields, absent_fields, updated_at
		FROM collection_schemas
		ORDER BY collection
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list schemas: %w", err)
	}
	defer rows.Close()

	schemas := []model.CollectionSchema{}
	for rows.Next() {
		var schema model.CollectionSchema
		if err := rows.Scan(&schema.Collection, pq.Array(&schema.Fields), pq.Array(&schema.AbsentFields), &schema.UpdatedAt); err != nil {
			return nil, err
		}
		schemas = append(schemas, schema)
	}
	return schemas, rows.Err()
}

// internal/storage/postgres.go
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"hr-toolkit/internal/model"
)

// IDColumn is the primary key column every collection is expected to have.
const IDColumn = "id"

// DefaultSelectLimit bounds Select when no limit is configured.
const DefaultSelectLimit = 100

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type Storage struct {
	DB    *sql.DB
	limit uint64
}

// NewStorage opens and pings a Postgres database.
func NewStorage(dsn string) (*Storage, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to db: %w", err)
	}
	return New(db), nil
}

// New wraps an already open database handle.
func New(db *sql.DB) *Storage {
	return &Storage{DB: db, limit: DefaultSelectLimit}
}

// SetSelectLimit caps the number of rows Select returns.
func (s *Storage) SetSelectLimit(n int) {
	if n > 0 {
		s.limit = uint64(n)
	}
}

func (s *Storage) Close() error {
	return s.DB.Close()
}

// Insert adds rec to collection and returns the new row id.
func (s *Storage) Insert(ctx context.Context, collection string, rec model.Record) (string, error) {
	table := pq.QuoteIdentifier(collection)

	var (
		query string
		args  []any
	)
	if len(rec) == 0 {
		query = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES RETURNING %s", table, pq.QuoteIdentifier(IDColumn))
	} else {
		keys := rec.Keys()
		cols := make([]string, len(keys))
		vals := make([]any, len(keys))
		for i, k := range keys {
			cols[i] = pq.QuoteIdentifier(k)
			v, err := sqlValue(rec[k])
			if err != nil {
				return "", fmt.Errorf("encode %s.%s: %w", collection, k, err)
			}
			vals[i] = v
		}
		var err error
		query, args, err = psql.Insert(table).
			Columns(cols...).
			Values(vals...).
			Suffix("RETURNING " + pq.QuoteIdentifier(IDColumn)).
			ToSql()
		if err != nil {
			return "", fmt.Errorf("build insert: %w", err)
		}
	}

	var id any
	if err := s.DB.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return "", wrapPQ(collection, "insert", err)
	}
	return idString(id), nil
}

// Select returns rows matching filter, at most the configured limit.
func (s *Storage) Select(ctx context.Context, collection string, filter Filter) ([]model.Record, error) {
	q := psql.Select("*").From(pq.QuoteIdentifier(collection)).Limit(s.limit)
	if len(filter) > 0 {
		q = q.Where(quotedEq(filter))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapPQ(collection, "select", err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: scan failed: %w", collection, err)
	}
	return records, nil
}

// Update applies patch to the row with the given id.
func (s *Storage) Update(ctx context.Context, collection, id string, patch model.Record) error {
	if len(patch) == 0 {
		return fmt.Errorf("%s: empty update", collection)
	}
	set := make(map[string]any, len(patch))
	for k, v := range patch {
		enc, err := sqlValue(v)
		if err != nil {
			return fmt.Errorf("encode %s.%s: %w", collection, k, err)
		}
		set[pq.QuoteIdentifier(k)] = enc
	}
	query, args, err := psql.Update(pq.QuoteIdentifier(collection)).
		SetMap(set).
		Where(sq.Eq{pq.QuoteIdentifier(IDColumn): id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	return s.execAffecting(ctx, collection, "update", query, args)
}

// Delete removes the row with the given id.
func (s *Storage) Delete(ctx context.Context, collection, id string) error {
	query, args, err := psql.Delete(pq.QuoteIdentifier(collection)).
		Where(sq.Eq{pq.QuoteIdentifier(IDColumn): id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	return s.execAffecting(ctx, collection, "delete", query, args)
}

func (s *Storage) execAffecting(ctx context.Context, collection, op, query string, args []any) error {
	res, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return wrapPQ(collection, op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %s rows affected: %w", collection, op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %s: %w", collection, op, ErrNotFound)
	}
	return nil
}

func quotedEq(filter Filter) sq.Eq {
	eq := make(sq.Eq, len(filter))
	for k, v := range filter {
		eq[pq.QuoteIdentifier(k)] = v
	}
	return eq
}

// scanRecords reads every row into a Record keyed by column name.
func scanRecords(rows *sql.Rows) ([]model.Record, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	values := make([]any, len(columns))
	valuePtrs := make([]any, len(columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}

	records := []model.Record{}
	for rows.Next() {
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}
		rec := make(model.Record, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				rec[col] = string(b)
				continue
			}
			rec[col] = values[i]
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// sqlValue encodes nested values as JSON so they land in json/jsonb columns.
func sqlValue(v any) (any, error) {
	switch v.(type) {
	case map[string]any, model.Record, []any, []string, []map[string]any:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	default:
		return v, nil
	}
}

func idString(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(id)
	case string:
		return id
	case time.Time:
		return id.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(id)
	}
}

var columnPattern = regexp.MustCompile(`column "([^"]+)"`)

// wrapPQ turns Postgres errors into rejections the prober can reason about.
func wrapPQ(collection, op string, err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return fmt.Errorf("%s: %s failed: %w", collection, op, err)
	}

	rej := &RejectionError{
		Collection: collection,
		Code:       string(pqErr.Code),
		Message:    pqErr.Message,
		Kind:       rejectionKind(string(pqErr.Code)),
	}
	switch {
	case pqErr.Column != "":
		rej.Column = pqErr.Column
	default:
		if m := columnPattern.FindStringSubmatch(pqErr.Message); m != nil {
			rej.Column = m[1]
		}
	}
	return rej
}

func rejectionKind(code string) model.RejectionKind {
	switch code {
	case "42703", "PGRST204":
		return model.RejectUnknownColumn
	case "23502":
		return model.RejectMissingRequired
	case "22P02", "22007", "22008", "22003", "23514", "23503", "23505":
		return model.RejectInvalidValue
	default:
		return model.RejectOther
	}
}

var _ CollectionStore = (*Storage)(nil)

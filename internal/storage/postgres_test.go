package storage

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hr-toolkit/internal/model"
)

func setupMockDB(t *testing.T) (*Storage, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func TestStorage_Insert(t *testing.T) {
	s, mock := setupMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "profiles" ("email","full_name")`)).
		WithArgs("ada@example.com", "Ada Lovelace").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow([]byte("8d0b7c1e-0000-4000-8000-000000000001")))

	id, err := s.Insert(context.Background(), "profiles", model.Record{
		"full_name": "Ada Lovelace",
		"email":     "ada@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "8d0b7c1e-0000-4000-8000-000000000001", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_InsertEmptyRecordUsesDefaultValues(t *testing.T) {
	s, mock := setupMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "teams" DEFAULT VALUES RETURNING "id"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	id, err := s.Insert(context.Background(), "teams", model.Record{})
	require.NoError(t, err)
	assert.Equal(t, "42", id)
}

func TestStorage_InsertEncodesNestedValuesAsJSON(t *testing.T) {
	s, mock := setupMockDB(t)

	mock.ExpectQuery(`INSERT INTO "wellness_programs"`).
		WithArgs("Yoga", `{"days":["mon","wed"]}`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("w1"))

	_, err := s.Insert(context.Background(), "wellness_programs", model.Record{
		"name":     "Yoga",
		"schedule": map[string]any{"days": []string{"mon", "wed"}},
	})
	require.NoError(t, err)
}

func TestStorage_InsertRejections(t *testing.T) {
	tests := []struct {
		name       string
		pqErr      *pq.Error
		wantKind   model.RejectionKind
		wantColumn string
	}{
		{
			name:       "unknown column parsed from message",
			pqErr:      &pq.Error{Code: "42703", Message: `column "dept" of relation "profiles" does not exist`},
			wantKind:   model.RejectUnknownColumn,
			wantColumn: "dept",
		},
		{
			name:       "not null violation uses error column",
			pqErr:      &pq.Error{Code: "23502", Message: `null value in column "email" violates not-null constraint`, Column: "email"},
			wantKind:   model.RejectMissingRequired,
			wantColumn: "email",
		},
		{
			name:     "bad uuid",
			pqErr:    &pq.Error{Code: "22P02", Message: `invalid input syntax for type uuid: "x"`},
			wantKind: model.RejectInvalidValue,
		},
		{
			name:     "missing table",
			pqErr:    &pq.Error{Code: "42P01", Message: `relation "nope" does not exist`},
			wantKind: model.RejectOther,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := setupMockDB(t)
			mock.ExpectQuery(`INSERT INTO "profiles"`).WillReturnError(tt.pqErr)

			_, err := s.Insert(context.Background(), "profiles", model.Record{"dept": "x"})
			require.Error(t, err)

			var rej *RejectionError
			require.True(t, errors.As(err, &rej))
			assert.Equal(t, tt.wantKind, rej.Kind)
			assert.Equal(t, tt.wantColumn, rej.Column)
			assert.Equal(t, "profiles", rej.Collection)
			assert.Equal(t, string(tt.pqErr.Code), rej.Code)
		})
	}
}

func TestStorage_InsertConnectionErrorIsNotRejection(t *testing.T) {
	s, mock := setupMockDB(t)
	mock.ExpectQuery(`INSERT INTO "profiles"`).WillReturnError(sql.ErrConnDone)

	_, err := s.Insert(context.Background(), "profiles", model.Record{"a": 1})
	require.Error(t, err)

	var rej *RejectionError
	assert.False(t, errors.As(err, &rej))
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.Equal(t, model.RejectOther, Classify(err).Kind)
}

func TestStorage_Select(t *testing.T) {
	s, mock := setupMockDB(t)

	rows := sqlmock.NewRows([]string{"id", "full_name", "team_id"}).
		AddRow([]byte("p1"), []byte("Ada"), nil)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "profiles" WHERE "id" = $1`)).
		WithArgs("p1").
		WillReturnRows(rows)

	records, err := s.Select(context.Background(), "profiles", Filter{"id": "p1"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "p1", records[0]["id"])
	assert.Equal(t, "Ada", records[0]["full_name"])
	assert.Nil(t, records[0]["team_id"])
	assert.True(t, records[0].Has("team_id"))
}

func TestStorage_SelectEmptyReturnsNonNil(t *testing.T) {
	s, mock := setupMockDB(t)
	mock.ExpectQuery(`SELECT \* FROM "profiles"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	records, err := s.Select(context.Background(), "profiles", nil)
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestStorage_Update(t *testing.T) {
	s, mock := setupMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "leave_requests" SET "status" = $1 WHERE "id" = $2`)).
		WithArgs("approved", "l1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.Update(context.Background(), "leave_requests", "l1", model.Record{"status": "approved"}))

	mock.ExpectExec(`UPDATE "leave_requests"`).
		WithArgs("approved", "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := s.Update(context.Background(), "leave_requests", "missing", model.Record{"status": "approved"})
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Error(t, s.Update(context.Background(), "leave_requests", "l1", nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_Delete(t *testing.T) {
	s, mock := setupMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "assets" WHERE "id" = $1`)).
		WithArgs("a1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.Delete(context.Background(), "assets", "a1"))

	mock.ExpectExec(`DELETE FROM "assets"`).
		WithArgs("a1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, s.Delete(context.Background(), "assets", "a1"), ErrNotFound)
}

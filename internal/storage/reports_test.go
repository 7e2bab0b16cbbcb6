package storage

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hr-toolkit/internal/model"
)

func TestSaveReport(t *testing.T) {
	s, mock := setupMockDB(t)

	r := &model.Report{
		ID:         uuid.New(),
		Kind:       model.JobSmoke,
		Collection: "assets",
		Payload:    json.RawMessage(`{"passed":4}`),
		CreatedAt:  time.Now().UTC(),
	}
	mock.ExpectExec(`INSERT INTO maintenance_reports`).
		WithArgs(r.ID, "smoke", "assets", []byte(`{"passed":4}`), r.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, s.SaveReport(context.Background(), r))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListReportsPaginated(t *testing.T) {
	s, mock := setupMockDB(t)
	now := time.Now().UTC()
	id1, id2 := uuid.New(), uuid.New()

	rows := sqlmock.NewRows([]string{"id", "kind", "collection", "payload", "created_at"}).
		AddRow(id1.String(), "discover", "profiles", []byte(`{"matched":true}`), now).
		AddRow(id2.String(), "discover", "teams", []byte(`{"matched":false}`), now)
	mock.ExpectQuery(`SELECT id, kind, collection, payload, created_at\s+FROM maintenance_reports`).
		WithArgs("discover", nil, 2).
		WillReturnRows(rows)

	reports, next, err := s.ListReportsPaginated(context.Background(), model.JobDiscover, "", 2)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, id2.String(), next)
	assert.Equal(t, model.JobDiscover, reports[0].Kind)
	assert.JSONEq(t, `{"matched":true}`, string(reports[0].Payload))

	mock.ExpectQuery(`FROM maintenance_reports`).
		WithArgs("", id2.String(), 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "kind", "collection", "payload", "created_at"}))

	reports, next, err = s.ListReportsPaginated(context.Background(), "", id2.String(), 2)
	require.NoError(t, err)
	assert.Empty(t, reports)
	assert.Empty(t, next)
}

func TestListReportsPaginated_InvalidCursor(t *testing.T) {
	s, _ := setupMockDB(t)
	_, _, err := s.ListReportsPaginated(context.Background(), "", "not-a-uuid", 10)
	assert.Error(t, err)
}

func TestSaveAndGetSchema(t *testing.T) {
	s, mock := setupMockDB(t)
	now := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO collection_schemas`)).
		WithArgs("profiles", sqlmock.AnyArg(), sqlmock.AnyArg(), now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, s.SaveSchema(context.Background(), &model.CollectionSchema{
		Collection:   "profiles",
		Fields:       []string{"email", "full_name"},
		AbsentFields: []string{"dept"},
		UpdatedAt:    now,
	}))

	mock.ExpectQuery(`FROM collection_schemas`).
		WithArgs("profiles").
		WillReturnRows(sqlmock.NewRows([]string{"collection", "fields", "absent_fields", "updated_at"}).
			AddRow("profiles", []byte(`{email,full_name}`), []byte(`{dept}`), now))

	schema, err := s.GetSchema(context.Background(), "profiles")
	require.NoError(t, err)
	assert.Equal(t, []string{"email", "full_name"}, schema.Fields)
	assert.Equal(t, []string{"dept"}, schema.AbsentFields)

	mock.ExpectQuery(`FROM collection_schemas`).
		WithArgs("teams").
		WillReturnRows(sqlmock.NewRows([]string{"collection", "fields", "absent_fields", "updated_at"}))
	_, err = s.GetSchema(context.Background(), "teams")
	assert.ErrorIs(t, err, ErrNotFound)
}

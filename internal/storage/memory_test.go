package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hr-toolkit/internal/model"
)

func TestMemoryStore_PolicyRejections(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	m.SetPolicy("profiles", Policy{
		Required: []string{"email"},
		Allowed:  []string{"email", "full_name"},
	})

	_, err := m.Insert(ctx, "profiles", model.Record{"full_name": "Ada"})
	rej := Classify(err)
	require.NotNil(t, rej)
	assert.Equal(t, model.RejectMissingRequired, rej.Kind)
	assert.Equal(t, "email", rej.Column)

	_, err = m.Insert(ctx, "profiles", model.Record{"email": "a@x", "dept": "HR"})
	rej = Classify(err)
	assert.Equal(t, model.RejectUnknownColumn, rej.Kind)
	assert.Equal(t, "dept", rej.Column)

	id, err := m.Insert(ctx, "profiles", model.Record{"email": "a@x"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, 1, m.Len("profiles"))
}

func TestMemoryStore_AcceptPredicate(t *testing.T) {
	m := NewMemoryStore()
	denied := errors.New("denied")
	m.SetPolicy("assets", Policy{Accept: func(r model.Record) error {
		if r["tag"] == "bad" {
			return denied
		}
		return nil
	}})

	_, err := m.Insert(context.Background(), "assets", model.Record{"tag": "bad"})
	assert.ErrorIs(t, err, denied)
	_, err = m.Insert(context.Background(), "assets", model.Record{"tag": "ok"})
	assert.NoError(t, err)
}

func TestMemoryStore_CRUD(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	id, err := m.Insert(ctx, "leave_requests", model.Record{"status": "pending", "days": 3})
	require.NoError(t, err)

	rows, err := m.Select(ctx, "leave_requests", Filter{"id": id})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "pending", rows[0]["status"])

	require.NoError(t, m.Update(ctx, "leave_requests", id, model.Record{"status": "approved"}))
	rows, _ = m.Select(ctx, "leave_requests", Filter{"status": "approved"})
	assert.Len(t, rows, 1)

	rows[0]["status"] = "mutated"
	rows, _ = m.Select(ctx, "leave_requests", Filter{"id": id})
	assert.Equal(t, "approved", rows[0]["status"], "select returns copies")

	require.NoError(t, m.Delete(ctx, "leave_requests", id))
	assert.ErrorIs(t, m.Delete(ctx, "leave_requests", id), ErrNotFound)
	assert.ErrorIs(t, m.Update(ctx, "leave_requests", id, model.Record{"status": "x"}), ErrNotFound)
	assert.Equal(t, 0, m.Len("leave_requests"))
}

func TestMemoryStore_DuplicateID(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	_, err := m.Insert(ctx, "teams", model.Record{"id": "t1"})
	require.NoError(t, err)
	_, err = m.Insert(ctx, "teams", model.Record{"id": "t1"})
	assert.Equal(t, model.RejectInvalidValue, Classify(err).Kind)
}

func TestClassify(t *testing.T) {
	assert.Nil(t, Classify(nil))
	assert.Equal(t, model.RejectOther, Classify(errors.New("boom")).Kind)

	rej := &RejectionError{Kind: model.RejectUnknownColumn, Column: "x"}
	wrapped := errors.Join(errors.New("context"), rej)
	assert.Same(t, rej, Classify(wrapped))
}

package seed

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hr-toolkit/internal/logger"
	"hr-toolkit/internal/model"
	"hr-toolkit/internal/storage"
)

func orgFixture() model.Fixture {
	return model.Fixture{
		Name: "org",
		Steps: []model.SeedStep{
			{Collection: "departments", Key: "eng", Record: model.Record{"name": "Engineering"}},
			{Collection: "teams", Key: "platform", Record: model.Record{"name": "Platform", "department_id": "@departments/eng"}},
			{Collection: "profiles", Key: "ada", Record: model.Record{"full_name": "Ada", "team_id": "@teams/platform"}},
		},
	}
}

func TestLoad_ResolvesReferences(t *testing.T) {
	store := storage.NewMemoryStore()
	loader := NewLoader(store, logger.NewNop())

	summary, err := loader.Load(context.Background(), orgFixture())
	require.NoError(t, err)
	require.Len(t, summary.Inserted, 3)
	assert.Empty(t, summary.Failed)
	assert.Equal(t, "org", summary.Fixture)

	deptID := summary.Inserted[0].ID
	teamID := summary.Inserted[1].ID

	teams, err := store.Select(context.Background(), "teams", storage.Filter{"id": teamID})
	require.NoError(t, err)
	require.Len(t, teams, 1)
	assert.Equal(t, deptID, teams[0]["department_id"])

	people, err := store.Select(context.Background(), "profiles", storage.Filter{"team_id": teamID})
	require.NoError(t, err)
	assert.Len(t, people, 1)
}

func TestLoad_SoftFailures(t *testing.T) {
	store := storage.NewMemoryStore()
	store.SetPolicy("profiles", storage.Policy{Required: []string{"email"}})
	loader := NewLoader(store, logger.NewNop())

	fx := model.Fixture{Steps: []model.SeedStep{
		{Collection: "profiles", Key: "nobody", Record: model.Record{"full_name": "No Email"}},
		{Collection: "leave_requests", Key: "orphan", Record: model.Record{"employee_id": "@profiles/nobody"}},
		{Collection: "departments", Key: "ops", Record: model.Record{"name": "Ops"}},
	}}

	summary, err := loader.Load(context.Background(), fx)
	require.NoError(t, err)
	require.Len(t, summary.Failed, 2)
	assert.Equal(t, "nobody", summary.Failed[0].Key)
	assert.Contains(t, summary.Failed[0].Error, "email")
	assert.Equal(t, "orphan", summary.Failed[1].Key)
	assert.Contains(t, summary.Failed[1].Error, "unresolved reference")

	require.Len(t, summary.Inserted, 1)
	assert.Equal(t, "ops", summary.Inserted[0].Key)
	assert.Equal(t, 0, store.Len("leave_requests"))
}

func TestLoad_DoesNotMutateFixture(t *testing.T) {
	fx := orgFixture()
	_, err := NewLoader(storage.NewMemoryStore(), logger.NewNop()).Load(context.Background(), fx)
	require.NoError(t, err)
	assert.Equal(t, "@departments/eng", fx.Steps[1].Record["department_id"])
}

func TestLoad_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := storage.NewMemoryStore()
	summary, err := NewLoader(store, logger.NewNop()).Load(ctx, orgFixture())
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, summary.Inserted)
	assert.Equal(t, 0, store.Len("departments"))
}

type failingDelete struct {
	*storage.MemoryStore
	order []string
	fail  string
}

func (s *failingDelete) Delete(ctx context.Context, c, id string) error {
	s.order = append(s.order, c)
	if c == s.fail {
		return errors.New("permission denied")
	}
	return s.MemoryStore.Delete(ctx, c, id)
}

func TestPurge_ReverseOrder(t *testing.T) {
	store := &failingDelete{MemoryStore: storage.NewMemoryStore()}
	loader := NewLoader(store, logger.NewNop())

	summary, err := loader.Load(context.Background(), orgFixture())
	require.NoError(t, err)

	require.NoError(t, loader.Purge(context.Background(), summary))
	assert.Equal(t, []string{"profiles", "teams", "departments"}, store.order)
	assert.Equal(t, 0, store.Len("teams"))

	// rows already gone are not an error
	store.order = nil
	require.NoError(t, loader.Purge(context.Background(), summary))
}

func TestPurge_ReportsFailures(t *testing.T) {
	store := &failingDelete{MemoryStore: storage.NewMemoryStore(), fail: "teams"}
	loader := NewLoader(store, logger.NewNop())

	summary, err := loader.Load(context.Background(), orgFixture())
	require.NoError(t, err)

	err = loader.Purge(context.Background(), summary)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "teams/platform")
	assert.Equal(t, 0, store.Len("departments"))
	assert.Equal(t, 1, store.Len("teams"))
}

func TestParseFixture(t *testing.T) {
	src := `
name: tiny
steps:
  - collection: departments
    key: hr
    record:
      name: HR
`
	fx, err := ParseFixture(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, "tiny", fx.Name)
	require.Len(t, fx.Steps, 1)
	assert.Equal(t, "HR", fx.Steps[0].Record["name"])

	_, err = ParseFixture(strings.NewReader("steps:\n  - key: x\n"))
	assert.ErrorContains(t, err, "collection is required")

	_, err = ParseFixture(strings.NewReader("steps: [unterminated"))
	assert.Error(t, err)
}

func TestDemoFixtureLoads(t *testing.T) {
	fx, err := DemoFixture()
	require.NoError(t, err)
	assert.NotEmpty(t, fx.Steps)

	summary, err := NewLoader(storage.NewMemoryStore(), logger.NewNop()).Load(context.Background(), fx)
	require.NoError(t, err)
	assert.Empty(t, summary.Failed)
	assert.Len(t, summary.Inserted, len(fx.Steps))
}

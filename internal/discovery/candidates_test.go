package discovery

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCandidates(t *testing.T) {
	f, err := ParseCandidates(strings.NewReader(`
collection: leave_requests
candidates:
  - employee_id: 00000000-0000-0000-0000-000000000001
    leave_type: annual
  - employee_id: 00000000-0000-0000-0000-000000000001
    type: annual
    days: 3
`))
	require.NoError(t, err)
	assert.Equal(t, "leave_requests", f.Collection)
	require.Len(t, f.Candidates, 2)
	assert.Equal(t, "annual", f.Candidates[0]["leave_type"])
	assert.Equal(t, 3, f.Candidates[1]["days"])
}

func TestParseCandidates_RequiresCollection(t *testing.T) {
	_, err := ParseCandidates(strings.NewReader(`candidates: [{a: 1}]`))
	assert.Error(t, err)
}

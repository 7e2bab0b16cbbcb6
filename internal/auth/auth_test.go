package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokens_RoundTrip(t *testing.T) {
	tokens := NewTokens("test-secret", time.Hour)

	tok, err := tokens.GenerateToken("ops@example.com")
	require.NoError(t, err)

	claims, err := tokens.ValidateToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", claims.Operator)
	assert.Equal(t, "ops@example.com", claims.Subject)
}

func TestTokens_Rejects(t *testing.T) {
	tokens := NewTokens("test-secret", time.Hour)
	tok, err := tokens.GenerateToken("ops")
	require.NoError(t, err)

	_, err = NewTokens("other-secret", time.Hour).ValidateToken(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = tokens.ValidateToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := NewTokens("test-secret", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	old, err := expired.GenerateToken("ops")
	require.NoError(t, err)
	_, err = tokens.ValidateToken(old)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokens_NoSecret(t *testing.T) {
	tokens := NewTokens("", 0)
	_, err := tokens.GenerateToken("ops")
	assert.ErrorIs(t, err, ErrNoSecret)
	_, err = tokens.ValidateToken("x")
	assert.ErrorIs(t, err, ErrNoSecret)

	_, err = NewTokens("s", 0).GenerateToken("")
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	tokens := NewTokens("test-secret", time.Hour)
	h := tokens.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(GetOperator(r)))
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	tok, err := tokens.GenerateToken("ops")
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ops", rec.Body.String())
}

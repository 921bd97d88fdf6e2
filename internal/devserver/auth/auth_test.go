package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndValidate(t *testing.T) {
	i := NewIssuer("secret", time.Hour)

	tok, err := i.Issue("u1", false)
	require.NoError(t, err)

	claims, err := i.Validate(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.False(t, claims.Bot)
	require.NotNil(t, claims.ExpiresAt)
}

func TestBotTokensDoNotExpire(t *testing.T) {
	i := NewIssuer("secret", time.Minute)
	tok, err := i.Issue("bot", true)
	require.NoError(t, err)

	i.now = func() time.Time { return time.Now().Add(24 * time.Hour) }
	claims, err := i.Validate(tok)
	require.NoError(t, err)
	assert.True(t, claims.Bot)
	assert.Nil(t, claims.ExpiresAt)
}

func TestExpiredAndForeignTokensRejected(t *testing.T) {
	i := NewIssuer("secret", time.Minute)
	tok, err := i.Issue("u1", false)
	require.NoError(t, err)

	i.now = func() time.Time { return time.Now().Add(time.Hour) }
	_, err = i.Validate(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewIssuer("other", time.Minute)
	_, err = other.Validate(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswords(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)

	assert.NoError(t, CheckPassword(hash, "hunter2"))
	assert.ErrorIs(t, CheckPassword(hash, "wrong"), ErrInvalidCredentials)
	assert.ErrorIs(t, CheckPassword("", "anything"), ErrInvalidCredentials)
}

func TestMiddleware(t *testing.T) {
	i := NewIssuer("secret", time.Hour)
	tok, err := i.Issue("u1", false)
	require.NoError(t, err)

	var seen string
	h := Middleware(i)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", seen)

	seen = ""
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws?token="+tok, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", seen)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

package session

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	issuer := NewIssuer("secret", "todo-widget", time.Hour)

	token, id, err := issuer.Issue(42)
	require.NoError(t, err)
	assert.EqualValues(t, 42, id.UserID)
	assert.NotEmpty(t, id.SessionID)

	parsed, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, again, err := issuer.Issue(42)
	require.NoError(t, err)
	assert.NotEqual(t, id.SessionID, again.SessionID, "every issue starts a new session")
}

func TestIssueRejectsZeroUser(t *testing.T) {
	_, _, err := NewIssuer("secret", "todo-widget", time.Hour).Issue(0)
	assert.Error(t, err)
}

func TestParseRejects(t *testing.T) {
	issuer := NewIssuer("secret", "todo-widget", time.Hour)
	valid, _, err := issuer.Issue(7)
	require.NoError(t, err)

	expiredIssuer := NewIssuer("secret", "todo-widget", time.Hour)
	expiredIssuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _, err := expiredIssuer.Issue(7)
	require.NoError(t, err)

	otherSecret, _, err := NewIssuer("other", "todo-widget", time.Hour).Issue(7)
	require.NoError(t, err)

	otherIssuer, _, err := NewIssuer("secret", "someone-else", time.Hour).Issue(7)
	require.NoError(t, err)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Issuer:    "todo-widget",
		Subject:   "7",
		ID:        "s",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]string{
		"garbage":      "not-a-jwt",
		"expired":      expired,
		"wrong secret": otherSecret,
		"wrong issuer": otherIssuer,
		"none alg":     noneAlg,
		"tampered":     valid + "x",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := issuer.Parse(token)
			assert.ErrorIs(t, err, ErrInvalidBearer)
		})
	}
}

func TestFromRequest(t *testing.T) {
	issuer := NewIssuer("secret", "todo-widget", time.Hour)
	token, id, err := issuer.Issue(3)
	require.NoError(t, err)

	r := httptest.NewRequest("GET", "/", nil)
	_, err = issuer.FromRequest(r)
	assert.ErrorIs(t, err, ErrMissingBearer)

	r.Header.Set("Authorization", "Basic abc")
	_, err = issuer.FromRequest(r)
	assert.ErrorIs(t, err, ErrInvalidBearer)

	r.Header.Set("Authorization", "Bearer "+token)
	got, err := issuer.FromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

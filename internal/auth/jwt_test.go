package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueParseRoundTrip(t *testing.T) {
	pair, err := Issue("kavya", "admin", "sess-1", "library-attendance", "secret", time.Hour, 24*time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	claims, err := Parse(pair.AccessToken, "secret", "library-attendance")
	require.NoError(t, err)
	assert.Equal(t, "kavya", claims.Username)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "sess-1", claims.SessionID)
}

func TestParseRejectsWrongKey(t *testing.T) {
	pair, err := Issue("kavya", "admin", "", "library-attendance", "secret", time.Hour, time.Hour)
	require.NoError(t, err)
	_, err = Parse(pair.AccessToken, "other-secret", "library-attendance")
	assert.Error(t, err)
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	pair, err := Issue("kavya", "admin", "", "someone-else", "secret", time.Hour, time.Hour)
	require.NoError(t, err)
	_, err = Parse(pair.AccessToken, "secret", "library-attendance")
	assert.Error(t, err)
}

func TestParseRejectsExpired(t *testing.T) {
	pair, err := Issue("kavya", "admin", "", "library-attendance", "secret", -time.Minute, time.Hour)
	require.NoError(t, err)
	_, err = Parse(pair.AccessToken, "secret", "library-attendance")
	assert.Error(t, err)
}

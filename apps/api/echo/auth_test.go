package echoapi

import (
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/miradi/core/user"
)

func parseClaims(t *testing.T, ti *tokenIssuer, token string) *Claims {
	claims := new(Claims)
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) { return ti.key, nil })
	require.NoError(t, err)
	require.True(t, parsed.Valid)
	return claims
}

func Test_tokenIssuer(t *testing.T) {
	now := time.Now()
	clock := now
	// jwt-go validates exp/iat against its own clock
	jwt.TimeFunc = func() time.Time { return clock }
	t.Cleanup(func() { jwt.TimeFunc = time.Now })

	ti := &tokenIssuer{
		key:        []byte("secret"),
		issuer:     "Miradi",
		ttl:        time.Hour,
		refreshTTL: 24 * time.Hour,
		now:        func() time.Time { return clock },
	}
	usr := user.User{ID: "ana", Name: "Ana", Email: "ana@test.cd", Role: user.RoleProfesor}

	token, err := ti.issue(usr)
	require.NoError(t, err)
	claims := parseClaims(t, ti, token)
	assert.Equal(t, "ana", claims.Subject)
	assert.Equal(t, tokenAudience, claims.Audience)
	assert.Equal(t, user.RoleProfesor, claims.Role)
	assert.Equal(t, now.Unix(), claims.OrigIssuedAt)
	assert.Equal(t, now.Add(time.Hour).Unix(), claims.ExpiresAt)

	// refreshing within the window keeps the first login time
	later := now.Add(20 * time.Hour)
	clock = later
	refreshed, err := ti.refresh(*claims, usr)
	require.NoError(t, err)
	refreshedClaims := parseClaims(t, ti, refreshed)
	assert.Equal(t, now.Unix(), refreshedClaims.OrigIssuedAt)
	assert.Equal(t, later.Add(time.Hour).Unix(), refreshedClaims.ExpiresAt)

	clock = now.Add(25 * time.Hour)
	_, err = ti.refresh(*refreshedClaims, usr)
	assert.Equal(t, errRefreshExpired, err)

	clock = now
	forged := &tokenIssuer{key: []byte("other"), ttl: time.Hour, now: time.Now}
	forgedToken, err := forged.issue(usr)
	require.NoError(t, err)
	_, err = jwt.ParseWithClaims(forgedToken, new(Claims), func(*jwt.Token) (interface{}, error) { return ti.key, nil })
	assert.Error(t, err)
}

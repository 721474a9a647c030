package echoapi

import (
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/trackwise/core"
	"github.com/trezcool/trackwise/core/user"
)

func configureTestAuth(t *testing.T) {
	t.Helper()
	ConfigureAuth(&core.Config{
		AppName:              "TrackWise",
		SecretKey:            []byte("test-secret-key"),
		TokenExpirationDelta: 30 * 24 * time.Hour,
	})
}

func TestTokenRoundTrip(t *testing.T) {
	configureTestAuth(t)
	usr := user.User{ID: "u-1", Name: "Awe", Email: "awe@test.cd"}

	token, err := GenerateToken(GetUserClaims(usr))
	require.NoError(t, err)

	claims, err := VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, usr.ID, claims.Subject)
	assert.Equal(t, usr.Name, claims.Name)
	assert.Equal(t, usr.Email, claims.Email)
	assert.Equal(t, "TrackWise", claims.Issuer)
}

func TestVerifyToken_Expired(t *testing.T) {
	configureTestAuth(t)
	expirationDelta = -time.Hour
	token, err := GenerateToken(GetUserClaims(user.User{ID: "u-1"}))
	require.NoError(t, err)
	expirationDelta = 30 * 24 * time.Hour

	_, err = VerifyToken(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyToken_Malformed(t *testing.T) {
	configureTestAuth(t)

	_, err := VerifyToken("not.a.token")
	assert.ErrorIs(t, err, ErrTokenMalformed)

	_, err = VerifyToken("")
	assert.ErrorIs(t, err, ErrTokenMalformed)

	// a token signed with another key is as good as garbage
	other := jwt.NewWithClaims(jwt.SigningMethodHS256, GetUserClaims(user.User{ID: "u-1"}))
	forged, err := other.SignedString([]byte("other-secret"))
	require.NoError(t, err)
	_, err = VerifyToken(forged)
	assert.ErrorIs(t, err, ErrTokenMalformed)

	// alg substitution is rejected
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, GetUserClaims(user.User{ID: "u-1"}))
	noneToken, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = VerifyToken(noneToken)
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

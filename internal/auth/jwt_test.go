package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banpacifico/core-api/internal/domain"
)

const testSecret = "test-secret"

func testActor() domain.Actor {
	return domain.Actor{ID: uuid.New(), Email: "gestor@banpacifico.cr", Role: domain.RoleGestor}
}

func TestGenerateAndValidateToken(t *testing.T) {
	actor := testActor()

	token, err := GenerateToken(actor, testSecret, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	parsed, err := ValidateToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, actor.ID, parsed.ID)
	assert.Equal(t, actor.Email, parsed.Email)
	assert.Equal(t, actor.Role, parsed.Role)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	token, err := GenerateToken(testActor(), testSecret, time.Hour)
	require.NoError(t, err)

	_, err = ValidateToken(token, "other-secret")
	require.Error(t, err)
}

func TestValidateToken_Expired(t *testing.T) {
	token, err := GenerateToken(testActor(), testSecret, -time.Minute)
	require.NoError(t, err)

	_, err = ValidateToken(token, testSecret)
	require.Error(t, err)
}

func TestValidateToken_Garbage(t *testing.T) {
	_, err := ValidateToken("not.a.token", testSecret)
	require.Error(t, err)
}

func TestValidateToken_InvalidRole(t *testing.T) {
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserID: uuid.NewString(),
		Email:  "x@banpacifico.cr",
		Role:   "Superusuario",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = ValidateToken(token, testSecret)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid role")
}

func TestValidateToken_RejectsUnsignedToken(t *testing.T) {
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserID: uuid.NewString(),
		Role:   string(domain.RoleCliente),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ValidateToken(token, testSecret)
	require.Error(t, err)
}

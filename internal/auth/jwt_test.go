package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func contextWithToken(t *testing.T, signed string) echo.Context {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	token, err := jwt.Parse(signed, func(token *jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	})
	require.NoError(t, err)
	c.Set("user", token)
	return c
}

func TestGenerateToken(t *testing.T) {
	signed, expiresAt, err := GenerateToken("admin", testSecret, time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, signed)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	token, err := jwt.Parse(signed, func(token *jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	})
	require.NoError(t, err)
	claims, ok := token.Claims.(jwt.MapClaims)
	require.True(t, ok)
	assert.Equal(t, "admin", claims[claimSubject])
	assert.Equal(t, "admin", claims[claimUserID])
	assert.Equal(t, ScopeAdmin, claims[claimScope])
}

func TestGenerateTokenValidation(t *testing.T) {
	_, _, err := GenerateToken("", testSecret, time.Hour)
	assert.Error(t, err)

	_, _, err = GenerateToken("admin", "", time.Hour)
	assert.Error(t, err)

	_, _, err = GenerateToken("admin", testSecret, 0)
	assert.Error(t, err)
}

func TestUserIDFromContext(t *testing.T) {
	signed, _, err := GenerateToken("user-123", testSecret, time.Hour)
	require.NoError(t, err)

	c := contextWithToken(t, signed)
	userID, err := UserIDFromContext(c)
	require.NoError(t, err)
	assert.Equal(t, "user-123", userID)
}

func TestUserIDFromContextMissingToken(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	_, err := UserIDFromContext(c)
	require.Error(t, err)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
}

func TestRequireAdmin(t *testing.T) {
	signed, _, err := GenerateToken("admin", testSecret, time.Hour)
	require.NoError(t, err)

	c := contextWithToken(t, signed)
	assert.NoError(t, RequireAdmin(c))
}

func TestRequireAdminRejectsUnscopedToken(t *testing.T) {
	claims := jwt.MapClaims{
		claimSubject: "someone",
		"iat":        time.Now().Unix(),
		"exp":        time.Now().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	c := contextWithToken(t, signed)
	err = RequireAdmin(c)
	require.Error(t, err)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, httpErr.Code)
}

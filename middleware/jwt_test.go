package middleware

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

var testKey = []byte("test-key")

func runAdminJWT(t *testing.T, key []byte, header string) (echo.Context, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/setup-database/1", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	c := e.NewContext(req, httptest.NewRecorder())

	err := AdminJWT(key)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})(c)
	return c, err
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	return he.Code
}

func TestAdminJWT_Disabled(t *testing.T) {
	_, err := runAdminJWT(t, nil, "")
	assert.NoError(t, err)
}

func TestAdminJWT_Valid(t *testing.T) {
	tok, err := NewAdminToken(testKey, "ops", time.Hour)
	require.NoError(t, err)

	c, err := runAdminJWT(t, testKey, "Bearer "+tok)
	require.NoError(t, err)
	assert.Equal(t, "ops", c.Get("admin"))

	_, err = runAdminJWT(t, testKey, tok)
	assert.NoError(t, err)
}

func TestAdminJWT_Rejects(t *testing.T) {
	wrongKey, err := NewAdminToken([]byte("other"), "ops", time.Hour)
	require.NoError(t, err)
	expired, err := NewAdminToken(testKey, "ops", -time.Minute)
	require.NoError(t, err)

	for _, header := range []string{"", wrongKey, expired, "garbage"} {
		_, err := runAdminJWT(t, testKey, header)
		assert.Equal(t, http.StatusUnauthorized, statusOf(t, err), "header %q", header)
	}
}

func TestAdminJWT_WrongRole(t *testing.T) {
	claims := &Claims{Role: "reader", RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testKey)
	require.NoError(t, err)

	_, err = runAdminJWT(t, testKey, tok)
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))
}

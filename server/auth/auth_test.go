package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestAccessTokenRoundTrip(t *testing.T) {
	token, err := GenerateAccessToken("user-42", "ana", testSecret)
	require.NoError(t, err)

	userID, err := Authenticate(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "user-42", userID)
}

func TestAuthenticateRejectsBadTokens(t *testing.T) {
	valid, err := GenerateAccessToken("user-42", "ana", testSecret)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", mustSign(t, "user-42", "other-secret")},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Authenticate(tt.token, testSecret)
			assert.Error(t, err)
		})
	}

	// sanity: the valid token still verifies
	_, err = Authenticate(valid, testSecret)
	assert.NoError(t, err)
}

func TestMiddleware(t *testing.T) {
	e := echo.New()
	handler := Middleware(testSecret)(func(c echo.Context) error {
		return c.String(http.StatusOK, UserID(c))
	})

	t.Run("valid bearer token", func(t *testing.T) {
		token, err := GenerateAccessToken("user-7", "ana", testSecret)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/chats", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		require.NoError(t, handler(c))
		assert.Equal(t, "user-7", rec.Body.String())
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/chats", nil)
		c := e.NewContext(req, httptest.NewRecorder())

		err := handler(c)
		httpErr := &echo.HTTPError{}
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/chats", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		c := e.NewContext(req, httptest.NewRecorder())

		err := handler(c)
		httpErr := &echo.HTTPError{}
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/chats", nil)
		req.Header.Set("Authorization", "Bearer bogus")
		c := e.NewContext(req, httptest.NewRecorder())

		err := handler(c)
		httpErr := &echo.HTTPError{}
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
	})
}

func mustSign(t *testing.T, userID, secret string) string {
	t.Helper()
	token, err := GenerateAccessToken(userID, "ana", secret)
	require.NoError(t, err)
	return token
}

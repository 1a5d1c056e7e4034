package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/abduss/imagehost/internal/config"
	"github.com/abduss/imagehost/internal/i18n"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPassword = "StrongPass1!"

func newTestService(t *testing.T) *Service {
	t.Helper()
	hash, err := HashPassword(testPassword, 4)
	require.NoError(t, err)

	return NewService(config.AuthConfig{
		TokenSecret:       "token-secret",
		AdminPasswordHash: hash,
		TokenTTL:          time.Minute,
		BcryptCost:        4,
	})
}

func TestIssueAndValidateToken(t *testing.T) {
	service := newTestService(t)

	token, err := service.IssueToken(testPassword)
	require.NoError(t, err)
	assert.NotEmpty(t, token.AccessToken)
	assert.WithinDuration(t, time.Now().Add(time.Minute), token.ExpiresAt, 5*time.Second)

	assert.NoError(t, service.ValidateToken(token.AccessToken))
}

func TestIssueTokenInvalidPassword(t *testing.T) {
	service := newTestService(t)

	_, err := service.IssueToken("wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = service.IssueToken(strings.Repeat("a", 73))
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	service := newTestService(t)
	token, err := service.IssueToken(testPassword)
	require.NoError(t, err)

	service.nowFunc = func() time.Time { return time.Now().Add(2 * time.Minute) }
	assert.ErrorIs(t, service.ValidateToken(token.AccessToken), ErrUnauthorized)
}

func TestValidateTokenRejectsForeignSecret(t *testing.T) {
	service := newTestService(t)
	other := newTestService(t)
	other.cfg.TokenSecret = "other-secret"

	token, err := other.IssueToken(testPassword)
	require.NoError(t, err)

	assert.ErrorIs(t, service.ValidateToken(token.AccessToken), ErrUnauthorized)
	assert.ErrorIs(t, service.ValidateToken(""), ErrUnauthorized)
	assert.ErrorIs(t, service.ValidateToken("not.a.jwt"), ErrUnauthorized)
}

func TestDisabledService(t *testing.T) {
	service := NewService(config.AuthConfig{TokenTTL: time.Minute})

	assert.False(t, service.Enabled())
	_, err := service.IssueToken(testPassword)
	assert.ErrorIs(t, err, ErrAuthDisabled)
}

func TestHashPassword(t *testing.T) {
	_, err := HashPassword("", 4)
	assert.Error(t, err)

	_, err = HashPassword(strings.Repeat("x", 73), 4)
	assert.ErrorIs(t, err, ErrPasswordTooLong)

	hash, err := HashPassword("secret", 4)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$2a$04$"))
}

func newTestRouter(t *testing.T, service *Service) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	bundle, err := i18n.NewBundle("en")
	require.NoError(t, err)

	r := gin.New()
	api := r.Group("/api")
	RegisterRoutes(api, service, bundle)
	api.DELETE("/images/:id", RequireAdmin(service, bundle), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestRequireAdmin(t *testing.T) {
	service := newTestService(t)
	r := newTestRouter(t, service)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/images/1", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "Unauthorized")

	token, err := service.IssueToken(testPassword)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodDelete, "/api/images/1", nil)
	req.Header.Set("Authorization", "bearer "+token.AccessToken)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRequireAdminPassesWhenDisabled(t *testing.T) {
	r := newTestRouter(t, NewService(config.AuthConfig{}))

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/images/1", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/auth/token", strings.NewReader(`{"password":"x"}`)))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestIssueTokenEndpoint(t *testing.T) {
	r := newTestRouter(t, newTestService(t))

	cases := []struct {
		name string
		body string
		want int
	}{
		{"ok", `{"password":"` + testPassword + `"}`, http.StatusOK},
		{"wrong password", `{"password":"nope"}`, http.StatusUnauthorized},
		{"missing password", `{}`, http.StatusBadRequest},
		{"malformed", `{`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/auth/token", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)
			assert.Equal(t, tc.want, rr.Code)
			if tc.want == http.StatusOK {
				assert.Contains(t, rr.Body.String(), `"token_type":"Bearer"`)
			}
		})
	}
}

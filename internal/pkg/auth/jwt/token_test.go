package jwt_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mindease/internal/pkg/auth/jwt"
)

const testSecret = "test-secret"

func TestGenerateAndParseToken(t *testing.T) {
	req := require.New(t)

	token, err := jwt.GenerateToken(&jwt.Payload{UserID: "u-1", Role: "student"}, testSecret, time.Minute)
	req.NoError(err)
	req.NotEmpty(token)

	parsed, err := jwt.ParseToken(token, testSecret)
	req.NoError(err)
	req.Equal("u-1", parsed.UserID)
	req.Equal("student", parsed.Role)
	req.Equal(jwt.TokenIssuer, parsed.Issuer)
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	req := require.New(t)

	token, err := jwt.GenerateToken(&jwt.Payload{UserID: "u-1"}, testSecret, time.Minute)
	req.NoError(err)

	_, err = jwt.ParseToken(token, "another-secret")
	req.Error(err)
}

func TestParseTokenRejectsExpired(t *testing.T) {
	req := require.New(t)

	token, err := jwt.GenerateToken(&jwt.Payload{UserID: "u-1"}, testSecret, -time.Minute)
	req.NoError(err)

	_, err = jwt.ParseToken(token, testSecret)
	req.Error(err)
}

func TestIdentityExtractorMiddleware(t *testing.T) {
	req := require.New(t)

	token, err := jwt.GenerateToken(&jwt.Payload{UserID: "u-1", Role: "counsellor"}, testSecret, time.Minute)
	req.NoError(err)

	var payload *jwt.Payload
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload = jwt.GetPayloadFromContext(r)
	})
	handler := jwt.IdentityExtractorMiddleware(testSecret)(next)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), r)

	req.NotNil(payload)
	req.Equal("u-1", payload.UserID)
	req.Equal("counsellor", payload.Role)
}

func TestIdentityExtractorMiddlewareAnonymousOnBadToken(t *testing.T) {
	req := require.New(t)

	called := false
	var payload *jwt.Payload
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		payload = jwt.GetPayloadFromContext(r)
	})
	handler := jwt.IdentityExtractorMiddleware(testSecret)(next)

	// No header: the request proceeds anonymously.
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	handler.ServeHTTP(httptest.NewRecorder(), r)
	req.True(called)
	req.Nil(payload)

	// Garbage token: same outcome, never an interruption.
	called = false
	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer not-a-token")
	handler.ServeHTTP(httptest.NewRecorder(), r)
	req.True(called)
	req.Nil(payload)
}

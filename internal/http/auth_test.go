package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"energytrack/internal/apperr"
	"energytrack/internal/auth"
)

type stubVerifier struct {
	claims *auth.Claims
	err    error
}

func (s stubVerifier) Verify(string) (*auth.Claims, error) { return s.claims, s.err }

type stubStore struct {
	identity auth.Identity
	err      error
}

func (s stubStore) ResolveIdentity(context.Context, string) (auth.Identity, error) {
	return s.identity, s.err
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }

func urlQuery(v string) string { return url.QueryEscape(v) }

func newAuthRouter(v TokenVerifier, st IdentityStore) (*gin.Engine, *bool) {
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	reached := false
	r := gin.New()
	r.Use(AuthMiddleware(v, st, logger))
	r.GET("/whoami", func(c *gin.Context) {
		reached = true
		rc, found := auth.FromContext(c.Request.Context())
		if found {
			c.JSON(http.StatusOK, gin.H{"user": rc.Identity().Username, "authorities": rc.Authorities()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": ""})
	})
	return r, &reached
}

func callWhoami(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func validClaims() *auth.Claims {
	c := &auth.Claims{UserID: 5, Username: "eve", Roles: auth.RoleAdmin}
	c.Subject = "eve"
	return c
}

func TestAuthMiddlewarePassThrough(t *testing.T) {
	r, reached := newAuthRouter(stubVerifier{err: auth.ErrMalformedToken}, stubStore{})

	for _, header := range []string{"", "bearer abc", "Basic Zm9vOmJhcg==", "Bearerabc"} {
		*reached = false
		rec := callWhoami(r, header)
		assert.Equal(t, http.StatusOK, rec.Code, header)
		assert.True(t, *reached, header)
	}
}

func TestAuthMiddlewareRejectsBadToken(t *testing.T) {
	for _, verr := range []error{auth.ErrMalformedToken, auth.ErrExpiredToken} {
		r, reached := newAuthRouter(stubVerifier{err: verr}, stubStore{})
		rec := callWhoami(r, "Bearer abc")

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, *reached)
		var env Envelope
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
		assert.Equal(t, apperr.CodeInvalidToken, env.Code)
	}
}

func TestAuthMiddlewareUnknownSubject(t *testing.T) {
	r, reached := newAuthRouter(stubVerifier{claims: validClaims()}, stubStore{err: auth.ErrUnknownSubject})
	rec := callWhoami(r, "Bearer abc")

	assert.False(t, *reached)
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, apperr.CodeUserNotFound, env.Code)
}

func TestAuthMiddlewareStoreFailureIsSystemError(t *testing.T) {
	r, reached := newAuthRouter(stubVerifier{claims: validClaims()}, stubStore{err: errors.New("db locked")})
	rec := callWhoami(r, "Bearer abc")

	assert.False(t, *reached)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, apperr.CodeSystemError, env.Code)
	assert.NotContains(t, env.Msg, "db locked")
}

func TestAuthMiddlewareAttachesContext(t *testing.T) {
	store := stubStore{identity: auth.Identity{ID: 5, Username: "eve", Role: auth.RoleAdmin, Status: "ENABLED"}}
	r, reached := newAuthRouter(stubVerifier{claims: validClaims()}, store)
	rec := callWhoami(r, "Bearer abc")

	require.True(t, *reached)
	var body struct {
		User        string   `json:"user"`
		Authorities []string `json:"authorities"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "eve", body.User)
	assert.Equal(t, []string{"ROLE_ADMIN"}, body.Authorities)
}

func TestStatusMapping(t *testing.T) {
	cases := map[apperr.Code]int{
		apperr.CodeInvalidToken:         http.StatusUnauthorized,
		apperr.CodeAccessDenied:         http.StatusForbidden,
		apperr.CodeParamValid:           http.StatusBadRequest,
		apperr.CodeInsufficientReadings: http.StatusBadRequest,
		apperr.CodeNoDataFound:          http.StatusNotFound,
		apperr.CodeReportNotFound:       http.StatusNotFound,
		apperr.CodeSystemError:          http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, statusFor(code), "code %d", code)
	}
}

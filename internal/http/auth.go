package http

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"energytrack/internal/apperr"
	"energytrack/internal/auth"
	"energytrack/internal/obs"
)

const (
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "

	requestContextKey = "energytrack.request_context"
)

// TokenVerifier checks a compact token and returns its claims.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// IdentityStore resolves the subject of a verified token.
type IdentityStore interface {
	ResolveIdentity(ctx context.Context, username string) (auth.Identity, error)
}

// AuthMiddleware establishes the caller identity for the request. A missing
// header, or one without the exact "Bearer " prefix, passes through
// unauthenticated. A present but invalid token, or a subject that no longer
// exists, ends the request here with the error envelope.
func AuthMiddleware(verifier TokenVerifier, store IdentityStore, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, found := bearerToken(c.GetHeader(authorizationHeader))
		if !found {
			c.Next()
			return
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			reason := "malformed"
			if errors.Is(err, auth.ErrExpiredToken) {
				reason = "expired"
			}
			reject(c, logger, reason, err, apperr.New(apperr.CodeInvalidToken))
			return
		}

		identity, err := store.ResolveIdentity(c.Request.Context(), claims.Subject)
		if err != nil {
			if errors.Is(err, auth.ErrUnknownSubject) {
				reject(c, logger, "unknown_subject", err, apperr.NewAuth(apperr.CodeUserNotFound))
				return
			}
			abortWithError(c, logger, err)
			return
		}

		rc := auth.NewRequestContext(identity, claims.Role())
		c.Set(requestContextKey, rc)
		c.Request = c.Request.WithContext(auth.WithRequestContext(c.Request.Context(), rc))
		c.Next()
	}
}

func reject(c *gin.Context, logger *logrus.Logger, reason string, cause error, resp *apperr.Error) {
	obs.AuthRejectionsTotal.WithLabelValues(reason).Inc()
	entryFor(c, logger).WithFields(logrus.Fields{
		"reason": reason,
		"error":  cause.Error(),
	}).Warn("authentication rejected")
	abortWithError(c, logger, resp)
}

func bearerToken(header string) (string, bool) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	return header[len(bearerPrefix):], true
}

// RequireAuth rejects requests that reached it without an identity.
func RequireAuth(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, found := requestContext(c); !found {
			abortWithError(c, logger, apperr.New(apperr.CodeInvalidToken))
			return
		}
		c.Next()
	}
}

// RequireRole allows only identities holding ROLE_<role>.
func RequireRole(role string, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		rc, found := requestContext(c)
		if !found {
			abortWithError(c, logger, apperr.New(apperr.CodeInvalidToken))
			return
		}
		if !rc.HasRole(role) {
			abortWithError(c, logger, apperr.New(apperr.CodeAccessDenied))
			return
		}
		c.Next()
	}
}

func requestContext(c *gin.Context) (*auth.RequestContext, bool) {
	v, found := c.Get(requestContextKey)
	if !found {
		return nil, false
	}
	rc, ok := v.(*auth.RequestContext)
	return rc, ok && rc != nil
}

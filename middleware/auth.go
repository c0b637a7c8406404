package middleware

import (
	"crypto/subtle"
	"errors"

	"github.com/gin-gonic/gin"

	"zerodb/auth"
	"zerodb/errs"
)

const (
	APIKeyHeader   = "X-API-Key"
	AdminKeyHeader = "X-Admin-Key"

	principalKey = "principal"
)

// APIKeyAuth resolves the X-API-Key header to a principal and stores it on
// the context. Requests without a known key are rejected with INVALID_API_KEY.
func APIKeyAuth(authenticator auth.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader(APIKeyHeader)
		if apiKey == "" {
			abort(c, errs.InvalidAPIKey("Missing X-API-Key header"))
			return
		}

		principal, err := authenticator.Authenticate(c.Request.Context(), apiKey)
		if err != nil {
			if errors.Is(err, auth.ErrUnknownKey) {
				abort(c, errs.InvalidAPIKey("Invalid API key"))
				return
			}
			abort(c, errs.ServiceUnavailable(err))
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

// AdminKeyAuth guards administrative routes. With no admin key configured
// the routes answer 404 as if they did not exist.
func AdminKeyAuth(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminKey == "" {
			abort(c, errs.NotFound(""))
			return
		}

		provided := c.GetHeader(AdminKeyHeader)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(adminKey)) != 1 {
			abort(c, errs.Unauthorized("Admin access required"))
			return
		}

		c.Next()
	}
}

// PrincipalFrom returns the principal stored by APIKeyAuth.
func PrincipalFrom(c *gin.Context) (auth.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return auth.Principal{}, false
	}
	principal, ok := v.(auth.Principal)
	return principal, ok
}

func abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

package middleware

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	gojwt "github.com/golang-jwt/jwt/v5"

	apperrors "github.com/dwasnwk/oktyv/errors"
)

// AuthConfig configures the bearer-token authentication middleware.
type AuthConfig struct {
	// TokenValidator validates a token string and returns the claims.
	TokenValidator func(token string) (map[string]interface{}, error)
	// SkipPaths are URL path prefixes that bypass authentication.
	SkipPaths []string
}

// Auth returns a Gin middleware that validates Bearer tokens using the
// configured TokenValidator. Validated claims are stored in the Gin context.
func Auth(cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, skip := range cfg.SkipPaths {
			if strings.HasPrefix(path, skip) {
				c.Next()
				return
			}
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			appErr := apperrors.Unauthorized("Authorization header required.")
			c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToResponse())
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			appErr := apperrors.Unauthorized("Invalid authorization header format.")
			c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToResponse())
			return
		}

		claims, err := cfg.TokenValidator(parts[1])
		if err != nil {
			appErr := apperrors.InvalidToken()
			c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToResponse())
			return
		}

		for key, value := range claims {
			c.Set(key, value)
		}
		c.Next()
	}
}

// HMACValidator returns a TokenValidator that verifies HS256-signed JWTs
// against the given shared secret.
func HMACValidator(secret string) func(token string) (map[string]interface{}, error) {
	key := []byte(secret)
	return func(tokenString string) (map[string]interface{}, error) {
		claims := gojwt.MapClaims{}
		token, err := gojwt.ParseWithClaims(tokenString, claims, func(t *gojwt.Token) (interface{}, error) {
			if t.Method.Alg() != gojwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("unexpected signing method: %s", t.Method.Alg())
			}
			return key, nil
		}, gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}))
		if err != nil {
			return nil, fmt.Errorf("parse token: %w", err)
		}
		if !token.Valid {
			return nil, fmt.Errorf("invalid token")
		}
		return claims, nil
	}
}

package middleware

import (
	"net/http"
	"strings"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/pkg/logger"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// UserContextKey is where the verified claims live on the echo context.
const UserContextKey = "user"

// JWTAuthMiddleware checks for a valid JWT and extracts user claims. The token
// is read from the Authorization header, or from the token query parameter
// since browsers cannot set headers on a WebSocket handshake. Tokens found in
// denylist are rejected; denylist may be nil.
func JWTAuthMiddleware(jwtSecret string, denylist TokenDenylist) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString, err := bearerToken(c)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
			}

			claims, err := ParseToken(tokenString, jwtSecret)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
			}

			if denylist != nil && claims.ID != "" {
				revoked, err := denylist.IsRevoked(c.Request().Context(), claims.ID)
				if err != nil {
					logger.Log.WithError(err).Error("token revocation check failed")
					return echo.NewHTTPError(http.StatusServiceUnavailable, "Unable to verify token")
				}
				if revoked {
					return echo.NewHTTPError(http.StatusUnauthorized, "Token has been revoked")
				}
			}

			// Store user claims in context
			c.Set(UserContextKey, claims)

			return next(c)
		}
	}
}

func bearerToken(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		if token := c.QueryParam("token"); token != "" {
			return token, nil
		}
		return "", errors.New("Missing Authorization header")
	}

	// Expecting "Bearer <token>"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", errors.New("Invalid Authorization header format")
	}
	return parts[1], nil
}

// ParseToken verifies an HMAC signed token and returns its claims.
func ParseToken(tokenString, jwtSecret string) (*models.JwtCustomClaims, error) {
	claims := &models.JwtCustomClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(jwtSecret), nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "unable to parse token")
	}
	if !token.Valid || claims.UserID == 0 {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// Claims returns the verified claims stored by JWTAuthMiddleware.
func Claims(c echo.Context) (*models.JwtCustomClaims, bool) {
	claims, ok := c.Get(UserContextKey).(*models.JwtCustomClaims)
	return claims, ok && claims != nil
}

// UserID returns the authenticated user's id, if any.
func UserID(c echo.Context) (uint, bool) {
	claims, ok := Claims(c)
	if !ok {
		return 0, false
	}
	return claims.UserID, true
}

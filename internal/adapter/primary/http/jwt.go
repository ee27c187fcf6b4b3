package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const agencyContextKey = "agency_id"

// AgencyAuth validates the Bearer token and scopes the request to the agency
// named in its claims. Provider callback routes are registered outside this
// middleware; providers do not authenticate with our tokens.
func AgencyAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
			}
			tokenStr := strings.TrimPrefix(header, "Bearer ")

			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid token"})
			}

			raw, ok := claims[agencyContextKey].(string)
			if !ok {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "token missing agency claim"})
			}
			id, err := uuid.Parse(raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid agency claim"})
			}

			c.Set(agencyContextKey, id)
			return next(c)
		}
	}
}

// agencyID returns the authenticated agency for the request, or uuid.Nil when
// the route is unauthenticated.
func agencyID(c echo.Context) uuid.UUID {
	if id, ok := c.Get(agencyContextKey).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

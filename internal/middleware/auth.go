package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/bizcore/universal/internal/authz"
	"github.com/bizcore/universal/pkg/jwtutil"
	"github.com/bizcore/universal/pkg/logger"
)

const authContextKey = "auth_context"

// OrgContextMiddleware validates the JWT token and builds the per-request
// authorization context from its claims. Requests without a resolved
// organization never reach a handler; there is no bypass path here.
func OrgContextMiddleware(jwtUtil *jwtutil.JWTUtil) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromEcho(c)

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				log.Warn("Missing authorization header")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing authorization header"})
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				log.Warn("Invalid authorization header format")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid authorization header format, expected Bearer token"})
			}

			claims, err := jwtUtil.ValidateToken(parts[1])
			if err != nil {
				log.Warn("Invalid or expired token", zap.Error(err))
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
			}

			if claims.OrganizationID == "" {
				log.Warn("Token carries no organization context",
					zap.String("user_entity_id", claims.UserEntityID))
				return c.JSON(http.StatusForbidden, echo.Map{"error": "token carries no organization context"})
			}

			c.Set(authContextKey, &authz.Context{
				UserID:           claims.Email,
				UserEntityID:     claims.UserEntityID,
				OrganizationID:   claims.OrganizationID,
				OrganizationName: claims.OrganizationName,
				Role:             claims.Role,
				Permissions:      claims.Permissions,
			})

			log.Debug("Request authenticated with organization context",
				zap.String("user_entity_id", claims.UserEntityID),
				zap.String("organization_id", claims.OrganizationID),
				zap.String("role", claims.Role))

			return next(c)
		}
	}
}

// IdentityMiddleware validates the JWT but does not require an organization
// claim. Used only by the auth/organization-provisioning routes, where the
// actor exists but may not belong to any organization yet.
func IdentityMiddleware(jwtUtil *jwtutil.JWTUtil) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromEcho(c)

			authHeader := c.Request().Header.Get("Authorization")
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				log.Warn("Missing or malformed authorization header")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing authorization header"})
			}

			claims, err := jwtUtil.ValidateToken(parts[1])
			if err != nil {
				log.Warn("Invalid or expired token", zap.Error(err))
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
			}

			c.Set(authContextKey, &authz.Context{
				UserID:       claims.Email,
				UserEntityID: claims.UserEntityID,
			})
			return next(c)
		}
	}
}

// OrgContext retrieves the authorization context set by the middleware.
func OrgContext(c echo.Context) (*authz.Context, bool) {
	ac, ok := c.Get(authContextKey).(*authz.Context)
	return ac, ok
}

package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/vitrine/internal/models"
	"github.com/example/vitrine/internal/utils"
)

const (
	identityContextKey = "currentIdentity"

	// GuestSessionHeader carries the anonymous cart owner for shoppers without an account.
	GuestSessionHeader = "X-Cart-Session"
)

// AuthMiddleware validates JWT tokens and loads the caller identity into context.
func AuthMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := bearerToken(c)
		if err != nil {
			return err
		}
		identity, err := utils.ParseToken(secret, token)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}
		c.Locals(identityContextKey, identity)
		return c.Next()
	}
}

// OptionalAuth loads the identity when a valid token is present and otherwise
// lets the request through anonymously.
func OptionalAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get(fiber.HeaderAuthorization) == "" {
			return c.Next()
		}
		token, err := bearerToken(c)
		if err != nil {
			return err
		}
		identity, err := utils.ParseToken(secret, token)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}
		c.Locals(identityContextKey, identity)
		return c.Next()
	}
}

// RequireAdmin rejects callers without the admin role. It must run after
// AuthMiddleware.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !IsAdmin(c) {
			return fiber.NewError(fiber.StatusForbidden, "admin access required")
		}
		return c.Next()
	}
}

func bearerToken(c *fiber.Ctx) (string, error) {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return "", fiber.NewError(fiber.StatusUnauthorized, "missing authorization header")
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", fiber.NewError(fiber.StatusUnauthorized, "invalid authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}

// GetIdentity returns the authenticated identity from context.
func GetIdentity(c *fiber.Ctx) (utils.Identity, bool) {
	identity, ok := c.Locals(identityContextKey).(utils.Identity)
	return identity, ok
}

// GetCurrentUserID extracts the authenticated user ID from context.
func GetCurrentUserID(c *fiber.Ctx) (uuid.UUID, bool) {
	identity, ok := GetIdentity(c)
	if !ok || identity.UserID == uuid.Nil {
		return uuid.Nil, false
	}
	return identity.UserID, true
}

// IsAdmin reports whether the caller holds the admin role.
func IsAdmin(c *fiber.Ctx) bool {
	identity, ok := GetIdentity(c)
	return ok && identity.Role == models.RoleAdmin
}

// CanAutoPrice reports whether the caller may have prices computed from cost.
func CanAutoPrice(c *fiber.Ctx) bool {
	return IsAdmin(c)
}

// CartOwner resolves whose cart a request addresses: the user id when
// authenticated, else the guest session header.
func CartOwner(c *fiber.Ctx) (string, bool) {
	if id, ok := GetCurrentUserID(c); ok {
		return "user:" + id.String(), true
	}
	session := strings.TrimSpace(strings.Clone(c.Get(GuestSessionHeader)))
	if session == "" || len(session) > 128 {
		return "", false
	}
	return "guest:" + session, true
}

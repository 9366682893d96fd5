package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Rana718/petquest/internal/logging"
)

const localsKey = "identity"

// Token reads the session token from the cookie or a bearer header.
func Token(c *fiber.Ctx, cookieName string) string {
	if v := c.Cookies(cookieName); v != "" {
		return v
	}
	h := c.Get(fiber.HeaderAuthorization)
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// FromContext returns the identity stored by Identify, if any.
func FromContext(c *fiber.Ctx) *Identity {
	id, _ := c.Locals(localsKey).(*Identity)
	return id
}

type MiddlewareConfig struct {
	Resolver   Resolver
	CookieName string
	// Optional lets anonymous requests through with no identity set.
	Optional bool
	Logger   *zap.Logger
}

// Identify resolves the caller and stores the identity in locals.
// Unauthenticated requests get 401 unless Optional is set.
func Identify(cfg MiddlewareConfig) fiber.Handler {
	logger := logging.OrNop(cfg.Logger)
	return func(c *fiber.Ctx) error {
		token := Token(c, cfg.CookieName)
		id, err := cfg.Resolver.Resolve(c.UserContext(), token)
		if err != nil {
			if !errors.Is(err, ErrUnauthenticated) {
				logger.Error("identity check failed", zap.Error(err))
			}
			if cfg.Optional {
				return c.Next()
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
		}
		c.Locals(localsKey, id)
		return c.Next()
	}
}

// RequireAdmin rejects callers the authorizer does not accept.
func RequireAdmin(a Authorizer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := FromContext(c)
		if id == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
		}
		if !a.IsAdmin(id) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
		}
		return c.Next()
	}
}

package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/lumenchat/lumen-go-api/internal/utils"
)

// AdminProtected gates the admin surface behind a shared secret supplied in
// the X-Admin-Secret header. This is deliberately a plain secret compare,
// not user auth; the comparison is constant-time.
func AdminProtected(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secret == "" {
			return utils.SendError(c, fiber.StatusServiceUnavailable, "admin surface disabled")
		}

		provided := strings.TrimSpace(c.Get("X-Admin-Secret"))
		if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid admin secret")
		}

		return c.Next()
	}
}

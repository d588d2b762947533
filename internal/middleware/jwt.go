package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/lumenchat/lumen-go-api/internal/utils"
)

// Profile carries the identity claims extracted from a verified token. The
// identity provider owns these fields; the API only mirrors them.
type Profile struct {
	UserID   string
	Name     string
	Email    string
	PhotoURL string
}

// JWTProtected returns a middleware that validates JWT bearer tokens issued
// by the identity provider and binds the subject's profile to the request.
func JWTProtected(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authorization := c.Get("Authorization")
		if authorization == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "authorization header missing")
		}

		const bearer = "Bearer "
		if !strings.HasPrefix(strings.ToLower(authorization), strings.ToLower(bearer)) {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid authorization header")
		}

		tokenString := strings.TrimSpace(authorization[len(bearer):])
		if tokenString == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token claims")
		}

		profile := profileFromClaims(claims)
		if profile.UserID == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "token subject missing")
		}

		c.Locals("user_id", profile.UserID)
		c.Locals("user_profile", profile)

		return c.Next()
	}
}

func profileFromClaims(claims jwt.MapClaims) Profile {
	return Profile{
		UserID:   stringClaim(claims, "sub", "user_id", "id"),
		Name:     stringClaim(claims, "name"),
		Email:    stringClaim(claims, "email"),
		PhotoURL: stringClaim(claims, "picture", "photo_url"),
	}
}

func stringClaim(claims jwt.MapClaims, keys ...string) string {
	for _, key := range keys {
		if value, ok := claims[key]; ok {
			switch v := value.(type) {
			case string:
				if trimmed := strings.TrimSpace(v); trimmed != "" {
					return trimmed
				}
			case float64:
				return fmt.Sprintf("%.0f", v)
			}
		}
	}
	return ""
}

// ProfileFromLocals returns the verified profile bound by JWTProtected.
func ProfileFromLocals(c *fiber.Ctx) (Profile, bool) {
	value := c.Locals("user_profile")
	profile, ok := value.(Profile)
	return profile, ok
}

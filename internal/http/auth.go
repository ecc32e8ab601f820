package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// RequireJWT accepts HS256 bearer tokens signed with secret. An empty secret
// turns the check off; preflight requests always pass.
func RequireJWT(secret string) fiber.Handler {
	key := []byte(strings.TrimSpace(secret))

	return func(c *fiber.Ctx) error {
		if len(key) == 0 || c.Method() == fiber.MethodOptions {
			return c.Next()
		}

		header := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
		if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "error": "missing bearer token"})
		}

		token, err := jwt.Parse(strings.TrimSpace(header[7:]), func(token *jwt.Token) (any, error) {
			return key, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "error": "invalid token"})
		}

		c.Locals("claims", token.Claims)
		return c.Next()
	}
}

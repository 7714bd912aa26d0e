package middleware

import "github.com/gofiber/fiber/v2"

// HeaderAPIKey is the header clients authenticate with.
const HeaderAPIKey = "X-API-Key"

// Auth validates the API key on every request. An empty configured key
// disables the check.
func Auth(apiKey string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if apiKey == "" {
			return c.Next()
		}
		if c.Get(HeaderAPIKey) != apiKey {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid api key")
		}
		return c.Next()
	}
}

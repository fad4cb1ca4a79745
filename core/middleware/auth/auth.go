package auth

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
)

// Config holds settings for the API key guard.
type Config struct {
	// ApiKey is the expected key. An empty key disables the guard.
	ApiKey string
	// ExemptPaths bypass the guard entirely; they carry their own
	// authentication, like signed webhook pings.
	ExemptPaths []string
}

// New returns a middleware that rejects requests without a valid X-Api-Key
// header. Comparison is constant-time.
func New(cfg Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cfg.ApiKey == "" {
			return c.Next()
		}
		for _, path := range cfg.ExemptPaths {
			if c.Path() == path {
				return c.Next()
			}
		}

		supplied := c.Get("X-Api-Key")
		if subtle.ConstantTimeCompare([]byte(supplied), []byte(cfg.ApiKey)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid api key",
			})
		}
		return c.Next()
	}
}

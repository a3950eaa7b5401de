// middleware/cors.go
package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CORSConfig holds the origin allow-list. The first allowed origin doubles as
// the fallback echoed to callers whose Origin is not on the list.
type CORSConfig struct {
	AllowedOrigins []string
	DefaultOrigin  string
	Development    bool // additionally allow localhost origins
}

func NewCORSConfig(allowedOrigins string, development bool) CORSConfig {
	cfg := CORSConfig{Development: development}
	for _, o := range strings.Split(allowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}
	if len(cfg.AllowedOrigins) > 0 {
		cfg.DefaultOrigin = cfg.AllowedOrigins[0]
	} else {
		cfg.DefaultOrigin = "https://www.challengerun.net"
	}
	return cfg
}

func (cfg CORSConfig) originFor(requestOrigin string) string {
	for _, o := range cfg.AllowedOrigins {
		if o == requestOrigin {
			return requestOrigin
		}
	}
	if cfg.Development &&
		(strings.HasPrefix(requestOrigin, "http://localhost") ||
			strings.HasPrefix(requestOrigin, "http://127.0.0.1")) {
		return requestOrigin
	}
	return cfg.DefaultOrigin
}

// CORS sets the response CORS headers on every request and short-circuits
// OPTIONS preflights with 204. Origins not on the allow-list get the default
// origin echoed back rather than their own.
func CORS(cfg CORSConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("Access-Control-Allow-Origin", cfg.originFor(c.Get("Origin")))
		c.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		c.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Set("Access-Control-Max-Age", "86400")

		if c.Method() == fiber.MethodOptions {
			return c.SendStatus(fiber.StatusNoContent)
		}
		return c.Next()
	}
}

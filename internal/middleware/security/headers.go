package security

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

type HeadersConfig struct {
	AllowedOrigins []string
	IsDevelopment  bool
}

// HeadersMiddleware hardens a JSON/websocket API that never serves HTML:
// everything is denied except the connections the chat socket needs, and
// farmer-specific responses are marked uncacheable.
func HeadersMiddleware(cfg HeadersConfig) fiber.Handler {
	csp := "default-src 'none'; " +
		"connect-src 'self'" + buildConnectSrc(cfg.AllowedOrigins) + "; " +
		"frame-ancestors 'none'; " +
		"base-uri 'none'"

	return func(c *fiber.Ctx) error {
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("Referrer-Policy", "no-referrer")
		c.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
		c.Set("Content-Security-Policy", csp)

		if !cfg.IsDevelopment {
			c.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		// Chat answers, history and diagnoses are per-farmer content.
		if strings.HasPrefix(c.Path(), "/api/") {
			c.Set("Cache-Control", "no-store")
		}

		return c.Next()
	}
}

// buildConnectSrc allows each configured origin plus its websocket form, so
// a browser client on an allowed origin can open the streaming chat socket.
func buildConnectSrc(origins []string) string {
	var b strings.Builder
	for _, origin := range origins {
		b.WriteString(" ")
		b.WriteString(origin)
		if ws, ok := websocketOrigin(origin); ok {
			b.WriteString(" ")
			b.WriteString(ws)
		}
	}
	return b.String()
}

func websocketOrigin(origin string) (string, bool) {
	switch {
	case strings.HasPrefix(origin, "https://"):
		return "wss://" + strings.TrimPrefix(origin, "https://"), true
	case strings.HasPrefix(origin, "http://"):
		return "ws://" + strings.TrimPrefix(origin, "http://"), true
	}
	return "", false
}

package middleware

import (
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// PlugStatic answers browser probes under /.well-known/ directly so they
// never reach the static file handler mounted at staticPrefix.
func PlugStatic(staticPrefix string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()

		if strings.HasPrefix(path, staticPrefix) && strings.HasPrefix(path, "/.well-known/") {
			return c.JSON(fiber.Map{
				"status": "ignored dynamic-static",
			})
		}

		return c.Next()
	}
}

// StaticAvailable reports whether dir exists and can be served.
func StaticAvailable(dir string) bool {
	if dir == "" {
		return false
	}
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

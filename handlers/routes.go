// handlers/routes.go
package handlers

import (
	"crc-submission-proxy/services"

	"github.com/gofiber/fiber/v2"
)

// SetupRoutes wires every route the proxy serves. All routes are POST-only;
// OPTIONS preflights are answered by the CORS middleware before routing.
func SetupRoutes(app *fiber.App, submissions *services.SubmissionService, approvals *services.ApprovalService) {
	// 🔓 Public routes — Turnstile-protected, tight rate class
	app.Post("/", submissions.SubmitRun)
	app.Post("/submit", submissions.SubmitRun)
	app.Post("/submit-game", submissions.SubmitGame)

	// 🔐 Moderation routes — identity-verified, loose rate class
	app.Post("/approve", approvals.ApproveRun)
	app.Post("/approve-profile", approvals.ApproveProfile)
	app.Post("/approve-game", approvals.ApproveGame)
	app.Post("/notify", approvals.Notify)

	// Everything else: 405 for non-POST, 404 for unknown paths
	app.Use(func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost {
			return c.Status(fiber.StatusMethodNotAllowed).JSON(fiber.Map{"error": "Method not allowed"})
		}
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	})
}

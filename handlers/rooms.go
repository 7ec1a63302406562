// handlers/rooms.go
package handlers

import (
	"os"

	"github.com/gofiber/fiber/v2"

	"cipher-match-system/middleware"
	"cipher-match-system/services"
)

func SetupRoomRoutes(app *fiber.App, registry *services.RegistryService) {
	// 🔓 Public routes — no wallet context, but still behind Gateway auth
	app.Get("/rooms", registry.HandleListRooms)
	app.Get("/rooms/:id", registry.HandleGetRoom)
	app.Get("/rooms/:id/match", registry.HandleMatchDetail)
	app.Get("/rooms/:id/timeline", registry.HandleTimeline)
	app.Get("/leaderboard", registry.HandleLeaderboard)
	app.Get("/leaderboard/points", registry.HandleCachedLeaderboard)
	app.Get("/wallets/:addr/balance", registry.HandleBalance)

	// 🔐 Mutating routes — require wallet context from the Gateway
	secured := app.Group("/", middleware.WalletContextMiddleware(true))

	secured.Post("/rooms", registry.HandleCreateRoom)
	secured.Post("/rooms/:id/join", registry.HandleJoinRoom)
	secured.Post("/rooms/:id/moves", registry.HandleSubmitMove)
	secured.Post("/rooms/:id/rematch", registry.HandleRematch)

	// Anyone may force a stalled match or trigger payout, no wallet needed
	app.Post("/rooms/:id/force", registry.HandleForceResolve)
	app.Post("/rooms/:id/finalize", registry.HandleFinalizeMatch)
}

// SetupDevRoutes wires the faucet and a local encryption helper so clients
// without an SDK can produce sealed moves. Only mounted when
// ALLOW_DEV_FAUCET=true.
func SetupDevRoutes(app *fiber.App, registry *services.RegistryService, engine *services.DevComputeEngine) {
	if os.Getenv("ALLOW_DEV_FAUCET") != "true" {
		return
	}

	app.Post("/wallets/:addr/deposit", registry.HandleDeposit)

	app.Post("/dev/encrypt", func(c *fiber.Ctx) error {
		var body struct {
			Move uint8 `json:"move"`
		}
		if err := c.BodyParser(&body); err != nil || body.Move > 2 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "move must be 0, 1 or 2"})
		}
		ct, proof, err := engine.EncryptMove(services.Move(body.Move))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"ciphertext": ct, "proof": proof})
	})
}

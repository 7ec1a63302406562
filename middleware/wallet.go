package middleware

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"cipher-match-system/utils"
)

// WalletContextMiddleware extracts the caller's wallet address forwarded by
// the Gateway and stores the normalized form in c.Locals("wallet").
// Mutating routes require it; read-only routes pass through without one.
func WalletContextMiddleware(required bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Get("X-Wallet-Address")
		if raw == "" {
			if required {
				log.Printf("🚫 [WALLET] Missing X-Wallet-Address for %s", c.Path())
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "wallet address missing",
				})
			}
			return c.Next()
		}

		addr, err := utils.NormalizeAddress(raw)
		if err != nil {
			log.Printf("❌ [WALLET] Rejected malformed address %q for %s", raw, c.Path())
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "malformed wallet address",
			})
		}

		c.Locals("wallet", addr)
		return c.Next()
	}
}

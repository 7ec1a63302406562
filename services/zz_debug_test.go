package services

import (
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestZZDebugJoin(t *testing.T) {
	f := newFixture(RematchReuseEscrow)
	app := newTestApp(f)

	resp, created := doJSON(t, app, "POST", "/rooms", alice, fiber.Map{
		"stake": testStake,
		"value": testStake,
	})
	fmt.Println("create status:", resp.StatusCode, "body:", created)
	roomID := uint64(created["room_id"].(float64))

	room := f.registry.rooms[roomID]
	fmt.Printf("room: playerA=%q playerB=%q zero=%q state=%v stake=%d\n",
		room.PlayerA, room.PlayerB, ZeroAddress, room.match.State(), room.Stake)

	app2 := fiber.New()
	app2.Use(func(c *fiber.Ctx) error {
		if addr := c.Get("X-Wallet-Address"); addr != "" {
			c.Locals("wallet", addr)
		}
		return c.Next()
	})
	app2.Post("/rooms/:id/join", func(c *fiber.Ctx) error {
		addr, ok := caller(c)
		id, ok2 := roomIDParam(c)
		var b struct {
			Value int64 `json:"value"`
		}
		perr := c.BodyParser(&b)
		fmt.Printf("handler sees: caller=%q ok=%v id=%d ok2=%v value=%d parseErr=%v\n", addr, ok, id, ok2, b.Value, perr)
		return f.registry.HandleJoinRoom(c)
	})
	resp2, body := doJSON(t, app2, "POST", fmt.Sprintf("/rooms/%d/join", roomID), bob, fiber.Map{"value": testStake})
	fmt.Println("join status:", resp2.StatusCode, "body:", body)
}

package services

import (
	"errors"
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// HTTP bindings for the registry. Parsing and status mapping live here;
// the protocol logic stays in registry.go / match.go.

func httpStatus(err error) int {
	switch {
	case errors.Is(err, ErrUnknownRoom):
		return fiber.StatusNotFound
	case errors.Is(err, ErrInvalidStake),
		errors.Is(err, ErrAlreadyJoined),
		errors.Is(err, ErrNotAParticipant),
		errors.Is(err, ErrMoveAlreadySubmitted),
		errors.Is(err, ErrInvalidProof),
		errors.Is(err, ErrInsufficientFunds):
		return fiber.StatusBadRequest
	case errors.Is(err, ErrWrongState),
		errors.Is(err, ErrNotResolved),
		errors.Is(err, ErrAlreadyCompleted),
		errors.Is(err, ErrTimeoutNotElapsed),
		errors.Is(err, ErrRematchWindowExpired):
		return fiber.StatusConflict
	case errors.Is(err, ErrTransferFailed):
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}

func protocolError(c *fiber.Ctx, err error) error {
	return c.Status(httpStatus(err)).JSON(fiber.Map{"error": err.Error()})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func noWallet(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": "missing X-Wallet-Address — request must come through gateway with wallet context",
	})
}

// caller pulls the wallet address the gateway middleware attached.
func caller(c *fiber.Ctx) (Address, bool) {
	addr, ok := c.Locals("wallet").(string)
	if !ok || addr == "" {
		return "", false
	}
	return Address(addr), true
}

func roomIDParam(c *fiber.Ctx) (uint64, bool) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

func (r *RegistryService) HandleCreateRoom(c *fiber.Ctx) error {
	addr, ok := caller(c)
	if !ok {
		return noWallet(c)
	}

	var body struct {
		Stake                int64  `json:"stake"`
		MoveTimeoutSeconds   uint32 `json:"move_timeout_seconds"`
		RematchWindowSeconds uint32 `json:"rematch_window_seconds"`
		RankingEnabled       bool   `json:"ranking_enabled"`
		Label                string `json:"label"`
		Value                int64  `json:"value"`
	}
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	summary, err := r.CreateRoom(addr, CreateRoomParams{
		Stake:                body.Stake,
		MoveTimeoutSeconds:   body.MoveTimeoutSeconds,
		RematchWindowSeconds: body.RematchWindowSeconds,
		RankingEnabled:       body.RankingEnabled,
		Label:                body.Label,
		Attached:             body.Value,
	})
	if err != nil {
		return protocolError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(summary)
}

func (r *RegistryService) HandleJoinRoom(c *fiber.Ctx) error {
	addr, ok := caller(c)
	if !ok {
		return noWallet(c)
	}
	roomID, ok := roomIDParam(c)
	if !ok {
		return badRequest(c, "invalid room id")
	}

	var body struct {
		Value int64 `json:"value"`
	}
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	if err := r.JoinRoom(addr, roomID, body.Value); err != nil {
		return protocolError(c, err)
	}
	return c.JSON(fiber.Map{"room_id": roomID, "player": addr})
}

func (r *RegistryService) HandleSubmitMove(c *fiber.Ctx) error {
	addr, ok := caller(c)
	if !ok {
		return noWallet(c)
	}
	roomID, ok := roomIDParam(c)
	if !ok {
		return badRequest(c, "invalid room id")
	}

	var body struct {
		Ciphertext string `json:"ciphertext"`
		Proof      string `json:"proof"`
	}
	if err := c.BodyParser(&body); err != nil || body.Ciphertext == "" {
		return badRequest(c, "ciphertext and proof are required")
	}

	if err := r.SubmitMove(addr, roomID, Ciphertext(body.Ciphertext), Proof(body.Proof)); err != nil {
		return protocolError(c, err)
	}
	return c.JSON(fiber.Map{"room_id": roomID, "submitted": true})
}

func (r *RegistryService) HandleForceResolve(c *fiber.Ctx) error {
	roomID, ok := roomIDParam(c)
	if !ok {
		return badRequest(c, "invalid room id")
	}
	if err := r.ForceResolve(roomID); err != nil {
		return protocolError(c, err)
	}
	detail, err := r.GetMatchDetail(roomID)
	if err != nil {
		return protocolError(c, err)
	}
	return c.JSON(detail)
}

func (r *RegistryService) HandleRematch(c *fiber.Ctx) error {
	addr, ok := caller(c)
	if !ok {
		return noWallet(c)
	}
	roomID, ok := roomIDParam(c)
	if !ok {
		return badRequest(c, "invalid room id")
	}

	var body struct {
		Value int64 `json:"value"`
	}
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	summary, err := r.Rematch(addr, roomID, body.Value)
	if err != nil {
		return protocolError(c, err)
	}
	return c.JSON(summary)
}

func (r *RegistryService) HandleFinalizeMatch(c *fiber.Ctx) error {
	roomID, ok := roomIDParam(c)
	if !ok {
		return badRequest(c, "invalid room id")
	}
	if err := r.FinalizeMatch(roomID); err != nil {
		return protocolError(c, err)
	}
	info, err := r.GetRoomInfo(roomID)
	if err != nil {
		return protocolError(c, err)
	}
	return c.JSON(info)
}

func (r *RegistryService) HandleListRooms(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"room_counter": r.RoomCount(),
		"rooms":        r.ListRooms(),
	})
}

func (r *RegistryService) HandleGetRoom(c *fiber.Ctx) error {
	roomID, ok := roomIDParam(c)
	if !ok {
		return badRequest(c, "invalid room id")
	}
	info, err := r.GetRoomInfo(roomID)
	if err != nil {
		return protocolError(c, err)
	}
	return c.JSON(info)
}

func (r *RegistryService) HandleMatchDetail(c *fiber.Ctx) error {
	roomID, ok := roomIDParam(c)
	if !ok {
		return badRequest(c, "invalid room id")
	}
	detail, err := r.GetMatchDetail(roomID)
	if err != nil {
		return protocolError(c, err)
	}
	return c.JSON(detail)
}

func (r *RegistryService) HandleLeaderboard(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 10)
	if limit < 0 {
		return badRequest(c, "limit must be non-negative")
	}
	return c.JSON(fiber.Map{"entries": r.GetLeaderboard(limit)})
}

// HandleCachedLeaderboard serves the redis points-only view.
func (r *RegistryService) HandleCachedLeaderboard(c *fiber.Ctx) error {
	r.mu.Lock()
	cache := r.cache
	r.mu.Unlock()

	if cache == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "leaderboard cache not configured"})
	}
	limit := int64(c.QueryInt("limit", 10))
	rows, err := cache.TopPoints(c.Context(), limit)
	if err != nil {
		log.Printf("⚠️ [HTTP] cached leaderboard read failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "cache read failed"})
	}
	return c.JSON(fiber.Map{"entries": rows})
}

func (r *RegistryService) HandleTimeline(c *fiber.Ctx) error {
	roomID, ok := roomIDParam(c)
	if !ok {
		return badRequest(c, "invalid room id")
	}
	events, err := r.Timeline(roomID)
	if err != nil {
		return protocolError(c, err)
	}
	return c.JSON(fiber.Map{"room_id": roomID, "events": events})
}

// HandleDeposit is the dev faucet: credits ledger balance so players can
// attach value to create/join calls. Only routed when enabled.
func (r *RegistryService) HandleDeposit(c *fiber.Ctx) error {
	addr := c.Params("addr")
	var body struct {
		Amount int64 `json:"amount"`
	}
	if err := c.BodyParser(&body); err != nil || body.Amount <= 0 {
		return badRequest(c, "amount must be positive")
	}
	r.ledger.Deposit(Address(addr), body.Amount)
	return c.JSON(fiber.Map{"address": addr, "balance": r.ledger.Balance(Address(addr))})
}

// HandleBalance reports a wallet's ledger balance.
func (r *RegistryService) HandleBalance(c *fiber.Ctx) error {
	addr := c.Params("addr")
	return c.JSON(fiber.Map{"address": addr, "balance": r.ledger.Balance(Address(addr))})
}

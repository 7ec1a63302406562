package services

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"cipher-match-system/models"
)

// RematchPolicy decides the economics of a rematch. Product has not
// settled this, so both paths exist behind configuration.
type RematchPolicy uint8

const (
	// RematchReuseEscrow (default): a rematch is only valid while the
	// match is Resolved and the pot is still held; the escrow carries
	// over and finalize happens once, after the last round.
	RematchReuseEscrow RematchPolicy = iota
	// RematchFreshStake: after finalize, a rematch request spawns a
	// successor room with the same configuration; both players stake
	// again (the requester on the spot, the opponent by joining).
	RematchFreshStake
)

// RegistryConfig carries the service-level knobs.
type RegistryConfig struct {
	RematchPolicy RematchPolicy
}

// Room is the registry's permanent record of one pairing. The match
// reference drives gameplay; the room carries identity, escrow facts and
// the single-shot completion flag.
type Room struct {
	ID             uint64
	Handle         string // synthetic contract address for the room
	Label          string
	Slug           string
	PlayerA        Address
	PlayerB        Address
	Stake          int64
	RankingEnabled bool
	Completed      bool
	RematchOf      uint64
	CreatedAt      time.Time

	match *Match
}

// RoomSummary is the room-level read model.
type RoomSummary struct {
	RoomID          uint64  `json:"room_id"`
	ContractAddress string  `json:"contract_address"`
	Label           string  `json:"label,omitempty"`
	Slug            string  `json:"slug,omitempty"`
	PlayerA         Address `json:"player_a"`
	PlayerB         Address `json:"player_b"`
	Stake           int64   `json:"stake"`
	RankingEnabled  bool    `json:"ranking_enabled"`
	Completed       bool    `json:"completed"`
	RematchOf       uint64  `json:"rematch_of,omitempty"`
}

// CreateRoomParams is the createRoom request after parsing.
type CreateRoomParams struct {
	Stake                int64
	MoveTimeoutSeconds   uint32
	RematchWindowSeconds uint32
	RankingEnabled       bool
	Label                string
	Attached             int64
}

// RegistryService owns the room table, the sequential counter, the
// escrow ledger, the leaderboard and the event log. Every mutating
// operation is serialized on the registry mutex (matching the one-call-
// at-a-time contract semantics); decryption callbacks bypass it and
// touch only the destination match.
type RegistryService struct {
	mu  sync.Mutex
	cfg RegistryConfig

	ledger  Ledger
	compute ComputeService

	roomCounter uint64
	rooms       map[uint64]*Room

	board  *leaderboard
	events *EventLog
	cache  *LeaderboardCache // optional redis points cache, may be nil

	ticketsMu sync.Mutex
	tickets   map[Ticket]*Match

	nowFn func() time.Time

	labelCaser cases.Caser
}

func NewRegistryService(cfg RegistryConfig, ledger Ledger, compute ComputeService) *RegistryService {
	r := &RegistryService{
		cfg:        cfg,
		ledger:     ledger,
		compute:    compute,
		rooms:      make(map[uint64]*Room),
		board:      newLeaderboard(),
		events:     NewEventLog(),
		tickets:    make(map[Ticket]*Match),
		nowFn:      time.Now,
		labelCaser: cases.Title(language.English),
	}
	compute.SetCallback(r.dispatchDecryption)
	return r
}

// SetLeaderboardCache attaches the optional redis write-through cache.
func (r *RegistryService) SetLeaderboardCache(cache *LeaderboardCache) {
	r.mu.Lock()
	r.cache = cache
	r.mu.Unlock()
}

func (r *RegistryService) now() time.Time { return r.nowFn() }

// matchClock hands matches a clock that follows registry overrides,
// which is what lets the tests advance time for every live match at once.
func (r *RegistryService) matchClock() func() time.Time {
	return func() time.Time { return r.nowFn() }
}

// roomHandle derives the synthetic contract address for a room.
func roomHandle(roomID uint64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("cipher-match-room:%d:%s", roomID, uuid.NewString())))
	return "0x" + hex.EncodeToString(sum[:])[:40]
}

// CreateRoom escrows the creator's stake and opens a room with a fresh
// sequential id (first id is 1; 0 stays the not-found sentinel).
func (r *RegistryService) CreateRoom(caller Address, p CreateRoomParams) (RoomSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.createRoomLocked(caller, p, 0)
}

func (r *RegistryService) createRoomLocked(caller Address, p CreateRoomParams, rematchOf uint64) (RoomSummary, error) {
	if p.Stake <= 0 || p.Attached != p.Stake {
		return RoomSummary{}, ErrInvalidStake
	}
	if r.ledger.Balance(caller) < p.Attached {
		return RoomSummary{}, ErrInsufficientFunds
	}

	id := r.roomCounter + 1
	if err := r.ledger.Escrow(id, caller, p.Attached); err != nil {
		return RoomSummary{}, err
	}
	r.roomCounter = id

	label := strings.TrimSpace(p.Label)
	var roomSlug string
	if label != "" {
		label = r.labelCaser.String(label)
		roomSlug = slug.Make(label)
	}

	room := &Room{
		ID:             id,
		Handle:         roomHandle(id),
		Label:          label,
		Slug:           roomSlug,
		PlayerA:        caller,
		PlayerB:        ZeroAddress,
		Stake:          p.Stake,
		RankingEnabled: p.RankingEnabled,
		RematchOf:      rematchOf,
		CreatedAt:      r.now(),
	}
	room.match = newMatch(
		id, caller, p.Stake,
		time.Duration(p.MoveTimeoutSeconds)*time.Second,
		time.Duration(p.RematchWindowSeconds)*time.Second,
		r.compute, r,
		func(eventType string, attributes map[string]string) {
			r.events.Emit(id, eventType, attributes)
		},
		r.matchClock(),
	)
	r.rooms[id] = room

	r.events.Emit(id, EventRoomCreated, map[string]string{
		"roomId":       fmt.Sprintf("%d", id),
		"roomContract": room.Handle,
	})
	log.Printf("🆕 [REGISTRY] room %d created by %s (stake %d wei)", id, caller, p.Stake)
	return room.summary(), nil
}

// JoinRoom escrows the challenger's matching stake and starts the match.
func (r *RegistryService) JoinRoom(caller Address, roomID uint64, attached int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return ErrUnknownRoom
	}
	if attached != room.Stake {
		return ErrInvalidStake
	}
	if room.PlayerB != ZeroAddress || caller == room.PlayerA {
		return ErrAlreadyJoined
	}
	if room.match.State() != StateAwaitingOpponent {
		return ErrAlreadyJoined
	}
	if r.ledger.Balance(caller) < attached {
		return ErrInsufficientFunds
	}

	if err := r.ledger.Escrow(roomID, caller, attached); err != nil {
		return err
	}
	if err := room.match.Join(caller); err != nil {
		// Unreachable given the state check above; keep escrow honest anyway.
		return err
	}
	room.PlayerB = caller

	r.events.Emit(roomID, EventRoomJoined, map[string]string{
		"roomId": fmt.Sprintf("%d", roomID),
		"player": string(caller),
	})
	log.Printf("🤝 [REGISTRY] %s joined room %d", caller, roomID)
	return nil
}

// SubmitMove forwards an encrypted move to the room's match.
func (r *RegistryService) SubmitMove(caller Address, roomID uint64, ct Ciphertext, proof Proof) error {
	m, err := r.matchFor(roomID)
	if err != nil {
		return err
	}
	return m.SubmitMove(caller, ct, proof)
}

// ForceResolve applies the timeout policy to a stalled match.
func (r *RegistryService) ForceResolve(roomID uint64) error {
	m, err := r.matchFor(roomID)
	if err != nil {
		return err
	}
	return m.ForceResolve()
}

// FinalizeMatch pays out the pot, updates the leaderboard, and marks the
// room completed — exactly once. Callable by anyone (relayer pattern).
// A rejected transfer rolls the whole call back.
func (r *RegistryService) FinalizeMatch(roomID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return ErrUnknownRoom
	}
	if room.Completed {
		return ErrAlreadyCompleted
	}
	winner, code, err := room.match.resolution()
	if err != nil {
		return err
	}

	// A resolved match always has both players: resolution requires at
	// least AwaitingMoves, which requires a join. Tie refunds each stake;
	// a win pays the whole pot.
	var transfers []Transfer
	if winner == ZeroAddress {
		transfers = []Transfer{
			{To: room.PlayerA, Amount: room.Stake},
			{To: room.PlayerB, Amount: room.Stake},
		}
	} else {
		transfers = []Transfer{{To: winner, Amount: r.ledger.PotBalance(roomID)}}
	}

	if err := r.ledger.Payout(roomID, transfers); err != nil {
		return err
	}

	if room.RankingEnabled && room.PlayerB != ZeroAddress {
		if winner == ZeroAddress {
			r.board.recordTie(room.PlayerA)
			r.board.recordTie(room.PlayerB)
		} else {
			loser := room.PlayerA
			if winner == room.PlayerA {
				loser = room.PlayerB
			}
			r.board.recordWin(winner)
			r.board.recordLoss(loser)
		}
		r.writeThroughCache(room, winner)
	}

	room.Completed = true
	room.match.markCompleted()

	r.events.Emit(roomID, EventMatchFinalized, map[string]string{
		"roomId":     fmt.Sprintf("%d", roomID),
		"winner":     string(winner),
		"resultCode": fmt.Sprintf("%d", code),
	})
	log.Printf("✅ [REGISTRY] room %d finalized (winner %s, result %d)", roomID, winner, code)
	return nil
}

// writeThroughCache pushes point deltas to redis when configured.
// Cache failures never fail a finalize.
func (r *RegistryService) writeThroughCache(room *Room, winner Address) {
	if r.cache == nil {
		return
	}
	var err error
	if winner == ZeroAddress {
		if err = r.cache.AddPoints(room.PlayerA, pointsPerTie); err == nil {
			err = r.cache.AddPoints(room.PlayerB, pointsPerTie)
		}
	} else {
		err = r.cache.AddPoints(winner, pointsPerWin)
	}
	if err != nil {
		log.Printf("⚠️ [REGISTRY] leaderboard cache write failed: %v", err)
	}
}

// Rematch re-opens play for the same pairing. Economics depend on the
// configured policy; see RematchPolicy.
func (r *RegistryService) Rematch(caller Address, roomID uint64, attached int64) (RoomSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return RoomSummary{}, ErrUnknownRoom
	}

	switch room.match.State() {
	case StateResolved:
		// Pot is still escrowed; no fresh stake accepted here.
		if attached != 0 {
			return RoomSummary{}, ErrInvalidStake
		}
		if err := room.match.rematchReset(caller); err != nil {
			return RoomSummary{}, err
		}
		log.Printf("🔁 [REGISTRY] room %d rematch (escrow carried over)", roomID)
		return room.summary(), nil

	case StateCompleted:
		if r.cfg.RematchPolicy != RematchFreshStake {
			return RoomSummary{}, ErrWrongState
		}
		if !room.match.isParticipant(caller) {
			return RoomSummary{}, ErrNotAParticipant
		}
		if !room.match.withinRematchWindow() {
			return RoomSummary{}, ErrRematchWindowExpired
		}
		// The settled pot cannot be reopened; spawn a successor room with
		// the same configuration. The opponent re-stakes by joining it.
		successor, err := r.createRoomLocked(caller, CreateRoomParams{
			Stake:                room.Stake,
			MoveTimeoutSeconds:   uint32(room.match.moveTimeout / time.Second),
			RematchWindowSeconds: uint32(room.match.rematchWindow / time.Second),
			RankingEnabled:       room.RankingEnabled,
			Label:                room.Label,
			Attached:             attached,
		}, roomID)
		if err != nil {
			return RoomSummary{}, err
		}
		r.events.Emit(roomID, EventRematchReady, map[string]string{
			"successorRoomId": fmt.Sprintf("%d", successor.RoomID),
		})
		log.Printf("🔁 [REGISTRY] room %d rematch via successor room %d", roomID, successor.RoomID)
		return successor, nil

	default:
		return RoomSummary{}, ErrWrongState
	}
}

// ---------- Queries ----------

func (r *RegistryService) RoomCount() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.roomCounter
}

func (r *RegistryService) GetRoomInfo(roomID uint64) (RoomSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return RoomSummary{}, ErrUnknownRoom
	}
	return room.summary(), nil
}

func (r *RegistryService) ListRooms() []RoomSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RoomSummary, 0, len(r.rooms))
	for id := uint64(1); id <= r.roomCounter; id++ {
		if room, ok := r.rooms[id]; ok {
			out = append(out, room.summary())
		}
	}
	return out
}

func (r *RegistryService) GetMatchDetail(roomID uint64) (MatchDetail, error) {
	m, err := r.matchFor(roomID)
	if err != nil {
		return MatchDetail{}, err
	}
	return m.Detail(), nil
}

// GetLeaderboard returns the ranked entries: points desc, wins desc,
// earliest-registered first. Read-only.
func (r *RegistryService) GetLeaderboard(limit int) []LeaderboardEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.board.top(limit)
}

func (r *RegistryService) Timeline(roomID uint64) ([]MatchEvent, error) {
	if _, err := r.GetRoomInfo(roomID); err != nil {
		return nil, err
	}
	return r.events.ForRoom(roomID), nil
}

// Ledger exposes the escrow boundary (dev faucet, balance queries).
func (r *RegistryService) Ledger() Ledger { return r.ledger }

func (r *RegistryService) matchFor(roomID uint64) (*Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return nil, ErrUnknownRoom
	}
	return room.match, nil
}

func (room *Room) summary() RoomSummary {
	return RoomSummary{
		RoomID:          room.ID,
		ContractAddress: room.Handle,
		Label:           room.Label,
		Slug:            room.Slug,
		PlayerA:         room.PlayerA,
		PlayerB:         room.PlayerB,
		Stake:           room.Stake,
		RankingEnabled:  room.RankingEnabled,
		Completed:       room.Completed,
		RematchOf:       room.RematchOf,
	}
}

// ---------- Ticket routing ----------

// RegisterTicket records which match awaits a decryption ticket.
func (r *RegistryService) RegisterTicket(t Ticket, m *Match) {
	r.ticketsMu.Lock()
	r.tickets[t] = m
	r.ticketsMu.Unlock()
}

// dispatchDecryption is the single compute-service callback. Unknown
// tickets are dropped silently; the match re-checks the ticket under its
// own lock, so a ticket orphaned by rematch or re-trigger dies here or
// there, never resolving a stale round.
func (r *RegistryService) dispatchDecryption(t Ticket, plaintext ResultCode) {
	r.ticketsMu.Lock()
	m, ok := r.tickets[t]
	delete(r.tickets, t)
	r.ticketsMu.Unlock()

	if !ok {
		log.Printf("🛡️ [REGISTRY] dropped decryption for unknown ticket %.8s", t)
		return
	}
	m.OnResultDecrypted(t, plaintext)
}

// ---------- Timeout sweep ----------

// SweepTimeouts force-resolves every match whose move timeout elapsed.
// Returns how many matches were acted on.
func (r *RegistryService) SweepTimeouts() int {
	r.mu.Lock()
	matches := make([]*Match, 0, len(r.rooms))
	for _, room := range r.rooms {
		matches = append(matches, room.match)
	}
	r.mu.Unlock()

	swept := 0
	for _, m := range matches {
		if !m.forceResolveEligible() {
			continue
		}
		if err := m.ForceResolve(); err == nil {
			swept++
		}
	}
	return swept
}

// ---------- Mirror exports ----------

// ExportRooms snapshots every room (plus match detail) as mirror rows.
func (r *RegistryService) ExportRooms() []models.Room {
	summaries := r.ListRooms()
	out := make([]models.Room, 0, len(summaries))
	for _, s := range summaries {
		detail, err := r.GetMatchDetail(s.RoomID)
		if err != nil {
			continue
		}
		out = append(out, models.Room{
			RoomID:          s.RoomID,
			ContractAddress: s.ContractAddress,
			Label:           s.Label,
			Slug:            s.Slug,
			PlayerA:         string(s.PlayerA),
			PlayerB:         string(s.PlayerB),
			Stake:           s.Stake,
			RankingEnabled:  s.RankingEnabled,
			Completed:       s.Completed,
			RematchOf:       s.RematchOf,
			State:           uint8(detail.State),
			Winner:          string(detail.Winner),
			LastResult:      uint8(detail.LastResultPlaintext),
			MoveASubmitted:  detail.MoveASubmitted,
			MoveBSubmitted:  detail.MoveBSubmitted,
		})
	}
	return out
}

// ExportLeaderboard snapshots the full ranking as mirror rows.
func (r *RegistryService) ExportLeaderboard() []models.LeaderboardEntry {
	r.mu.Lock()
	entries := r.board.snapshot()
	r.mu.Unlock()

	out := make([]models.LeaderboardEntry, 0, len(entries))
	for rank, e := range entries {
		out = append(out, models.LeaderboardEntry{
			Player: string(e.Player),
			Points: e.Points,
			Wins:   e.Wins,
			Losses: e.Losses,
			Ties:   e.Ties,
			Rank:   rank + 1,
		})
	}
	return out
}

// ExportEventsSince drains new events for the mirror, as rows plus the
// advanced cursor.
func (r *RegistryService) ExportEventsSince(cursor int) ([]models.MatchEvent, int) {
	events, next := r.events.Since(cursor)
	out := make([]models.MatchEvent, 0, len(events))
	for _, ev := range events {
		attrs, err := json.Marshal(ev.Attributes)
		if err != nil {
			attrs = []byte("{}")
		}
		out = append(out, models.MatchEvent{
			EventID:    ev.ID,
			RoomID:     ev.RoomID,
			Type:       ev.Type,
			Attributes: string(attrs),
			At:         ev.At,
		})
	}
	return out, next
}

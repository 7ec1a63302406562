package services

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// MatchState is the room lifecycle. Codes match the on-chain enum the
// frontend already reads, so the detail query stays wire-compatible.
type MatchState uint8

const (
	StateAwaitingOpponent MatchState = 0
	StateAwaitingMoves    MatchState = 1
	StateMovesSubmitted   MatchState = 2
	StateResolved         MatchState = 3
	StateCompleted        MatchState = 4
)

func (s MatchState) String() string {
	switch s {
	case StateAwaitingOpponent:
		return "awaiting_opponent"
	case StateAwaitingMoves:
		return "awaiting_moves"
	case StateMovesSubmitted:
		return "moves_submitted"
	case StateResolved:
		return "resolved"
	case StateCompleted:
		return "completed"
	}
	return fmt.Sprintf("unknown(%d)", uint8(s))
}

// ticketRouter maps an outstanding decryption ticket back to its match.
// The registry implements it; the match registers a ticket whenever it
// asks the compute service for a decryption.
type ticketRouter interface {
	RegisterTicket(t Ticket, m *Match)
}

// Match drives one room's game: two committed encrypted moves, the
// asynchronous outcome resolution, the timeout escape hatch, and the
// rematch reset. All transitions happen under the match mutex and only
// after every validation passed, so a returned error always means the
// match is untouched.
type Match struct {
	mu sync.Mutex

	roomID  uint64
	playerA Address
	playerB Address
	stake   int64

	moveTimeout   time.Duration
	rematchWindow time.Duration

	state MatchState

	moveA          Ciphertext
	moveB          Ciphertext
	moveASubmitted bool
	moveBSubmitted bool

	lastMoveAt time.Time
	resolvedAt time.Time

	winner          Address
	lastResult      ResultCode
	encryptedResult Ciphertext
	pendingTicket   Ticket

	compute ComputeService
	router  ticketRouter
	emit    func(eventType string, attributes map[string]string)
	now     func() time.Time
}

// MatchDetail is the read model served to the presentation layer.
type MatchDetail struct {
	MoveASubmitted      bool       `json:"move_a_submitted"`
	MoveBSubmitted      bool       `json:"move_b_submitted"`
	State               MatchState `json:"state"`
	Winner              Address    `json:"winner"`
	LastResultPlaintext ResultCode `json:"last_result_plaintext"`
	EncryptedResult     Ciphertext `json:"encrypted_result,omitempty"`
}

func newMatch(roomID uint64, playerA Address, stake int64, moveTimeout, rematchWindow time.Duration,
	compute ComputeService, router ticketRouter, emit func(string, map[string]string), now func() time.Time) *Match {
	return &Match{
		roomID:        roomID,
		playerA:       playerA,
		stake:         stake,
		moveTimeout:   moveTimeout,
		rematchWindow: rematchWindow,
		state:         StateAwaitingOpponent,
		winner:        ZeroAddress,
		compute:       compute,
		router:        router,
		emit:          emit,
		now:           now,
		lastMoveAt:    now(),
	}
}

// Join admits the challenger. Valid exactly once, while the room still
// awaits an opponent.
func (m *Match) Join(challenger Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateAwaitingOpponent {
		return ErrAlreadyJoined
	}
	if challenger == m.playerA {
		return ErrAlreadyJoined
	}

	m.playerB = challenger
	m.state = StateAwaitingMoves
	m.lastMoveAt = m.now()
	return nil
}

// SubmitMove records one player's encrypted move. When the second slot
// fills, outcome evaluation and decryption kick off immediately; the
// plaintext arrives later through OnResultDecrypted.
func (m *Match) SubmitMove(caller Address, ct Ciphertext, proof Proof) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if caller != m.playerA && caller != m.playerB {
		return ErrNotAParticipant
	}
	if m.state != StateAwaitingMoves {
		return ErrWrongState
	}
	if (caller == m.playerA && m.moveASubmitted) || (caller == m.playerB && m.moveBSubmitted) {
		return ErrMoveAlreadySubmitted
	}
	if err := m.compute.Validate(ct, proof); err != nil {
		return ErrInvalidProof
	}

	if caller == m.playerA {
		m.moveA = ct
		m.moveASubmitted = true
	} else {
		m.moveB = ct
		m.moveBSubmitted = true
	}
	m.lastMoveAt = m.now()
	m.emit(EventMoveSubmitted, map[string]string{"player": string(caller)})

	if m.moveASubmitted && m.moveBSubmitted {
		m.state = StateMovesSubmitted
		m.startOutcomeLocked()
	}
	return nil
}

// startOutcomeLocked asks the compute service to evaluate the game rule
// over both ciphertexts and to decrypt the result. Caller holds m.mu.
// A failure here is logged and reported as MatchFailed; the match stays
// in MovesSubmitted so ForceResolve can retry after the timeout.
func (m *Match) startOutcomeLocked() {
	result, err := m.compute.EvaluateOutcome(m.moveA, m.moveB)
	if err != nil {
		log.Printf("⚠️ [MATCH %d] outcome evaluation failed: %v", m.roomID, err)
		m.emit(EventMatchFailed, map[string]string{"reason": "outcome evaluation failed"})
		return
	}
	ticket, err := m.compute.RequestDecryption(result)
	if err != nil {
		log.Printf("⚠️ [MATCH %d] decryption request failed: %v", m.roomID, err)
		m.emit(EventMatchFailed, map[string]string{"reason": "decryption request failed"})
		return
	}

	m.encryptedResult = result
	m.pendingTicket = ticket
	m.router.RegisterTicket(ticket, m)
}

// OnResultDecrypted consumes the compute service's callback. Stale or
// replayed tickets and out-of-state deliveries are dropped silently —
// there is no caller to report to, and the guard is the point.
func (m *Match) OnResultDecrypted(ticket Ticket, plaintext ResultCode) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateMovesSubmitted || ticket != m.pendingTicket || m.pendingTicket == "" {
		log.Printf("🛡️ [MATCH %d] dropped stale decryption callback (ticket %.8s)", m.roomID, ticket)
		return
	}
	if plaintext > ResultPlayerBWin {
		log.Printf("🛡️ [MATCH %d] dropped decryption with invalid result code %d", m.roomID, plaintext)
		return
	}

	m.resolveLocked(plaintext)
}

// resolveLocked finishes the match with the given result code.
func (m *Match) resolveLocked(code ResultCode) {
	switch code {
	case ResultPlayerAWin:
		m.winner = m.playerA
	case ResultPlayerBWin:
		m.winner = m.playerB
	default:
		m.winner = ZeroAddress
	}
	m.lastResult = code
	m.state = StateResolved
	m.resolvedAt = m.now()
	m.pendingTicket = ""

	m.emit(EventMatchResolved, map[string]string{
		"resultCode": fmt.Sprintf("%d", code),
		"winner":     string(m.winner),
	})
}

// ForceResolve is the timeout escape hatch, callable by anyone once the
// move timeout elapsed. One submitted move wins by forfeit; none ends in
// a tie; both submitted means decryption stalled, so the computation is
// re-triggered with a fresh ticket instead of forfeiting anyone.
func (m *Match) ForceResolve() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateAwaitingMoves && m.state != StateMovesSubmitted {
		return ErrWrongState
	}
	if m.now().Sub(m.lastMoveAt) < m.moveTimeout {
		return ErrTimeoutNotElapsed
	}

	switch {
	case m.moveASubmitted && m.moveBSubmitted:
		// Decryption stalled; orphan the old ticket and ask again.
		m.pendingTicket = ""
		m.lastMoveAt = m.now()
		m.startOutcomeLocked()
	case m.moveASubmitted:
		m.resolveLocked(ResultPlayerAWin)
	case m.moveBSubmitted:
		m.resolveLocked(ResultPlayerBWin)
	default:
		m.emit(EventMatchFailed, map[string]string{"reason": "no moves submitted before timeout"})
		m.resolveLocked(ResultTie)
	}
	return nil
}

// rematchReset clears moves and result while keeping players and stake,
// returning the match to AwaitingMoves. Caller identity and window checks
// happen in the registry, which owns rematch economics.
func (m *Match) rematchReset(caller Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if caller != m.playerA && caller != m.playerB {
		return ErrNotAParticipant
	}
	if m.state != StateResolved {
		return ErrWrongState
	}
	if m.now().Sub(m.resolvedAt) > m.rematchWindow {
		return ErrRematchWindowExpired
	}

	m.moveA, m.moveB = "", ""
	m.moveASubmitted, m.moveBSubmitted = false, false
	m.winner = ZeroAddress
	m.lastResult = ResultTie
	m.encryptedResult = ""
	m.pendingTicket = "" // orphans any in-flight decryption
	m.state = StateAwaitingMoves
	m.lastMoveAt = m.now()
	m.resolvedAt = time.Time{}

	m.emit(EventRematchReady, nil)
	return nil
}

// withinRematchWindow reports whether a rematch request arrives in time.
func (m *Match) withinRematchWindow() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.resolvedAt.IsZero() && m.now().Sub(m.resolvedAt) <= m.rematchWindow
}

// resolution returns the outcome for finalize, failing unless resolved.
func (m *Match) resolution() (winner Address, code ResultCode, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateResolved {
		return ZeroAddress, ResultTie, ErrNotResolved
	}
	return m.winner, m.lastResult, nil
}

// markCompleted is the registry's terminal transition after payout.
func (m *Match) markCompleted() {
	m.mu.Lock()
	m.state = StateCompleted
	m.mu.Unlock()
}

func (m *Match) isParticipant(addr Address) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return addr == m.playerA || addr == m.playerB
}

// State returns the current lifecycle state.
func (m *Match) State() MatchState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// forceResolveEligible tells the sweep job whether calling ForceResolve
// would do anything besides erroring.
func (m *Match) forceResolveEligible() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateAwaitingMoves && m.state != StateMovesSubmitted {
		return false
	}
	return m.now().Sub(m.lastMoveAt) >= m.moveTimeout
}

// Detail snapshots the read model.
func (m *Match) Detail() MatchDetail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MatchDetail{
		MoveASubmitted:      m.moveASubmitted,
		MoveBSubmitted:      m.moveBSubmitted,
		State:               m.state,
		Winner:              m.winner,
		LastResultPlaintext: m.lastResult,
		EncryptedResult:     m.encryptedResult,
	}
}

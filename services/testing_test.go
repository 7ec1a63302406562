package services

import (
	"sync"
	"time"
)

// Shared fixtures. The engine runs in manual mode so each test decides
// exactly when "the network" answers a decryption request.

const (
	alice = Address("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	bob   = Address("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	carol = Address("0xcccccccccccccccccccccccccccccccccccccccc")

	testStake = int64(1000)
)

type fixture struct {
	registry *RegistryService
	ledger   *MemoryLedger
	engine   *DevComputeEngine
	clock    *fakeClock
}

// fakeClock is a movable clock shared by the registry and every match.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newFixture(policy RematchPolicy) *fixture {
	ledger := NewMemoryLedger()
	engine := NewDevComputeEngine()
	engine.Manual = true

	registry := NewRegistryService(RegistryConfig{RematchPolicy: policy}, ledger, engine)
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	registry.nowFn = clock.Now

	ledger.Deposit(alice, 10*testStake)
	ledger.Deposit(bob, 10*testStake)
	ledger.Deposit(carol, 10*testStake)

	return &fixture{registry: registry, ledger: ledger, engine: engine, clock: clock}
}

// openRoom creates a ranked room for alice with sensible timeouts.
func (f *fixture) openRoom() uint64 {
	summary, err := f.registry.CreateRoom(alice, CreateRoomParams{
		Stake:                testStake,
		MoveTimeoutSeconds:   300,
		RematchWindowSeconds: 600,
		RankingEnabled:       true,
		Attached:             testStake,
	})
	if err != nil {
		panic(err)
	}
	return summary.RoomID
}

// pairedRoom opens a room and has bob join it.
func (f *fixture) pairedRoom() uint64 {
	id := f.openRoom()
	if err := f.registry.JoinRoom(bob, id, testStake); err != nil {
		panic(err)
	}
	return id
}

// submit seals a move for the player and submits it.
func (f *fixture) submit(player Address, roomID uint64, m Move) error {
	ct, proof, err := f.engine.EncryptMove(m)
	if err != nil {
		panic(err)
	}
	return f.registry.SubmitMove(player, roomID, ct, proof)
}

// playRound submits both moves and flushes the decryption callback,
// leaving the match Resolved.
func (f *fixture) playRound(roomID uint64, moveA, moveB Move) {
	if err := f.submit(alice, roomID, moveA); err != nil {
		panic(err)
	}
	if err := f.submit(bob, roomID, moveB); err != nil {
		panic(err)
	}
	f.engine.Flush()
}

package services

import (
	"fmt"
	"sync"
)

// Address is a normalized (lowercase) 0x-prefixed wallet address.
type Address string

// ZeroAddress is the "no winner" sentinel, mirroring the on-chain zero
// address in queries and events.
const ZeroAddress Address = "0x0000000000000000000000000000000000000000"

// Transfer is one leg of a payout.
type Transfer struct {
	To     Address
	Amount int64
}

// Ledger is the escrow boundary of the protocol. Amounts are wei as
// int64 — the same fixed-point-in-integers treatment the pot math needs,
// no floats anywhere near funds.
//
// Payout must be atomic: either every transfer lands and the pot reaches
// exactly zero, or nothing moves and ErrTransferFailed surfaces.
type Ledger interface {
	Deposit(addr Address, amount int64)
	Balance(addr Address) int64
	Escrow(roomID uint64, from Address, amount int64) error
	PotBalance(roomID uint64) int64
	Payout(roomID uint64, transfers []Transfer) error
}

// MemoryLedger is the in-process Ledger backing the protocol core.
// A recipient can be flagged as rejecting transfers, which is how the
// suite simulates a payout target that bounces funds.
type MemoryLedger struct {
	mu        sync.Mutex
	balances  map[Address]int64
	pots      map[uint64]int64
	rejecting map[Address]bool
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		balances:  make(map[Address]int64),
		pots:      make(map[uint64]int64),
		rejecting: make(map[Address]bool),
	}
}

func (l *MemoryLedger) Deposit(addr Address, amount int64) {
	l.mu.Lock()
	l.balances[addr] += amount
	l.mu.Unlock()
}

func (l *MemoryLedger) Balance(addr Address) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[addr]
}

// Escrow moves the attached value from the caller's balance into the
// room's pot.
func (l *MemoryLedger) Escrow(roomID uint64, from Address, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("escrow amount must be positive, got %d", amount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balances[from] < amount {
		return ErrInsufficientFunds
	}
	l.balances[from] -= amount
	l.pots[roomID] += amount
	return nil
}

func (l *MemoryLedger) PotBalance(roomID uint64) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pots[roomID]
}

// Payout drains the pot into the given transfers. The transfer sum must
// equal the pot exactly — anything else is a protocol bug, not a caller
// error, so it fails loudly.
func (l *MemoryLedger) Payout(roomID uint64, transfers []Transfer) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var total int64
	for _, t := range transfers {
		if t.Amount < 0 {
			return fmt.Errorf("negative transfer amount %d to %s", t.Amount, t.To)
		}
		total += t.Amount
	}
	if total != l.pots[roomID] {
		return fmt.Errorf("payout sum %d does not drain pot %d for room %d", total, l.pots[roomID], roomID)
	}

	// Reject before touching anything, so a bounced recipient leaves the
	// pot and every balance exactly as they were.
	for _, t := range transfers {
		if l.rejecting[t.To] {
			return ErrTransferFailed
		}
	}

	for _, t := range transfers {
		l.balances[t.To] += t.Amount
	}
	l.pots[roomID] = 0
	return nil
}

// RejectTransfers marks an address as bouncing incoming payouts.
func (l *MemoryLedger) RejectTransfers(addr Address, reject bool) {
	l.mu.Lock()
	l.rejecting[addr] = reject
	l.mu.Unlock()
}

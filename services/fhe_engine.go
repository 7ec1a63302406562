package services

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DevComputeEngine is the in-process stand-in for the confidential
// compute service. It seals plaintext moves under opaque handles and
// keeps them on its side of the boundary, so the protocol core exercises
// the exact same contract it would against a real FHE runtime: handles
// in, handles out, plaintext only through the decryption callback.
//
// Not an encryption scheme — a development/test engine with the right
// observable behavior (proof binding, symmetric outcome rule, async
// single-shot decryption).
type DevComputeEngine struct {
	mu sync.Mutex

	// sealed values, keyed by handle: 0..2 for moves, result codes for outcomes
	values map[Ciphertext]uint8

	proofKey []byte

	cb DecryptionCallback

	// Latency before a decryption callback fires. Ignored in manual mode.
	Latency time.Duration

	// Manual mode queues callbacks until Flush — used by tests to control
	// exactly when "the chain" answers.
	Manual  bool
	pending []pendingDecryption

	delivered map[Ticket]bool
}

type pendingDecryption struct {
	ticket Ticket
	code   ResultCode
}

func NewDevComputeEngine() *DevComputeEngine {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		// crypto/rand failing means the process is in real trouble
		log.Fatal("❌ [FHE] failed to generate proof key:", err)
	}
	return &DevComputeEngine{
		values:    make(map[Ciphertext]uint8),
		proofKey:  key,
		Latency:   200 * time.Millisecond,
		delivered: make(map[Ticket]bool),
	}
}

// EncryptMove is the client-side half of the contract: it produces the
// ciphertext handle and proof a player would obtain from the FHE SDK
// before calling submitMove. Used by the dev faucet flow and tests.
func (e *DevComputeEngine) EncryptMove(m Move) (Ciphertext, Proof, error) {
	if m > MoveScissors {
		return "", "", fmt.Errorf("invalid move value %d", m)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	ct := Ciphertext("enc:" + uuid.NewString())
	e.values[ct] = uint8(m)
	return ct, e.proofFor(ct, uint8(m)), nil
}

func (e *DevComputeEngine) proofFor(ct Ciphertext, value uint8) Proof {
	mac := hmac.New(sha256.New, e.proofKey)
	mac.Write([]byte(ct))
	mac.Write([]byte{value})
	return Proof(hex.EncodeToString(mac.Sum(nil)))
}

// Validate checks that the handle is known to the engine and that the
// proof binds it to the sealed value.
func (e *DevComputeEngine) Validate(ct Ciphertext, proof Proof) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	value, ok := e.values[ct]
	if !ok {
		return ErrInvalidProof
	}
	if !hmac.Equal([]byte(e.proofFor(ct, value)), []byte(proof)) {
		return ErrInvalidProof
	}
	return nil
}

// EvaluateOutcome applies the game rule homomorphically (well: on the
// sealed values) and seals the result under a fresh handle.
// 0 = tie, 1 = first argument wins, 2 = second argument wins.
func (e *DevComputeEngine) EvaluateOutcome(a, b Ciphertext) (Ciphertext, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	va, okA := e.values[a]
	vb, okB := e.values[b]
	if !okA || !okB {
		return "", fmt.Errorf("unknown ciphertext handle")
	}

	// (3 + a - b) % 3: 0 tie, 1 a wins, 2 b wins
	code := (3 + va - vb) % 3

	result := Ciphertext("res:" + uuid.NewString())
	e.values[result] = code
	return result, nil
}

// RequestDecryption schedules exactly one callback for the result handle.
func (e *DevComputeEngine) RequestDecryption(result Ciphertext) (Ticket, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	code, ok := e.values[result]
	if !ok {
		return "", fmt.Errorf("unknown result handle")
	}

	ticket := Ticket(uuid.NewString())
	if e.Manual {
		e.pending = append(e.pending, pendingDecryption{ticket: ticket, code: ResultCode(code)})
		return ticket, nil
	}

	go func() {
		time.Sleep(e.Latency)
		e.deliver(ticket, ResultCode(code))
	}()
	return ticket, nil
}

func (e *DevComputeEngine) SetCallback(cb DecryptionCallback) {
	e.mu.Lock()
	e.cb = cb
	e.mu.Unlock()
}

// Flush delivers all queued decryptions in manual mode and returns how
// many callbacks fired.
func (e *DevComputeEngine) Flush() int {
	e.mu.Lock()
	queued := e.pending
	e.pending = nil
	e.mu.Unlock()

	for _, p := range queued {
		e.deliver(p.ticket, p.code)
	}
	return len(queued)
}

func (e *DevComputeEngine) deliver(ticket Ticket, code ResultCode) {
	e.mu.Lock()
	if e.delivered[ticket] {
		e.mu.Unlock()
		return
	}
	e.delivered[ticket] = true
	cb := e.cb
	e.mu.Unlock()

	if cb != nil {
		cb(ticket, code)
	}
}

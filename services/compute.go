package services

// The confidential compute service is an external collaborator: it holds
// the encryption math, we only hold handles. A move travels as an opaque
// ciphertext plus a correctness proof; the outcome is computed over two
// ciphertexts and only its plaintext result code ever becomes visible,
// asynchronously, through the registered callback.

// Ciphertext is an opaque handle to an encrypted value owned by the
// compute service. The protocol never looks inside.
type Ciphertext string

// Proof accompanies a ciphertext on submission and binds it to a
// well-formed move. Verification is delegated to the compute service.
type Proof string

// Ticket identifies one outstanding decryption request. The callback
// fires exactly once per ticket; anything else is a replay.
type Ticket string

// Move is the plaintext hand choice. It exists client-side and inside
// the compute service only — the protocol core never sees one.
type Move uint8

const (
	MoveRock     Move = 0
	MovePaper    Move = 1
	MoveScissors Move = 2
)

// ResultCode is the decrypted match outcome.
type ResultCode uint8

const (
	ResultTie        ResultCode = 0
	ResultPlayerAWin ResultCode = 1
	ResultPlayerBWin ResultCode = 2
)

// DecryptionCallback receives the plaintext result for a ticket.
// It is invoked from the compute service's own goroutine, never from
// inside a protocol call.
type DecryptionCallback func(ticket Ticket, plaintext ResultCode)

// ComputeService is the contract the match protocol depends on.
//
// EvaluateOutcome is pure, deterministic and symmetric over the game
// rule (rock beats scissors, scissors beats paper, paper beats rock,
// equal moves tie). RequestDecryption is single-shot: one callback per
// ticket, after arbitrary latency.
type ComputeService interface {
	Validate(ct Ciphertext, proof Proof) error
	EvaluateOutcome(a, b Ciphertext) (Ciphertext, error)
	RequestDecryption(result Ciphertext) (Ticket, error)
	SetCallback(cb DecryptionCallback)
}

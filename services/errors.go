package services

import "errors"

// Protocol errors. Handlers map these to HTTP codes; callers inside the
// service compare with errors.Is. Every operation validates against this
// taxonomy before mutating anything, so an error always means "no state
// changed".
var (
	// Validation errors — caller-attributable, rejected immediately.
	ErrInvalidStake         = errors.New("stake must be non-zero and match the attached value")
	ErrUnknownRoom          = errors.New("room not found")
	ErrAlreadyJoined        = errors.New("room already has an opponent")
	ErrNotAParticipant      = errors.New("caller is not a player in this match")
	ErrMoveAlreadySubmitted = errors.New("move already submitted for this player")
	ErrInvalidProof         = errors.New("ciphertext does not validate against its proof")
	ErrInsufficientFunds    = errors.New("caller balance does not cover the attached value")

	// State errors — the call is a no-op for the current state; safe to retry.
	ErrWrongState           = errors.New("operation not valid in the current match state")
	ErrNotResolved          = errors.New("match is not resolved yet")
	ErrAlreadyCompleted     = errors.New("room already finalized")
	ErrTimeoutNotElapsed    = errors.New("move timeout has not elapsed")
	ErrRematchWindowExpired = errors.New("rematch window has expired")

	// Transfer errors — fatal to the finalize call, never partial.
	ErrTransferFailed = errors.New("payout transfer rejected by recipient")
)

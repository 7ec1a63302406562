package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineEncryptAndValidate(t *testing.T) {
	e := NewDevComputeEngine()

	ct, proof, err := e.EncryptMove(MovePaper)
	require.NoError(t, err)
	require.NotEmpty(t, ct)
	require.NotEmpty(t, proof)

	assert.NoError(t, e.Validate(ct, proof))
}

func TestEngineValidateRejectsTamperedProof(t *testing.T) {
	e := NewDevComputeEngine()

	ct, _, err := e.EncryptMove(MoveRock)
	require.NoError(t, err)

	assert.ErrorIs(t, e.Validate(ct, Proof("deadbeef")), ErrInvalidProof)
	assert.ErrorIs(t, e.Validate(Ciphertext("enc:forged"), Proof("deadbeef")), ErrInvalidProof)
}

func TestEngineValidateRejectsProofFromOtherCiphertext(t *testing.T) {
	e := NewDevComputeEngine()

	ct1, _, err := e.EncryptMove(MoveRock)
	require.NoError(t, err)
	_, proof2, err := e.EncryptMove(MoveScissors)
	require.NoError(t, err)

	assert.ErrorIs(t, e.Validate(ct1, proof2), ErrInvalidProof)
}

func TestEngineRejectsOutOfRangeMove(t *testing.T) {
	e := NewDevComputeEngine()
	_, _, err := e.EncryptMove(Move(3))
	require.Error(t, err)
}

func TestEngineOutcomeCodes(t *testing.T) {
	cases := []struct {
		name string
		a, b Move
		want ResultCode
	}{
		{"rock vs rock ties", MoveRock, MoveRock, ResultTie},
		{"rock beats scissors", MoveRock, MoveScissors, ResultPlayerAWin},
		{"rock loses to paper", MoveRock, MovePaper, ResultPlayerBWin},
		{"paper beats rock", MovePaper, MoveRock, ResultPlayerAWin},
		{"scissors beat paper", MoveScissors, MovePaper, ResultPlayerAWin},
		{"scissors lose to rock", MoveScissors, MoveRock, ResultPlayerBWin},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := NewDevComputeEngine()
			e.Manual = true

			var got ResultCode
			e.SetCallback(func(_ Ticket, code ResultCode) { got = code })

			ctA, _, err := e.EncryptMove(tc.a)
			require.NoError(t, err)
			ctB, _, err := e.EncryptMove(tc.b)
			require.NoError(t, err)

			result, err := e.EvaluateOutcome(ctA, ctB)
			require.NoError(t, err)

			_, err = e.RequestDecryption(result)
			require.NoError(t, err)
			require.Equal(t, 1, e.Flush())

			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEngineEvaluateRejectsUnknownHandles(t *testing.T) {
	e := NewDevComputeEngine()
	ct, _, err := e.EncryptMove(MoveRock)
	require.NoError(t, err)

	_, err = e.EvaluateOutcome(ct, Ciphertext("enc:unknown"))
	require.Error(t, err)
	_, err = e.RequestDecryption(Ciphertext("res:unknown"))
	require.Error(t, err)
}

func TestEngineDeliversEachTicketOnce(t *testing.T) {
	e := NewDevComputeEngine()
	e.Manual = true

	fired := 0
	e.SetCallback(func(Ticket, ResultCode) { fired++ })

	ctA, _, _ := e.EncryptMove(MoveRock)
	ctB, _, _ := e.EncryptMove(MoveScissors)
	result, err := e.EvaluateOutcome(ctA, ctB)
	require.NoError(t, err)
	ticket, err := e.RequestDecryption(result)
	require.NoError(t, err)

	require.Equal(t, 1, e.Flush())
	assert.Equal(t, 0, e.Flush(), "second flush has nothing queued")

	// A replayed delivery for an already-consumed ticket is swallowed.
	e.deliver(ticket, ResultPlayerAWin)
	assert.Equal(t, 1, fired)
}

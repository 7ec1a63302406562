package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRoomEscrowsStakeAndCounts(t *testing.T) {
	f := newFixture(RematchReuseEscrow)

	summary, err := f.registry.CreateRoom(alice, CreateRoomParams{
		Stake:          testStake,
		Label:          "friday showdown",
		RankingEnabled: true,
		Attached:       testStake,
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(1), summary.RoomID, "room ids start at 1")
	assert.Equal(t, uint64(1), f.registry.RoomCount())
	assert.Equal(t, alice, summary.PlayerA)
	assert.Equal(t, ZeroAddress, summary.PlayerB)
	assert.Equal(t, "Friday Showdown", summary.Label)
	assert.Equal(t, "friday-showdown", summary.Slug)
	assert.Len(t, summary.ContractAddress, 42)

	assert.Equal(t, 9*testStake, f.ledger.Balance(alice))
	assert.Equal(t, testStake, f.ledger.PotBalance(summary.RoomID))

	second := f.openRoom()
	assert.Equal(t, uint64(2), second, "ids are sequential")
}

func TestCreateRoomValidation(t *testing.T) {
	f := newFixture(RematchReuseEscrow)

	_, err := f.registry.CreateRoom(alice, CreateRoomParams{Stake: 0, Attached: 0})
	assert.ErrorIs(t, err, ErrInvalidStake)

	_, err = f.registry.CreateRoom(alice, CreateRoomParams{Stake: testStake, Attached: testStake - 1})
	assert.ErrorIs(t, err, ErrInvalidStake)

	poor := Address("0xdddddddddddddddddddddddddddddddddddddddd")
	_, err = f.registry.CreateRoom(poor, CreateRoomParams{Stake: testStake, Attached: testStake})
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	assert.Zero(t, f.registry.RoomCount(), "failed creates never burn an id")
}

func TestJoinRoomValidation(t *testing.T) {
	f := newFixture(RematchReuseEscrow)
	id := f.openRoom()

	assert.ErrorIs(t, f.registry.JoinRoom(bob, 99, testStake), ErrUnknownRoom)
	assert.ErrorIs(t, f.registry.JoinRoom(bob, id, testStake+1), ErrInvalidStake)
	assert.ErrorIs(t, f.registry.JoinRoom(alice, id, testStake), ErrAlreadyJoined, "creator cannot take the second seat")

	require.NoError(t, f.registry.JoinRoom(bob, id, testStake))
	assert.ErrorIs(t, f.registry.JoinRoom(carol, id, testStake), ErrAlreadyJoined)

	assert.Equal(t, 2*testStake, f.ledger.PotBalance(id))
	assert.Equal(t, 9*testStake, f.ledger.Balance(bob))
	assert.Equal(t, 10*testStake, f.ledger.Balance(carol), "rejected join must not escrow")
}

func TestFinalizePaysWinnerWholePot(t *testing.T) {
	f := newFixture(RematchReuseEscrow)
	id := f.pairedRoom()
	f.playRound(id, MoveScissors, MovePaper)

	require.NoError(t, f.registry.FinalizeMatch(id))

	assert.Equal(t, 11*testStake, f.ledger.Balance(alice), "winner collects both stakes")
	assert.Equal(t, 9*testStake, f.ledger.Balance(bob))
	assert.Zero(t, f.ledger.PotBalance(id))

	info, _ := f.registry.GetRoomInfo(id)
	assert.True(t, info.Completed)
	detail, _ := f.registry.GetMatchDetail(id)
	assert.Equal(t, StateCompleted, detail.State)
}

func TestFinalizeRefundsBothOnTie(t *testing.T) {
	f := newFixture(RematchReuseEscrow)
	id := f.pairedRoom()
	f.playRound(id, MoveRock, MoveRock)

	require.NoError(t, f.registry.FinalizeMatch(id))

	assert.Equal(t, 10*testStake, f.ledger.Balance(alice))
	assert.Equal(t, 10*testStake, f.ledger.Balance(bob))
	assert.Zero(t, f.ledger.PotBalance(id))
}

func TestFinalizeExactlyOnce(t *testing.T) {
	f := newFixture(RematchReuseEscrow)
	id := f.pairedRoom()
	f.playRound(id, MoveRock, MoveScissors)

	require.NoError(t, f.registry.FinalizeMatch(id))
	assert.ErrorIs(t, f.registry.FinalizeMatch(id), ErrAlreadyCompleted)

	assert.Equal(t, 11*testStake, f.ledger.Balance(alice), "double finalize must not pay twice")
}

func TestFinalizeRequiresResolution(t *testing.T) {
	f := newFixture(RematchReuseEscrow)
	id := f.pairedRoom()

	assert.ErrorIs(t, f.registry.FinalizeMatch(id), ErrNotResolved)

	require.NoError(t, f.submit(alice, id, MoveRock))
	require.NoError(t, f.submit(bob, id, MovePaper))
	assert.ErrorIs(t, f.registry.FinalizeMatch(id), ErrNotResolved, "MovesSubmitted is not resolved")

	assert.ErrorIs(t, f.registry.FinalizeMatch(42), ErrUnknownRoom)
}

func TestFinalizeRollsBackOnRejectedTransfer(t *testing.T) {
	f := newFixture(RematchReuseEscrow)
	id := f.pairedRoom()
	f.playRound(id, MovePaper, MoveRock)

	f.ledger.RejectTransfers(alice, true)
	err := f.registry.FinalizeMatch(id)
	require.ErrorIs(t, err, ErrTransferFailed)

	info, _ := f.registry.GetRoomInfo(id)
	assert.False(t, info.Completed, "failed finalize leaves the room open")
	assert.Equal(t, 2*testStake, f.ledger.PotBalance(id))
	assert.Empty(t, f.registry.GetLeaderboard(-1), "no ranking on a failed finalize")

	detail, _ := f.registry.GetMatchDetail(id)
	assert.Equal(t, StateResolved, detail.State)

	// Retry succeeds once the recipient accepts.
	f.ledger.RejectTransfers(alice, false)
	require.NoError(t, f.registry.FinalizeMatch(id))
	assert.Equal(t, 11*testStake, f.ledger.Balance(alice))
}

func TestFinalizeUpdatesLeaderboardForRankedRooms(t *testing.T) {
	f := newFixture(RematchReuseEscrow)
	id := f.pairedRoom()
	f.playRound(id, MoveRock, MoveScissors)
	require.NoError(t, f.registry.FinalizeMatch(id))

	board := f.registry.GetLeaderboard(-1)
	require.Len(t, board, 2)
	assert.Equal(t, alice, board[0].Player)
	assert.Equal(t, uint64(3), board[0].Points)
	assert.Equal(t, uint32(1), board[0].Wins)
	assert.Equal(t, bob, board[1].Player)
	assert.Zero(t, board[1].Points)
	assert.Equal(t, uint32(1), board[1].Losses)
}

func TestFinalizeSkipsLeaderboardForCasualRooms(t *testing.T) {
	f := newFixture(RematchReuseEscrow)

	summary, err := f.registry.CreateRoom(alice, CreateRoomParams{
		Stake:          testStake,
		RankingEnabled: false,
		Attached:       testStake,
	})
	require.NoError(t, err)
	id := summary.RoomID
	require.NoError(t, f.registry.JoinRoom(bob, id, testStake))
	f.playRound(id, MoveRock, MoveScissors)

	require.NoError(t, f.registry.FinalizeMatch(id))
	assert.Empty(t, f.registry.GetLeaderboard(-1))
	assert.Equal(t, 11*testStake, f.ledger.Balance(alice), "payout happens either way")
}

func TestRematchReusesEscrowWhileResolved(t *testing.T) {
	f := newFixture(RematchReuseEscrow)
	id := f.pairedRoom()
	f.playRound(id, MoveRock, MoveScissors)

	_, err := f.registry.Rematch(bob, id, testStake)
	assert.ErrorIs(t, err, ErrInvalidStake, "escrow carries over; no fresh stake accepted")

	summary, err := f.registry.Rematch(bob, id, 0)
	require.NoError(t, err)
	assert.Equal(t, id, summary.RoomID, "same room keeps playing")

	detail, _ := f.registry.GetMatchDetail(id)
	assert.Equal(t, StateAwaitingMoves, detail.State)
	assert.False(t, detail.MoveASubmitted)
	assert.False(t, detail.MoveBSubmitted)
	assert.Equal(t, ZeroAddress, detail.Winner)
	assert.Empty(t, detail.EncryptedResult)
	assert.Equal(t, 2*testStake, f.ledger.PotBalance(id), "pot untouched across rounds")

	// Second round settles the whole pot once.
	f.playRound(id, MovePaper, MoveScissors)
	require.NoError(t, f.registry.FinalizeMatch(id))
	assert.Equal(t, 11*testStake, f.ledger.Balance(bob))
}

func TestRematchRejectsOutsidersAndLateRequests(t *testing.T) {
	f := newFixture(RematchReuseEscrow)
	id := f.pairedRoom()
	f.playRound(id, MoveRock, MoveScissors)

	_, err := f.registry.Rematch(carol, id, 0)
	assert.ErrorIs(t, err, ErrNotAParticipant)

	f.clock.Advance(601 * time.Second)
	_, err = f.registry.Rematch(alice, id, 0)
	assert.ErrorIs(t, err, ErrRematchWindowExpired)

	_, err = f.registry.Rematch(alice, 42, 0)
	assert.ErrorIs(t, err, ErrUnknownRoom)
}

func TestRematchInvalidStates(t *testing.T) {
	f := newFixture(RematchReuseEscrow)
	id := f.pairedRoom()

	_, err := f.registry.Rematch(alice, id, 0)
	assert.ErrorIs(t, err, ErrWrongState, "nothing to rematch before resolution")

	f.playRound(id, MoveRock, MoveScissors)
	require.NoError(t, f.registry.FinalizeMatch(id))
	_, err = f.registry.Rematch(alice, id, 0)
	assert.ErrorIs(t, err, ErrWrongState, "reuse-escrow policy ends at finalize")
}

func TestRematchFreshStakeSpawnsSuccessorRoom(t *testing.T) {
	f := newFixture(RematchFreshStake)
	id := f.pairedRoom()
	f.playRound(id, MoveRock, MoveScissors)
	require.NoError(t, f.registry.FinalizeMatch(id))

	successor, err := f.registry.Rematch(bob, id, testStake)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), successor.RoomID)
	assert.Equal(t, id, successor.RematchOf)
	assert.Equal(t, bob, successor.PlayerA, "the requester opens the successor")
	assert.Equal(t, testStake, f.ledger.PotBalance(successor.RoomID))

	info, _ := f.registry.GetRoomInfo(id)
	assert.True(t, info.Completed, "the settled room stays settled")

	// The opponent re-stakes by joining, and the pairing plays on.
	require.NoError(t, f.registry.JoinRoom(alice, successor.RoomID, testStake))
	detail, _ := f.registry.GetMatchDetail(successor.RoomID)
	assert.Equal(t, StateAwaitingMoves, detail.State)
}

func TestRematchFreshStakeGuards(t *testing.T) {
	f := newFixture(RematchFreshStake)
	id := f.pairedRoom()
	f.playRound(id, MoveRock, MoveScissors)
	require.NoError(t, f.registry.FinalizeMatch(id))

	_, err := f.registry.Rematch(carol, id, testStake)
	assert.ErrorIs(t, err, ErrNotAParticipant)

	f.clock.Advance(601 * time.Second)
	_, err = f.registry.Rematch(bob, id, testStake)
	assert.ErrorIs(t, err, ErrRematchWindowExpired)
}

func TestSweepTimeoutsResolvesStalledMatches(t *testing.T) {
	f := newFixture(RematchReuseEscrow)
	stalled := f.pairedRoom()
	require.NoError(t, f.submit(alice, stalled, MoveRock))

	healthy := f.openRoom()
	require.NoError(t, f.registry.JoinRoom(carol, healthy, testStake))

	f.clock.Advance(301 * time.Second)
	// The healthy room sees a fresh move after the clock jump.
	require.NoError(t, f.submit(carol, healthy, MovePaper))

	assert.Equal(t, 1, f.registry.SweepTimeouts())

	detail, _ := f.registry.GetMatchDetail(stalled)
	assert.Equal(t, StateResolved, detail.State)
	assert.Equal(t, alice, detail.Winner)

	detail, _ = f.registry.GetMatchDetail(healthy)
	assert.Equal(t, StateAwaitingMoves, detail.State, "recent activity protects the match")
}

func TestTimelineRecordsMatchHistory(t *testing.T) {
	f := newFixture(RematchReuseEscrow)
	id := f.pairedRoom()
	f.playRound(id, MoveRock, MoveScissors)
	require.NoError(t, f.registry.FinalizeMatch(id))

	events, err := f.registry.Timeline(id)
	require.NoError(t, err)

	var types []string
	for _, ev := range events {
		types = append(types, ev.Type)
		assert.Equal(t, id, ev.RoomID)
	}
	assert.Equal(t, []string{
		EventRoomCreated,
		EventRoomJoined,
		EventMoveSubmitted,
		EventMoveSubmitted,
		EventMatchResolved,
		EventMatchFinalized,
	}, types)

	for _, ev := range events {
		if ev.Type == EventMoveSubmitted {
			assert.NotContains(t, ev.Attributes, "move", "timeline never leaks move content")
			assert.Contains(t, ev.Attributes, "player")
		}
	}

	_, err = f.registry.Timeline(42)
	assert.ErrorIs(t, err, ErrUnknownRoom)
}

func TestListRoomsOrderedById(t *testing.T) {
	f := newFixture(RematchReuseEscrow)
	first := f.openRoom()
	second := f.openRoom()

	rooms := f.registry.ListRooms()
	require.Len(t, rooms, 2)
	assert.Equal(t, first, rooms[0].RoomID)
	assert.Equal(t, second, rooms[1].RoomID)

	_, err := f.registry.GetRoomInfo(99)
	assert.ErrorIs(t, err, ErrUnknownRoom)
}

func TestMirrorExportsReflectRegistryState(t *testing.T) {
	f := newFixture(RematchReuseEscrow)
	id := f.pairedRoom()
	f.playRound(id, MoveRock, MoveScissors)
	require.NoError(t, f.registry.FinalizeMatch(id))

	rooms := f.registry.ExportRooms()
	require.Len(t, rooms, 1)
	assert.Equal(t, id, rooms[0].RoomID)
	assert.True(t, rooms[0].Completed)
	assert.Equal(t, uint8(StateCompleted), rooms[0].State)
	assert.Equal(t, string(alice), rooms[0].Winner)

	board := f.registry.ExportLeaderboard()
	require.Len(t, board, 2)
	assert.Equal(t, 1, board[0].Rank)
	assert.Equal(t, string(alice), board[0].Player)

	events, cursor := f.registry.ExportEventsSince(0)
	assert.Len(t, events, 6)
	assert.Equal(t, 6, cursor)

	more, next := f.registry.ExportEventsSince(cursor)
	assert.Empty(t, more, "cursor drains incrementally")
	assert.Equal(t, cursor, next)
}

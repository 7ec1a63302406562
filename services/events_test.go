package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventLogCursorSemantics(t *testing.T) {
	l := NewEventLog()
	l.Emit(1, EventRoomCreated, nil)
	l.Emit(1, EventRoomJoined, map[string]string{"player": string(bob)})
	l.Emit(2, EventRoomCreated, nil)

	batch, cursor := l.Since(0)
	require.Len(t, batch, 3)
	assert.Equal(t, 3, cursor)

	batch, cursor = l.Since(cursor)
	assert.Empty(t, batch)
	assert.Equal(t, 3, cursor)

	l.Emit(2, EventRoomJoined, nil)
	batch, cursor = l.Since(cursor)
	require.Len(t, batch, 1)
	assert.Equal(t, 4, cursor)
	assert.Equal(t, EventRoomJoined, batch[0].Type)
}

func TestEventLogForRoomFilters(t *testing.T) {
	l := NewEventLog()
	l.Emit(1, EventRoomCreated, nil)
	l.Emit(2, EventRoomCreated, nil)
	l.Emit(1, EventMatchResolved, nil)

	events := l.ForRoom(1)
	require.Len(t, events, 2)
	for _, ev := range events {
		assert.Equal(t, uint64(1), ev.RoomID)
		assert.NotEmpty(t, ev.ID)
	}
}

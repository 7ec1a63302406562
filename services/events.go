package services

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types, named after the on-chain events observers reconstruct
// timelines from.
const (
	EventRoomCreated    = "RoomCreated"
	EventRoomJoined     = "RoomJoined"
	EventMoveSubmitted  = "MoveSubmitted"
	EventMatchResolved  = "MatchResolved"
	EventMatchFailed    = "MatchFailed"
	EventRematchReady   = "RematchReady"
	EventMatchFinalized = "MatchFinalized"
)

// MatchEvent is one append-only timeline entry. MoveSubmitted carries the
// player only — never move content.
type MatchEvent struct {
	ID         string
	RoomID     uint64
	Type       string
	Attributes map[string]string
	At         time.Time
}

// EventLog is the registry's append-only event stream. The mirror worker
// drains it incrementally via Since; queries go through ForRoom.
type EventLog struct {
	mu     sync.Mutex
	events []MatchEvent
	now    func() time.Time
}

func NewEventLog() *EventLog {
	return &EventLog{now: time.Now}
}

func (l *EventLog) Emit(roomID uint64, eventType string, attributes map[string]string) {
	if attributes == nil {
		attributes = map[string]string{}
	}
	l.mu.Lock()
	l.events = append(l.events, MatchEvent{
		ID:         uuid.NewString(),
		RoomID:     roomID,
		Type:       eventType,
		Attributes: attributes,
		At:         l.now(),
	})
	l.mu.Unlock()
}

// Since returns events from the given cursor onward plus the new cursor.
func (l *EventLog) Since(cursor int) ([]MatchEvent, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cursor < 0 {
		cursor = 0
	}
	if cursor >= len(l.events) {
		return nil, len(l.events)
	}
	out := append([]MatchEvent(nil), l.events[cursor:]...)
	return out, len(l.events)
}

func (l *EventLog) ForRoom(roomID uint64) []MatchEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []MatchEvent
	for _, ev := range l.events {
		if ev.RoomID == roomID {
			out = append(out, ev)
		}
	}
	return out
}

func (l *EventLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

package models

import "time"

// MatchEvent is one mirrored timeline entry. Append-only: rows are
// inserted by the mirror worker and never updated or deleted, so
// observers can reconstruct a room's full history.
type MatchEvent struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	EventID    string    `gorm:"type:uuid;uniqueIndex;not null" json:"event_id"`
	RoomID     uint64    `gorm:"index;not null" json:"room_id"`
	Type       string    `gorm:"type:varchar(32);index;not null" json:"type"`
	Attributes string    `gorm:"type:jsonb" json:"attributes"` // JSON-encoded map
	At         time.Time `gorm:"index" json:"at"`
}

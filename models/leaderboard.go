package models

import "time"

// LeaderboardEntry mirrors one player's ranked-match record, with the
// rank precomputed at flush time so reads need no sorting.
type LeaderboardEntry struct {
	ID     uint   `gorm:"primaryKey;autoIncrement" json:"-"`
	Player string `gorm:"type:varchar(64);uniqueIndex;not null" json:"player"`
	Points uint64 `json:"points"`
	Wins   uint32 `json:"wins"`
	Losses uint32 `json:"losses"`
	Ties   uint32 `json:"ties"`
	Rank   int    `gorm:"index" json:"rank"`

	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

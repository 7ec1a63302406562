package models

import "time"

// Room mirrors one registry room into Postgres for history queries and
// the presentation layer. The protocol core is authoritative; this table
// is refreshed by the mirror worker and never read back into the core.
type Room struct {
	ID              uint   `gorm:"primaryKey;autoIncrement" json:"-"`
	RoomID          uint64 `gorm:"uniqueIndex;not null" json:"room_id"`
	ContractAddress string `gorm:"type:varchar(64);index" json:"contract_address"`
	Label           string `json:"label,omitempty"`
	Slug            string `gorm:"index" json:"slug,omitempty"`
	PlayerA         string `gorm:"type:varchar(64);index" json:"player_a"`
	PlayerB         string `gorm:"type:varchar(64);index" json:"player_b"`
	Stake           int64  `json:"stake"` // wei
	RankingEnabled  bool   `json:"ranking_enabled"`
	Completed       bool   `gorm:"index" json:"completed"`
	RematchOf       uint64 `json:"rematch_of,omitempty"`

	// Match detail snapshot
	State          uint8  `json:"state"`
	Winner         string `gorm:"type:varchar(64)" json:"winner"`
	LastResult     uint8  `json:"last_result"`
	MoveASubmitted bool   `json:"move_a_submitted"`
	MoveBSubmitted bool   `json:"move_b_submitted"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

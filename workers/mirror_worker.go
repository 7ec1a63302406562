package workers

import (
	"context"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cipher-match-system/services"
)

// MirrorClient flushes the in-memory registry state into Postgres so
// dashboards and recovery tooling can read it without touching the live
// protocol core. The core stays authoritative; the mirror is write-only.
type MirrorClient struct {
	DB       *gorm.DB
	Registry *services.RegistryService

	eventCursor int
}

func NewMirrorClient(db *gorm.DB, registry *services.RegistryService) *MirrorClient {
	return &MirrorClient{DB: db, Registry: registry}
}

// PollMirror runs the flush loop until ctx is cancelled.
func PollMirror(ctx context.Context, client *MirrorClient, pollInterval time.Duration) {
	log.Println("Starting state mirror polling (DB-backed)...")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("State mirror polling stopped.")
			return
		case <-ticker.C:
			client.FlushOnce()
		}
	}
}

// FlushOnce pushes rooms, leaderboard and any new events. Each section is
// independent; a failed upsert is retried on the next tick.
func (c *MirrorClient) FlushOnce() {
	rooms := c.Registry.ExportRooms()
	if len(rooms) > 0 {
		if err := c.DB.Clauses(
			clause.OnConflict{
				Columns: []clause.Column{{Name: "room_id"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"player_a",
					"player_b",
					"completed",
					"state",
					"winner",
					"last_result",
					"move_a_submitted",
					"move_b_submitted",
					"updated_at",
				}),
			},
		).Create(&rooms).Error; err != nil {
			log.Printf("❌ Failed to upsert %d room(s) into mirror: %v", len(rooms), err)
		}
	}

	board := c.Registry.ExportLeaderboard()
	if len(board) > 0 {
		if err := c.DB.Clauses(
			clause.OnConflict{
				Columns: []clause.Column{{Name: "player"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"points",
					"wins",
					"losses",
					"ties",
					"rank",
					"updated_at",
				}),
			},
		).Create(&board).Error; err != nil {
			log.Printf("❌ Failed to upsert %d leaderboard row(s) into mirror: %v", len(board), err)
		}
	}

	events, next := c.Registry.ExportEventsSince(c.eventCursor)
	if len(events) == 0 {
		return
	}
	if err := c.DB.Clauses(
		clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoNothing: true,
		},
	).Create(&events).Error; err != nil {
		// Cursor stays put — same window is retried next tick.
		log.Printf("❌ Failed to insert %d event(s) into mirror: %v", len(events), err)
		return
	}
	c.eventCursor = next
	log.Printf("📥 Mirrored %d new match event(s).", len(events))
}

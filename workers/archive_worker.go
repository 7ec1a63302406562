package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"cipher-match-system/services"
	"cipher-match-system/utils"
)

// TimelineArchiver uploads the full event timeline of each finalized room to
// R2 as a JSON document, once per room.
type TimelineArchiver struct {
	Registry *services.RegistryService

	archived map[uint64]bool
}

func NewTimelineArchiver(registry *services.RegistryService) *TimelineArchiver {
	return &TimelineArchiver{
		Registry: registry,
		archived: make(map[uint64]bool),
	}
}

func PollTimelineArchive(ctx context.Context, archiver *TimelineArchiver, pollInterval time.Duration) {
	if !utils.R2Enabled() {
		log.Println("➡️ R2 archive not configured, timeline archiver disabled.")
		return
	}
	log.Println("Starting timeline archive polling (R2-backed)...")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Timeline archive polling stopped.")
			return
		case <-ticker.C:
			archiver.ArchiveOnce()
		}
	}
}

// ArchiveOnce uploads timelines for newly finalized rooms.
func (a *TimelineArchiver) ArchiveOnce() {
	for _, room := range a.Registry.ListRooms() {
		if !room.Completed || a.archived[room.RoomID] {
			continue
		}

		events, err := a.Registry.Timeline(room.RoomID)
		if err != nil {
			continue
		}
		doc := struct {
			RoomID     uint64                `json:"room_id"`
			Label      string                `json:"label"`
			ArchivedAt time.Time             `json:"archived_at"`
			Events     []services.MatchEvent `json:"events"`
		}{room.RoomID, room.Label, time.Now().UTC(), events}

		payload, err := json.Marshal(doc)
		if err != nil {
			log.Printf("❌ Failed to serialize timeline for room %d: %v", room.RoomID, err)
			continue
		}

		key := fmt.Sprintf("timelines/room-%d.json", room.RoomID)
		url, err := utils.UploadJSONToR2(payload, key)
		if err != nil {
			// Not marked archived — retried next tick.
			log.Printf("❌ Failed to archive timeline for room %d: %v", room.RoomID, err)
			continue
		}

		a.archived[room.RoomID] = true
		log.Printf("✅ Archived timeline for room %d → %s", room.RoomID, url)
	}
}

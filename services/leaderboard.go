package services

import "sort"

// Leaderboard point policy: win 3, tie 1, loss 0.
const (
	pointsPerWin = 3
	pointsPerTie = 1
)

// LeaderboardEntry is one player's accumulated ranked-match record.
// Counters only ever grow; an entry is created on a player's first
// finalized ranked match and never removed.
type LeaderboardEntry struct {
	Player Address `json:"player"`
	Points uint64  `json:"points"`
	Wins   uint32  `json:"wins"`
	Losses uint32  `json:"losses"`
	Ties   uint32  `json:"ties"`

	// seq is the registration order, the final ranking tiebreaker.
	seq int
}

// leaderboard holds every ranked player's entry in insertion order.
// Not safe for concurrent use on its own — the registry mutex guards it.
type leaderboard struct {
	entries map[Address]*LeaderboardEntry
	nextSeq int
}

func newLeaderboard() *leaderboard {
	return &leaderboard{entries: make(map[Address]*LeaderboardEntry)}
}

func (b *leaderboard) entry(player Address) *LeaderboardEntry {
	e, ok := b.entries[player]
	if !ok {
		e = &LeaderboardEntry{Player: player, seq: b.nextSeq}
		b.nextSeq++
		b.entries[player] = e
	}
	return e
}

func (b *leaderboard) recordWin(player Address) {
	e := b.entry(player)
	e.Points += pointsPerWin
	e.Wins++
}

func (b *leaderboard) recordLoss(player Address) {
	b.entry(player).Losses++
}

func (b *leaderboard) recordTie(player Address) {
	e := b.entry(player)
	e.Points += pointsPerTie
	e.Ties++
}

// top returns up to limit entries ordered by points desc, wins desc,
// then earliest registration. A limit beyond the table size returns
// everything; the result is a copy, safe to hand out.
func (b *leaderboard) top(limit int) []LeaderboardEntry {
	ranked := make([]LeaderboardEntry, 0, len(b.entries))
	for _, e := range b.entries {
		ranked = append(ranked, *e)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Points != ranked[j].Points {
			return ranked[i].Points > ranked[j].Points
		}
		if ranked[i].Wins != ranked[j].Wins {
			return ranked[i].Wins > ranked[j].Wins
		}
		return ranked[i].seq < ranked[j].seq
	})
	if limit >= 0 && limit < len(ranked) {
		ranked = ranked[:limit]
	}
	return ranked
}

func (b *leaderboard) snapshot() []LeaderboardEntry {
	return b.top(-1)
}

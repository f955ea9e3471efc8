// Package league defines the platform data the crawler walks: summoners,
// matches, and queues.
package league

import (
	"time"

	"github.com/omarathon/riot-api-crawler/internal/rank"
)

// Summoner is a player on one platform. Identity is (Platform, ID).
type Summoner struct {
	// Platform is the shard the account lives on, e.g. "euw1".
	Platform string
	// ID is the platform-stable identifier (a PUUID for the Riot adapter).
	ID string
	// Name is the display name; informational only.
	Name string
	// Ranks is cached rank info per queue. A nil map means "unknown, ask the platform";
	// a non-nil empty map means the summoner is known to be unranked.
	Ranks map[Queue]rank.Rank
}

// Key returns the identity used for dedup.
func (s Summoner) Key() string {
	return s.Platform + ":" + s.ID
}

func (s Summoner) String() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Key()
}

// Participant is one player's slot in a match with the outcome data we keep.
type Participant struct {
	Summoner   Summoner
	TeamID     int
	Win        bool
	Champion   string
	Kills      int
	Deaths     int
	Assists    int
	GoldEarned int
	// GoldTimeline is the cumulative gold at every GoldMarkInterval, followed by
	// the final total when the match did not end on a mark. Empty when the
	// platform served no timeline.
	GoldTimeline []int
}

// GoldMarkInterval spaces the samples in Participant.GoldTimeline.
const GoldMarkInterval = 10 * time.Minute

// Match is an immutable completed game.
type Match struct {
	ID           string
	Platform     string
	Queue        Queue
	Participants []Participant
	StartedAt    time.Time
	Duration     time.Duration
}

// Summoners returns the participant summoners in slot order.
func (m Match) Summoners() []Summoner {
	out := make([]Summoner, 0, len(m.Participants))
	for _, p := range m.Participants {
		out = append(out, p.Summoner)
	}
	return out
}

// GoldPerMinute returns p's gold rate over the match duration, or 0 for
// matches without a duration.
func (m Match) GoldPerMinute(p Participant) float64 {
	minutes := m.Duration.Minutes()
	if minutes <= 0 {
		return 0
	}
	return float64(p.GoldEarned) / minutes
}

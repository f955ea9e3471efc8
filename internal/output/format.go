package output

import (
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/omarathon/riot-api-crawler/internal/sink"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Formatter renders an envelope as a record.
type Formatter interface {
	Format(env Envelope) (sink.Record, error)
}

// Key is the record key of env: "<crawler>/<match id>".
func Key(env Envelope) string {
	if env.Crawler == "" {
		return env.Match.ID
	}
	return env.Crawler + "/" + env.Match.ID
}

type matchRecord struct {
	Match      matchBody `json:"match"`
	Rank       *rankBody `json:"rank,omitempty"`
	Crawler    string    `json:"crawler,omitempty"`
	RunID      string    `json:"runId,omitempty"`
	CapturedAt time.Time `json:"capturedAt"`
}

type matchBody struct {
	ID              string       `json:"id"`
	Platform        string       `json:"platform"`
	Queue           string       `json:"queue"`
	StartedAt       time.Time    `json:"startedAt"`
	DurationSeconds int64        `json:"durationSeconds"`
	CoreData        coreDataBody `json:"coreData"`
}

type coreDataBody struct {
	Participants []participantBody `json:"participants"`
}

type participantBody struct {
	Summoner      string        `json:"summoner"`
	SummonerID    string        `json:"summonerId"`
	TeamID        int           `json:"teamId"`
	Win           bool          `json:"win"`
	Champion      string        `json:"champion,omitempty"`
	Kills         int           `json:"kills"`
	Deaths        int           `json:"deaths"`
	Assists       int           `json:"assists"`
	GoldEarned    int           `json:"goldEarned"`
	GoldPerMinute float64       `json:"goldPerMinute"`
	Timeline      *timelineBody `json:"timeline,omitempty"`
}

// timelineBody.Gold holds cumulative gold per league.GoldMarkInterval.
type timelineBody struct {
	Gold []int `json:"gold"`
}

type rankBody struct {
	Tier     string `json:"tier"`
	Division string `json:"division"`
}

// JSONFormatter renders the JSON document read by the live gold-per-minute
// chart: match.coreData.participants[].timeline.gold and rank.tier.
type JSONFormatter struct{}

// Format implements Formatter.
func (JSONFormatter) Format(env Envelope) (sink.Record, error) {
	m := env.Match
	doc := matchRecord{
		Match: matchBody{
			ID:              m.ID,
			Platform:        m.Platform,
			Queue:           string(m.Queue),
			StartedAt:       m.StartedAt.UTC(),
			DurationSeconds: int64(m.Duration.Seconds()),
			CoreData:        coreDataBody{Participants: make([]participantBody, 0, len(m.Participants))},
		},
		Crawler:    env.Crawler,
		RunID:      env.RunID,
		CapturedAt: env.CapturedAt.UTC(),
	}
	for _, p := range m.Participants {
		var tl *timelineBody
		if len(p.GoldTimeline) > 0 {
			tl = &timelineBody{Gold: p.GoldTimeline}
		}
		doc.Match.CoreData.Participants = append(doc.Match.CoreData.Participants, participantBody{
			Summoner:      p.Summoner.String(),
			SummonerID:    p.Summoner.ID,
			TeamID:        p.TeamID,
			Win:           p.Win,
			Champion:      p.Champion,
			Kills:         p.Kills,
			Deaths:        p.Deaths,
			Assists:       p.Assists,
			GoldEarned:    p.GoldEarned,
			GoldPerMinute: m.GoldPerMinute(p),
			Timeline:      tl,
		})
	}
	if env.Elo != nil {
		doc.Rank = &rankBody{Tier: env.Elo.Tier.String(), Division: env.Elo.Division.String()}
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return sink.Record{}, fmt.Errorf("marshal match %s: %w", m.ID, err)
	}
	return sink.Record{
		Key:         Key(env),
		ContentType: "application/json",
		Body:        body,
		Attributes: map[string]string{
			"crawler":  env.Crawler,
			"match_id": m.ID,
			"queue":    string(m.Queue),
		},
	}, nil
}

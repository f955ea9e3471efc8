package riot

import (
	"strings"
	"time"

	"github.com/omarathon/riot-api-crawler/internal/league"
	"github.com/omarathon/riot-api-crawler/internal/rank"
)

type accountDTO struct {
	PUUID    string `json:"puuid"`
	GameName string `json:"gameName"`
	TagLine  string `json:"tagLine"`
}

type leagueEntryDTO struct {
	QueueType    string `json:"queueType"`
	Tier         string `json:"tier"`
	Rank         string `json:"rank"`
	LeaguePoints int    `json:"leaguePoints"`
	Wins         int    `json:"wins"`
	Losses       int    `json:"losses"`
}

type matchDTO struct {
	Metadata struct {
		MatchID      string   `json:"matchId"`
		Participants []string `json:"participants"`
	} `json:"metadata"`
	Info struct {
		GameCreation       int64            `json:"gameCreation"`
		GameStartTimestamp int64            `json:"gameStartTimestamp"`
		GameDuration       int64            `json:"gameDuration"`
		QueueID            int              `json:"queueId"`
		PlatformID         string           `json:"platformId"`
		Participants       []participantDTO `json:"participants"`
	} `json:"info"`
}

type participantDTO struct {
	PUUID          string `json:"puuid"`
	RiotIDGameName string `json:"riotIdGameName"`
	RiotIDTagline  string `json:"riotIdTagline"`
	SummonerName   string `json:"summonerName"`
	TeamID         int    `json:"teamId"`
	Win            bool   `json:"win"`
	ChampionName   string `json:"championName"`
	Kills          int    `json:"kills"`
	Deaths         int    `json:"deaths"`
	Assists        int    `json:"assists"`
	GoldEarned     int    `json:"goldEarned"`
}

func (p participantDTO) displayName() string {
	if p.RiotIDGameName != "" {
		if p.RiotIDTagline != "" {
			return p.RiotIDGameName + "#" + p.RiotIDTagline
		}
		return p.RiotIDGameName
	}
	return p.SummonerName
}

func (m matchDTO) toMatch(fallbackPlatform string) league.Match {
	platform := strings.ToLower(m.Info.PlatformID)
	if platform == "" {
		platform = fallbackPlatform
	}
	started := m.Info.GameStartTimestamp
	if started == 0 {
		started = m.Info.GameCreation
	}
	out := league.Match{
		ID:           m.Metadata.MatchID,
		Platform:     platform,
		Queue:        league.QueueByID(m.Info.QueueID),
		StartedAt:    time.UnixMilli(started).UTC(),
		Duration:     time.Duration(m.Info.GameDuration) * time.Second,
		Participants: make([]league.Participant, 0, len(m.Info.Participants)),
	}
	for _, p := range m.Info.Participants {
		out.Participants = append(out.Participants, league.Participant{
			Summoner:   league.Summoner{Platform: platform, ID: p.PUUID, Name: p.displayName()},
			TeamID:     p.TeamID,
			Win:        p.Win,
			Champion:   p.ChampionName,
			Kills:      p.Kills,
			Deaths:     p.Deaths,
			Assists:    p.Assists,
			GoldEarned: p.GoldEarned,
		})
	}
	return out
}

// toRanks keeps entries for known queues with parseable ranks.
func toRanks(entries []leagueEntryDTO) map[league.Queue]rank.Rank {
	out := make(map[league.Queue]rank.Rank, len(entries))
	for _, e := range entries {
		q, err := league.ParseQueue(e.QueueType)
		if err != nil {
			continue
		}
		r, err := rank.Parse(e.Tier + " " + e.Rank)
		if err != nil {
			continue
		}
		out[q] = r
	}
	return out
}

type timelineDTO struct {
	Info struct {
		Frames []struct {
			Timestamp         int64 `json:"timestamp"`
			ParticipantFrames map[string]struct {
				ParticipantID int `json:"participantId"`
				TotalGold     int `json:"totalGold"`
			} `json:"participantFrames"`
		} `json:"frames"`
		Participants []struct {
			ParticipantID int    `json:"participantId"`
			PUUID         string `json:"puuid"`
		} `json:"participants"`
	} `json:"info"`
}

// goldMarks samples each participant's totalGold at every mark, plus the last
// frame when it falls between marks. Keyed by puuid.
func (t timelineDTO) goldMarks(mark time.Duration) map[string][]int {
	puuids := make(map[int]string, len(t.Info.Participants))
	for _, p := range t.Info.Participants {
		puuids[p.ParticipantID] = p.PUUID
	}
	out := make(map[string][]int, len(puuids))
	step := mark.Milliseconds()
	if step <= 0 || len(t.Info.Frames) == 0 {
		return out
	}
	next := step
	last := len(t.Info.Frames) - 1
	for i, f := range t.Info.Frames {
		if f.Timestamp < next && i != last {
			continue
		}
		for _, pf := range f.ParticipantFrames {
			if puuid, ok := puuids[pf.ParticipantID]; ok {
				out[puuid] = append(out[puuid], pf.TotalGold)
			}
		}
		for next <= f.Timestamp {
			next += step
		}
	}
	return out
}

func attachGold(m *league.Match, marks map[string][]int) {
	for i := range m.Participants {
		m.Participants[i].GoldTimeline = marks[m.Participants[i].Summoner.ID]
	}
}

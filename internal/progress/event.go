package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the crawl milestone an Event represents.
type Stage string

// Supported progress stages.
const (
	StageCrawlStart       Stage = "CRAWL_START"
	StageSummonerAccepted Stage = "SUMMONER_ACCEPTED"
	StageSummonerRejected Stage = "SUMMONER_REJECTED"
	StageMatchAccepted    Stage = "MATCH_ACCEPTED"
	StageMatchRejected    Stage = "MATCH_REJECTED"
	StageCrawlError       Stage = "CRAWL_ERROR"
	// StageCrawlEnd fires when the frontier is exhausted.
	StageCrawlEnd Stage = "CRAWL_END"
	// StageRunFinished carries the final Outcome of a run, however it ended.
	StageRunFinished Stage = "RUN_FINISHED"
)

// Outcome is the terminal state reported with StageRunFinished.
type Outcome string

// Run outcomes.
const (
	OutcomeCompleted Outcome = "completed"
	OutcomeHalted    Outcome = "halted"
	OutcomeFailed    Outcome = "failed"
)

// Event is one crawl progress record.
type Event struct {
	// RunID is the 16-byte form of the run's UUID.
	RunID [16]byte
	// TS is the UTC time the emitter observed the milestone.
	TS    time.Time
	Stage Stage
	// Crawler labels the engine, usually its tier.
	Crawler string
	// Subject is the summoner or match the event is about.
	Subject string
	// Outcome is set on StageRunFinished only.
	Outcome Outcome
	// Note carries low-volume context such as an error or halt reason.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	if e.Crawler == "" {
		return errors.New("crawler is required")
	}
	switch e.Stage {
	case StageCrawlStart, StageCrawlEnd, StageCrawlError:
	case StageSummonerAccepted, StageSummonerRejected, StageMatchAccepted, StageMatchRejected:
		if e.Subject == "" {
			return fmt.Errorf("%s requires a subject", e.Stage)
		}
	case StageRunFinished:
		switch e.Outcome {
		case OutcomeCompleted, OutcomeHalted, OutcomeFailed:
		default:
			return fmt.Errorf("unknown outcome %q", e.Outcome)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID for repositories.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}

// ParseRunID decodes a textual run id. Unparseable ids yield the zero value,
// which Validate rejects.
func ParseRunID(s string) [16]byte {
	id, err := uuid.Parse(s)
	if err != nil {
		return [16]byte{}
	}
	return UUIDToBytes(id)
}

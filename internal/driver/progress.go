package driver

import (
	"time"

	"github.com/omarathon/riot-api-crawler/internal/progress"
)

// Clock supplies event timestamps.
type Clock interface {
	Now() time.Time
}

// ReportProgress returns an Options.OnOutcome hook that emits the run's
// final progress event. Jobs that never started a run are skipped.
func ReportProgress(emitter progress.Emitter, clock Clock) func(Outcome) {
	return func(o Outcome) {
		if emitter == nil || o.Result.RunID == "" {
			return
		}
		evt := progress.Event{
			RunID:   progress.ParseRunID(o.Result.RunID),
			TS:      clock.Now(),
			Stage:   progress.StageRunFinished,
			Crawler: o.Name,
			Subject: o.Seed.Key(),
		}
		switch {
		case o.Failed():
			evt.Outcome = progress.OutcomeFailed
			evt.Note = o.Err.Error()
		case o.Halted():
			evt.Outcome = progress.OutcomeHalted
			evt.Note = o.Result.HaltReason
		default:
			evt.Outcome = progress.OutcomeCompleted
		}
		emitter.Emit(evt)
	}
}

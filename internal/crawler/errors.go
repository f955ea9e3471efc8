package crawler

import (
	"errors"
	"fmt"
)

var (
	// ErrHalted matches every *HaltError.
	ErrHalted = errors.New("crawler halted")
	// ErrNotIdle is returned by Run on an engine that has already run.
	ErrNotIdle = errors.New("crawler is not idle")
	// ErrRunning is returned by Reset while a run is in progress.
	ErrRunning = errors.New("crawler is running")
)

// HaltError reports an intentional stop of one engine.
type HaltError struct {
	Crawler string
	Seed    string
	Reason  string
}

func (e *HaltError) Error() string {
	return fmt.Sprintf("crawler %s (seed %s) halted: %s", e.Crawler, e.Seed, e.Reason)
}

// Is lets errors.Is(err, ErrHalted) match.
func (e *HaltError) Is(target error) bool {
	return target == ErrHalted
}

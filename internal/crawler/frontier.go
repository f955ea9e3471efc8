package crawler

import "github.com/omarathon/riot-api-crawler/internal/league"

// frontier is a FIFO of summoners waiting to be expanded.
type frontier struct {
	items []league.Summoner
	head  int
}

func (f *frontier) push(s league.Summoner) {
	f.items = append(f.items, s)
}

func (f *frontier) pop() (league.Summoner, bool) {
	if f.head >= len(f.items) {
		return league.Summoner{}, false
	}
	s := f.items[f.head]
	f.items[f.head] = league.Summoner{}
	f.head++
	// Reclaim the consumed prefix once it dominates the slice.
	if f.head > 64 && f.head*2 > len(f.items) {
		f.items = append([]league.Summoner(nil), f.items[f.head:]...)
		f.head = 0
	}
	return s, true
}

func (f *frontier) len() int {
	return len(f.items) - f.head
}

func (f *frontier) snapshot() []league.Summoner {
	return append([]league.Summoner(nil), f.items[f.head:]...)
}

func (f *frontier) reset() {
	f.items = nil
	f.head = 0
}

package league

import (
	"fmt"
	"strings"
)

// Queue names a matchmaking queue.
type Queue string

// Known queues. Ranked queues double as league-entry queue types.
const (
	QueueUnknown     Queue = "UNKNOWN"
	QueueNormalDraft Queue = "NORMAL_DRAFT"
	QueueDraftRanked Queue = "TEAM_BUILDER_DRAFT_RANKED_5x5"
	QueueRankedSolo  Queue = "RANKED_SOLO_5x5"
	QueueNormalBlind Queue = "NORMAL_BLIND"
	QueueRankedFlex  Queue = "RANKED_FLEX_SR"
	QueueARAM        Queue = "ARAM"
	QueueClash       Queue = "CLASH"
	QueueURF         Queue = "URF"
	QueueArena       Queue = "ARENA"
)

// legacyRankedSoloAlias is the pre-2017 name some configs still use for solo queue.
const legacyRankedSoloAlias = "TEAM_BUILDER_RANKED_SOLO"

var queueIDs = map[Queue]int{
	QueueNormalDraft: 400,
	QueueDraftRanked: 410,
	QueueRankedSolo:  420,
	QueueNormalBlind: 430,
	QueueRankedFlex:  440,
	QueueARAM:        450,
	QueueClash:       700,
	QueueURF:         900,
	QueueArena:       1700,
}

var queuesByID = func() map[int]Queue {
	out := make(map[int]Queue, len(queueIDs))
	for q, id := range queueIDs {
		out[id] = q
	}
	return out
}()

// QueueByID maps a platform queue id. Unknown ids map to QueueUnknown.
func QueueByID(id int) Queue {
	if q, ok := queuesByID[id]; ok {
		return q
	}
	return QueueUnknown
}

// ID returns the platform queue id, or 0 when unknown.
func (q Queue) ID() int {
	return queueIDs[q]
}

// Ranked reports whether the queue carries league entries.
func (q Queue) Ranked() bool {
	return q == QueueRankedSolo || q == QueueRankedFlex
}

// ParseQueue resolves a configured queue name, case-insensitively.
func ParseQueue(s string) (Queue, error) {
	needle := strings.ToUpper(strings.TrimSpace(s))
	if needle == legacyRankedSoloAlias {
		return QueueRankedSolo, nil
	}
	for q := range queueIDs {
		if strings.ToUpper(string(q)) == needle {
			return q, nil
		}
	}
	return QueueUnknown, fmt.Errorf("unknown queue %q", s)
}

// ParseQueues resolves a list of queue names, dropping duplicates.
func ParseQueues(names []string) ([]Queue, error) {
	seen := make(map[Queue]struct{}, len(names))
	out := make([]Queue, 0, len(names))
	for _, name := range names {
		q, err := ParseQueue(name)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[q]; dup {
			continue
		}
		seen[q] = struct{}{}
		out = append(out, q)
	}
	return out, nil
}

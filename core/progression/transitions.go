package progression

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/EllowDigital/GSAI-IN-sub000/core"
)

// Transitions is the table of allowed status changes: {from: {to: allowed}}.
type Transitions map[Status]map[Status]bool

// DefaultTransitions allows every status to move to any status, itself included.
func DefaultTransitions() Transitions {
	t := make(Transitions, len(Statuses))
	for _, from := range Statuses {
		t[from] = make(map[Status]bool, len(Statuses))
		for _, to := range Statuses {
			t[from][to] = true
		}
	}
	return t
}

func (t Transitions) Allows(from, to Status) bool {
	return t[from][to]
}

// IsReadyForTesting reports whether rec belongs in the "ready for testing" view.
func IsReadyForTesting(rec Record) bool {
	return rec.Status == StatusReady || rec.StripeCount >= ReadyStripeThreshold
}

// FilterReadyForTesting keeps the records ready for testing, preserving order.
func FilterReadyForTesting(records []Record) []Record {
	ready := make([]Record, 0, len(records))
	for _, rec := range records {
		if IsReadyForTesting(rec) {
			ready = append(ready, rec)
		}
	}
	return ready
}

var (
	ErrDuplicateRank    = errors.New("two levels share the same rank in a discipline")
	ErrUnknownNextLevel = errors.New("next level does not exist")
	ErrLadderCycle      = errors.New("next-level chain contains a cycle")
)

// CheckLadder validates a set of levels: unique IDs, unique ranks per discipline,
// next levels that exist and an acyclic next-level chain.
func CheckLadder(levels []Level) error {
	byID := make(map[string]Level, len(levels))
	ranks := make(map[string]string) // {discipline/rank: level id}
	for _, lvl := range levels {
		if lvl.ID == "" {
			return errors.Errorf("level %q has no id", lvl.Label)
		}
		if _, ok := byID[lvl.ID]; ok {
			return errors.Errorf("level %q defined twice", lvl.ID)
		}
		byID[lvl.ID] = lvl

		disc := GeneralKey
		if !lvl.IsGeneral() {
			disc = core.NormalizeKey(lvl.Discipline)
		}
		key := fmt.Sprintf("%s/%d", disc, lvl.Rank)
		if other, ok := ranks[key]; ok {
			return errors.Wrapf(ErrDuplicateRank, "%s and %s (%s)", other, lvl.ID, key)
		}
		ranks[key] = lvl.ID
	}

	for _, lvl := range levels {
		if lvl.NextLevelID != "" {
			if _, ok := byID[lvl.NextLevelID]; !ok {
				return errors.Wrapf(ErrUnknownNextLevel, "%s -> %s", lvl.ID, lvl.NextLevelID)
			}
		}
	}

	for _, start := range levels {
		seen := map[string]bool{start.ID: true}
		for cur := start; cur.NextLevelID != ""; {
			if seen[cur.NextLevelID] {
				return errors.Wrapf(ErrLadderCycle, "starting at %s", start.ID)
			}
			seen[cur.NextLevelID] = true
			cur = byID[cur.NextLevelID]
		}
	}
	return nil
}

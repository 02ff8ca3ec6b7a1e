package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// ReplayFilter holds filtering criteria for event replay.
type ReplayFilter struct {
	Action string    // empty = all actions
	Kind   EventKind // empty = all kinds
	From   time.Time // zero value = no lower bound
	To     time.Time // zero value = no upper bound
}

// ReplaySummary holds event counts and metadata for a replayed log.
type ReplaySummary struct {
	Total           int    `json:"total"`
	BlockedCount    int    `json:"blocked_count"`
	PropagatedCount int    `json:"propagated_count"`
	ReducedCount    int    `json:"reduced_count"`
	AuditedCount    int    `json:"audited_count"`
	FirstTimestamp  string `json:"first_timestamp"`
	LastTimestamp   string `json:"last_timestamp"`
}

// ReplayResult holds filtered events and their summary.
type ReplayResult struct {
	Action  string        `json:"action,omitempty"`
	Events  []Event       `json:"events"`
	Summary ReplaySummary `json:"summary"`
}

// Replay reads the audit log and returns events matching the filter.
func Replay(path string, filter ReplayFilter) (*ReplayResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	result := &ReplayResult{Action: filter.Action}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry logLine
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue // skip malformed lines
		}

		if filter.Action != "" && entry.Action != filter.Action {
			continue
		}
		if filter.Kind != "" && entry.Kind != filter.Kind {
			continue
		}

		// Time range filtering
		if !filter.From.IsZero() || !filter.To.IsZero() {
			ts, err := time.Parse(TimestampFormat, entry.Timestamp)
			if err != nil {
				continue // skip unparseable timestamps
			}
			if !filter.From.IsZero() && ts.Before(filter.From) {
				continue
			}
			if !filter.To.IsZero() && ts.After(filter.To) {
				continue
			}
		}

		result.Events = append(result.Events, entry.Event)
		updateSummary(&result.Summary, entry.Event)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}

	return result, nil
}

func updateSummary(s *ReplaySummary, ev Event) {
	s.Total++

	switch ev.Kind {
	case KindBlocked:
		s.BlockedCount++
	case KindPropagated:
		s.PropagatedCount++
	case KindReduced:
		s.ReducedCount++
	case KindAudited:
		s.AuditedCount++
	}

	if s.FirstTimestamp == "" {
		s.FirstTimestamp = ev.Timestamp
	}
	s.LastTimestamp = ev.Timestamp
}

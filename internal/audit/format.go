package audit

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const separator = "──────────────────────────────────────────────────────────────────"

// FormatTimeline renders a ReplayResult as a human-readable text timeline.
func FormatTimeline(result *ReplayResult) string {
	if len(result.Events) == 0 {
		scope := result.Action
		if scope == "" {
			scope = "all actions"
		}
		return fmt.Sprintf("Audit: %s | No events found.\n", scope)
	}

	var b strings.Builder

	first := formatDateRange(result.Summary.FirstTimestamp)
	last := formatTimeOnly(result.Summary.LastTimestamp)
	b.WriteString(fmt.Sprintf("Audit | %s–%s UTC\n", first, last))
	b.WriteString(separator + "\n")

	for _, ev := range result.Events {
		ts := formatTimeOnly(ev.Timestamp)
		kind := strings.TrimPrefix(string(ev.Kind), "taint_")
		detail := eventDetail(ev)

		b.WriteString(fmt.Sprintf("%-10s %-12s %-16s %s\n",
			ts, strings.ToUpper(kind), truncate(ev.Action, 16), detail))
	}

	b.WriteString(separator + "\n")
	b.WriteString(formatSummary(result.Summary))

	return b.String()
}

func eventDetail(ev Event) string {
	switch ev.Kind {
	case KindBlocked:
		if len(ev.Missing) > 0 {
			return fmt.Sprintf("%s missing [%s]", ev.Parameter, strings.Join(ev.Missing, ", "))
		}
		return fmt.Sprintf("%s at %s", ev.Parameter, ev.Level)
	case KindPropagated:
		return fmt.Sprintf("%s → %s", ev.FromLevel, ev.ToLevel)
	case KindReduced:
		return fmt.Sprintf("%s → %s (%s)", ev.FromLevel, ev.ToLevel, ev.Reason)
	case KindAudited:
		return fmt.Sprintf("%s at %s [%s mode]", ev.Parameter, ev.Level, ev.Mode)
	default:
		return ""
	}
}

// FormatJSON renders a ReplayResult as indented JSON.
func FormatJSON(result *ReplayResult) (string, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal replay result: %w", err)
	}
	return string(data), nil
}

func formatDateRange(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatTimeOnly(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("15:04:05")
}

func formatSummary(s ReplaySummary) string {
	parts := []string{}
	if s.BlockedCount > 0 {
		parts = append(parts, fmt.Sprintf("%d blocked", s.BlockedCount))
	}
	if s.PropagatedCount > 0 {
		parts = append(parts, fmt.Sprintf("%d propagated", s.PropagatedCount))
	}
	if s.ReducedCount > 0 {
		parts = append(parts, fmt.Sprintf("%d reduced", s.ReducedCount))
	}
	if s.AuditedCount > 0 {
		parts = append(parts, fmt.Sprintf("%d audited", s.AuditedCount))
	}
	if len(parts) == 0 {
		parts = append(parts, "no events")
	}
	return fmt.Sprintf("Summary: %s | Total: %d\n", strings.Join(parts, ", "), s.Total)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

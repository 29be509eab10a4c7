package weather

import (
	"fmt"
	"time"
)

// Mode selects between the rolling short window and long-range collection.
type Mode string

const (
	ModeCurrent    Mode = "current"
	ModeHistorical Mode = "historical"
)

// MaxCurrentDays bounds the span of a current-mode window.
const MaxCurrentDays = 30

// Window is the inclusive date range a collection run targets. Start and End
// are day-granularity and interpreted in UTC.
type Window struct {
	Mode  Mode      `json:"mode"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// CurrentWindow builds a rolling window ending at now covering the given
// number of days.
func CurrentWindow(now time.Time, days int) Window {
	end := dayOf(now)
	return Window{
		Mode:  ModeCurrent,
		Start: end.AddDate(0, 0, -(days - 1)),
		End:   end,
	}
}

// HistoricalWindow builds a multi-year window ending at now.
func HistoricalWindow(now time.Time, years int) Window {
	end := dayOf(now)
	return Window{
		Mode:  ModeHistorical,
		Start: end.AddDate(-years, 0, 0),
		End:   end,
	}
}

// Validate checks the window invariants: start <= end, end not in the future,
// and mode-specific span bounds. maxHistoricalYears bounds historical windows.
func (w Window) Validate(now time.Time, maxHistoricalYears int) error {
	if w.Mode != ModeCurrent && w.Mode != ModeHistorical {
		return fmt.Errorf("invalid window mode %q", w.Mode)
	}
	start, end := dayOf(w.Start), dayOf(w.End)
	if start.After(end) {
		return fmt.Errorf("window start %s after end %s", start.Format(DateLayout), end.Format(DateLayout))
	}
	if end.After(dayOf(now)) {
		return fmt.Errorf("window end %s is in the future", end.Format(DateLayout))
	}
	switch w.Mode {
	case ModeCurrent:
		if w.Days() > MaxCurrentDays {
			return fmt.Errorf("current window spans %d days, maximum is %d", w.Days(), MaxCurrentDays)
		}
	case ModeHistorical:
		if maxHistoricalYears > 0 && start.Before(end.AddDate(-maxHistoricalYears, 0, 0)) {
			return fmt.Errorf("historical window exceeds maximum span of %d years", maxHistoricalYears)
		}
	}
	return nil
}

// Days returns the inclusive number of days the window covers.
func (w Window) Days() int {
	return int(dayOf(w.End).Sub(dayOf(w.Start)).Hours()/24) + 1
}

// Chunks splits the window into consecutive sub-windows of at most maxDays
// days each, preserving the mode. A non-positive maxDays yields the window
// itself. Provider span limits and partial-failure accounting are handled
// per sub-window by the orchestrator.
func (w Window) Chunks(maxDays int) []Window {
	start, end := dayOf(w.Start), dayOf(w.End)
	if maxDays <= 0 || w.Days() <= maxDays {
		return []Window{{Mode: w.Mode, Start: start, End: end}}
	}
	var out []Window
	for cur := start; !cur.After(end); {
		next := cur.AddDate(0, 0, maxDays-1)
		if next.After(end) {
			next = end
		}
		out = append(out, Window{Mode: w.Mode, Start: cur, End: next})
		cur = next.AddDate(0, 0, 1)
	}
	return out
}

// dayOf truncates t to midnight UTC.
func dayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

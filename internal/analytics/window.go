package analytics

import (
	"fmt"
	"time"

	"github.com/tappo/tappo/internal/apperr"
)

// Window presets accepted by ResolveWindow.
const (
	PresetToday  = "today"
	Preset7Days  = "7d"
	Preset30Days = "30d"
	PresetCustom = "custom"
)

const dayLayout = "2006-01-02"

// Window is an inclusive time range.
type Window struct {
	From time.Time
	To   time.Time
}

// ResolveWindow turns a dashboard preset into instants in loc. Every preset
// ends at the last instant of its final day. custom takes from/to as
// YYYY-MM-DD days; an empty to means today. An empty preset means 30d.
func ResolveWindow(preset, from, to string, now time.Time, loc *time.Location) (Window, error) {
	if loc == nil {
		loc = time.UTC
	}
	today := startOfDay(now.In(loc))
	endOfToday := endOfDay(today)

	switch preset {
	case PresetToday:
		return Window{From: today, To: endOfToday}, nil
	case Preset7Days:
		return Window{From: today.AddDate(0, 0, -7), To: endOfToday}, nil
	case Preset30Days, "":
		return Window{From: today.AddDate(0, 0, -30), To: endOfToday}, nil
	case PresetCustom:
		if from == "" {
			return Window{}, apperr.Validation("from is required for the custom preset")
		}
		start, err := time.ParseInLocation(dayLayout, from, loc)
		if err != nil {
			return Window{}, apperr.Validation(fmt.Sprintf("from must be YYYY-MM-DD, got %q", from))
		}
		end := endOfToday
		if to != "" {
			day, err := time.ParseInLocation(dayLayout, to, loc)
			if err != nil {
				return Window{}, apperr.Validation(fmt.Sprintf("to must be YYYY-MM-DD, got %q", to))
			}
			end = endOfDay(day)
		}
		if start.After(end) {
			return Window{}, apperr.Validation("from must not be after to")
		}
		return Window{From: start, To: end}, nil
	default:
		return Window{}, apperr.Validation(fmt.Sprintf("unknown preset %q", preset))
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func endOfDay(day time.Time) time.Time {
	return startOfDay(day).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

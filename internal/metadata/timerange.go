package metadata

import (
	"strings"
	"time"
)

// Bounds used for "open" range ends. MinTime equals the zero Time.
var (
	MinTime = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)
	MaxTime = time.Date(9999, time.December, 31, 23, 59, 59, 999999999, time.UTC)
)

// TimeRange is either a range of time or, when End is zero, a single instant.
type TimeRange struct {
	Why   string
	Start time.Time
	End   time.Time
}

// IsInstant reports whether the range is a single point in time.
func (r TimeRange) IsInstant() bool { return r.End.IsZero() }

// Contains reports whether t falls within the range. Instants contain only
// themselves; ranges include the start and exclude the end.
func (r TimeRange) Contains(t time.Time) bool {
	if r.IsInstant() {
		return t.Equal(r.Start)
	}
	return !t.Before(r.Start) && t.Before(r.End)
}

// Validate checks that the reason is not blank and that the end, if any, is
// after the start.
func (r TimeRange) Validate() error {
	if strings.TrimSpace(r.Why) == "" {
		return configErrorf("", "time range %q has an empty reason", r.Start)
	}
	if !r.IsInstant() && !r.End.After(r.Start) {
		return configErrorf("", "time range %q end <= start", r.Why)
	}
	return nil
}

// overlaps treats ranges as open intervals, so ranges that merely touch and
// instants on a range boundary do not overlap.
func (r TimeRange) overlaps(o TimeRange) bool {
	switch {
	case !r.IsInstant() && !o.IsInstant():
		return r.Start.Before(o.End) && o.Start.Before(r.End)
	case !r.IsInstant():
		return r.Start.Before(o.Start) && o.Start.Before(r.End)
	case !o.IsInstant():
		return o.Start.Before(r.Start) && r.Start.Before(o.End)
	default:
		return r.Start.Equal(o.Start)
	}
}

// ValidateTimeRanges checks that no two ranges in the set overlap, contain
// one another, or are the same instant.
func ValidateTimeRanges(ranges []TimeRange) error {
	for i := range ranges {
		for j := i + 1; j < len(ranges); j++ {
			if ranges[i].overlaps(ranges[j]) {
				return configErrorf("", "overlapping time ranges %q and %q", ranges[i].Why, ranges[j].Why)
			}
		}
	}
	return nil
}

package metadata

import (
	"fmt"
	"time"
)

// Interval is the nominal sampling interval of a table.
type Interval int

const (
	IntervalUndef Interval = iota
	Interval15Min
	Interval30Min
	Interval1Hour
	Interval1Day
	Interval1Week
	Interval1Month
)

var intervalNames = map[Interval]string{
	IntervalUndef:  "undef",
	Interval15Min:  "15min",
	Interval30Min:  "30min",
	Interval1Hour:  "1hour",
	Interval1Day:   "1day",
	Interval1Week:  "1week",
	Interval1Month: "1month",
}

// ParseInterval converts the metadata document form ("15min", "1hour", ...)
// into an Interval.
func ParseInterval(s string) (Interval, error) {
	for iv, name := range intervalNames {
		if iv != IntervalUndef && name == s {
			return iv, nil
		}
	}
	return IntervalUndef, fmt.Errorf("invalid interval %q", s)
}

func (i Interval) String() string {
	if name, ok := intervalNames[i]; ok {
		return name
	}
	return fmt.Sprintf("Interval(%d)", int(i))
}

// Delta is the length of one Interval. Month intervals cannot be expressed as
// a fixed duration, so they are kept as a calendar month count.
type Delta struct {
	Duration time.Duration
	Months   int
}

// AddTo returns t advanced by the delta.
func (d Delta) AddTo(t time.Time) time.Time {
	if d.Months != 0 {
		t = t.AddDate(0, d.Months, 0)
	}
	return t.Add(d.Duration)
}

// Delta returns the length of the interval. It fails for IntervalUndef.
func (i Interval) Delta() (Delta, error) {
	switch i {
	case Interval15Min:
		return Delta{Duration: 15 * time.Minute}, nil
	case Interval30Min:
		return Delta{Duration: 30 * time.Minute}, nil
	case Interval1Hour:
		return Delta{Duration: time.Hour}, nil
	case Interval1Day:
		return Delta{Duration: 24 * time.Hour}, nil
	case Interval1Week:
		return Delta{Duration: 7 * 24 * time.Hour}, nil
	case Interval1Month:
		return Delta{Months: 1}, nil
	default:
		return Delta{}, fmt.Errorf("interval %s has no delta", i)
	}
}

// Floor rounds t down to the start of its interval bucket, in t's location.
// Weeks start on Monday. The result is never after t, also on days where a
// wall clock time occurs twice. It fails for IntervalUndef.
func (i Interval) Floor(t time.Time) (time.Time, error) {
	y, mo, d := t.Date()
	_, mi, sec := t.Clock()
	within := time.Duration(sec)*time.Second + time.Duration(t.Nanosecond())
	switch i {
	case Interval15Min:
		return t.Add(-within - time.Duration(mi%15)*time.Minute), nil
	case Interval30Min:
		return t.Add(-within - time.Duration(mi%30)*time.Minute), nil
	case Interval1Hour:
		return t.Add(-within - time.Duration(mi)*time.Minute), nil
	case Interval1Day:
		return atOffsetOf(time.Date(y, mo, d, 0, 0, 0, 0, t.Location()), t), nil
	case Interval1Week:
		offset := (int(t.Weekday()) + 6) % 7
		return atOffsetOf(time.Date(y, mo, d-offset, 0, 0, 0, 0, t.Location()), t), nil
	case Interval1Month:
		return atOffsetOf(time.Date(y, mo, 1, 0, 0, 0, 0, t.Location()), t), nil
	default:
		return time.Time{}, fmt.Errorf("interval %s has no floor", i)
	}
}

// atOffsetOf moves a floor that landed after t onto the earlier of two
// ambiguous wall clock readings.
func atOffsetOf(floor, t time.Time) time.Time {
	if !floor.After(t) {
		return floor
	}
	_, fo := floor.Zone()
	_, to := t.Zone()
	if shifted := floor.Add(time.Duration(fo-to) * time.Second); !shifted.After(t) {
		return shifted
	}
	return floor
}

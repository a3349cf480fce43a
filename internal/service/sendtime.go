// internal/service/sendtime.go
package service

import (
	"math/rand"
	"time"
)

// SendWindow is a daily sending window in minutes from midnight, [Start, End).
// A window with End <= Start disables clamping.
type SendWindow struct {
	Start int
	End   int
}

func (w SendWindow) valid() bool { return w.End > w.Start }

// startOfDay returns the window start on t's date.
func (w SendWindow) startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()).
		Add(time.Duration(w.Start) * time.Minute)
}

// PlanSendTime computes when a scheduled email becomes due: base plus the
// step delay, jittered by up to ±randomizationMinutes, clamped into the
// sending window, then rolled forward to an allowed weekday. A nil rng draws
// the jitter from the global source.
//
// Clamp rule: a time-of-day before the window start moves to the window start
// on the same day; at or after the window end moves to the window start the
// next day. With a valid window the result always falls within
// [Start, End) on an allowed day, for any rng seed.
func PlanSendTime(base time.Time, delayDays, randomizationMinutes int, window SendWindow, days map[time.Weekday]bool, rng *rand.Rand) time.Time {
	t := base.AddDate(0, 0, delayDays)

	if randomizationMinutes > 0 {
		intn := rand.Intn
		if rng != nil {
			intn = rng.Intn
		}
		jitter := intn(2*randomizationMinutes+1) - randomizationMinutes
		t = t.Add(time.Duration(jitter) * time.Minute)
	}

	if window.valid() {
		minuteOfDay := t.Hour()*60 + t.Minute()
		switch {
		case minuteOfDay < window.Start:
			t = window.startOfDay(t)
		case minuteOfDay >= window.End:
			t = window.startOfDay(t.AddDate(0, 0, 1))
		}
	}

	if len(days) > 0 {
		for i := 0; i < 7 && !days[t.Weekday()]; i++ {
			t = t.AddDate(0, 0, 1)
			if window.valid() {
				t = window.startOfDay(t)
			}
		}
	}

	return t
}

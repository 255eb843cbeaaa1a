package domain

import "time"

// intervalOn returns the effective opening interval for the calendar day
// of t. A special-hours entry overrides the weekday schedule for that
// date, including marking it closed.
func (e *Establishment) intervalOn(t time.Time) (HoursInterval, bool) {
	if iv, ok := e.SpecialHours[t.Format("2006-01-02")]; ok {
		if iv.Closed {
			return HoursInterval{}, false
		}
		return iv, true
	}
	iv, ok := e.WorkingHours[WeekdayKey(t.Weekday())]
	if !ok || iv.Closed {
		return HoursInterval{}, false
	}
	return iv, true
}

// OpenAt reports whether the establishment is open at t, in t's location.
// An interval whose close is earlier than its open runs past midnight and
// also covers the early hours of the next day. Open equal to close means
// open around the clock. Unparseable stored hours count as closed.
func (e *Establishment) OpenAt(t time.Time) bool {
	mins := t.Hour()*60 + t.Minute()

	if iv, ok := e.intervalOn(t); ok {
		if o, c, err := clockPair(iv); err == nil {
			switch {
			case o < c:
				if mins >= o && mins < c {
					return true
				}
			case o > c:
				if mins >= o {
					return true
				}
			default:
				return true
			}
		}
	}

	// Yesterday's overnight interval may still be running.
	y := t.AddDate(0, 0, -1)
	if iv, ok := e.intervalOn(y); ok {
		if o, c, err := clockPair(iv); err == nil && o > c && mins < c {
			return true
		}
	}
	return false
}

func clockPair(iv HoursInterval) (int, int, error) {
	o, err := ParseClock(iv.Open)
	if err != nil {
		return 0, 0, err
	}
	c, err := ParseClock(iv.Close)
	if err != nil {
		return 0, 0, err
	}
	return o, c, nil
}

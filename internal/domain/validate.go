package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Field limits enforced at creation and on every update that touches
// the corresponding field.
const (
	MinNameLen        = 1
	MaxNameLen        = 255
	MaxDescriptionLen = 2000
	MaxAddressLen     = 512

	MinCategories = 1
	MaxCategories = 2
	MinCuisines   = 1
	MaxCuisines   = 3

	MaxAttributes    = 50
	MaxAttributeKey  = 64
	MaxSpecialHours  = 62
	MaxSuspendReason = 512
	MaxNoteLen       = 1000
)

// Weekdays are the recognized working-hours keys, Monday first.
var Weekdays = []string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}

var weekdaySet = func() map[string]struct{} {
	s := make(map[string]struct{}, len(Weekdays))
	for _, d := range Weekdays {
		s[d] = struct{}{}
	}
	return s
}()

// WeekdayKey maps a time.Weekday to its working-hours key.
func WeekdayKey(d time.Weekday) string {
	switch d {
	case time.Monday:
		return "mon"
	case time.Tuesday:
		return "tue"
	case time.Wednesday:
		return "wed"
	case time.Thursday:
		return "thu"
	case time.Friday:
		return "fri"
	case time.Saturday:
		return "sat"
	default:
		return "sun"
	}
}

func CheckName(s string) error {
	n := len(strings.TrimSpace(s))
	if n < MinNameLen || n > MaxNameLen {
		return Validationf("name must be %d-%d characters", MinNameLen, MaxNameLen)
	}
	return nil
}

func CheckDescription(s string) error {
	if len(s) > MaxDescriptionLen {
		return Validationf("description exceeds %d characters", MaxDescriptionLen)
	}
	return nil
}

func CheckAddress(s string) error {
	if strings.TrimSpace(s) == "" {
		return Validationf("address must not be empty")
	}
	if len(s) > MaxAddressLen {
		return Validationf("address exceeds %d characters", MaxAddressLen)
	}
	return nil
}

// CheckCoordinates rejects coordinates outside the served region.
// Out-of-range values fail; they are never clamped.
func CheckCoordinates(lat, lon float64) error {
	if !InRegion(lat, lon) {
		return Validationf("coordinates (%.4f, %.4f) outside served region [%.1f..%.1f]x[%.1f..%.1f]",
			lat, lon, MinLatitude, MaxLatitude, MinLongitude, MaxLongitude)
	}
	return nil
}

// ParseClock parses a "HH:MM" 24h time into minutes since midnight.
func ParseClock(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("bad clock value %q, want HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("bad hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("bad minute in %q", s)
	}
	return h*60 + m, nil
}

func checkInterval(iv HoursInterval) error {
	if iv.Closed {
		if iv.Open != "" || iv.Close != "" {
			return fmt.Errorf("closed interval must not carry open/close times")
		}
		return nil
	}
	if _, err := ParseClock(iv.Open); err != nil {
		return err
	}
	if _, err := ParseClock(iv.Close); err != nil {
		return err
	}
	return nil
}

// CheckWorkingHours validates the shape of a weekday→interval map:
// recognized day keys and parseable intervals. What the hours mean is
// opaque to the core (overnight intervals are legal).
func CheckWorkingHours(m map[string]HoursInterval) error {
	for day, iv := range m {
		if _, ok := weekdaySet[day]; !ok {
			return Validationf("working_hours: unknown day key %q", day)
		}
		if err := checkInterval(iv); err != nil {
			return Validationf("working_hours[%s]: %v", day, err)
		}
	}
	return nil
}

// CheckSpecialHours validates date-keyed overrides ("YYYY-MM-DD").
func CheckSpecialHours(m map[string]HoursInterval) error {
	if len(m) > MaxSpecialHours {
		return Validationf("special_hours: more than %d entries", MaxSpecialHours)
	}
	for date, iv := range m {
		if _, err := time.Parse("2006-01-02", date); err != nil {
			return Validationf("special_hours: bad date key %q", date)
		}
		if err := checkInterval(iv); err != nil {
			return Validationf("special_hours[%s]: %v", date, err)
		}
	}
	return nil
}

// CheckAttributes validates the boolean-flag map's shape only; flag
// semantics belong to the presentation layer.
func CheckAttributes(m map[string]bool) error {
	if len(m) > MaxAttributes {
		return Validationf("attributes: more than %d entries", MaxAttributes)
	}
	for k := range m {
		if strings.TrimSpace(k) == "" {
			return Validationf("attributes: empty key")
		}
		if len(k) > MaxAttributeKey {
			return Validationf("attributes: key %q exceeds %d characters", k, MaxAttributeKey)
		}
	}
	return nil
}

// CheckNotes validates a moderation-notes map (field name → comment).
func CheckNotes(m map[string]string) error {
	for field, comment := range m {
		if strings.TrimSpace(field) == "" {
			return Validationf("moderation notes: empty field name")
		}
		if len(comment) > MaxNoteLen {
			return Validationf("moderation notes[%s]: comment exceeds %d characters", field, MaxNoteLen)
		}
	}
	return nil
}

package services

import (
	"fmt"
	"time"
)

const (
	// SlotDuration is the fixed length of every booking.
	SlotDuration = time.Hour

	dateLayout  = "2006-01-02"
	clockLayout = "15:04"
	minutesDay  = 24 * 60
)

// clockMinutes parses HH:mm into minutes after midnight.
func clockMinutes(hhmm string) (int, error) {
	if len(hhmm) != len(clockLayout) {
		return 0, fmt.Errorf("time %q must be HH:mm", hhmm)
	}
	t, err := time.Parse(clockLayout, hhmm)
	if err != nil {
		return 0, fmt.Errorf("time %q must be HH:mm", hhmm)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// slotEnd returns the end of a slot starting at startTime. Slots never cross
// midnight.
func slotEnd(startTime string) (string, error) {
	start, err := clockMinutes(startTime)
	if err != nil {
		return "", err
	}
	end := start + int(SlotDuration/time.Minute)
	if end > minutesDay {
		return "", fmt.Errorf("a slot starting at %s would end after midnight", startTime)
	}
	if end == minutesDay {
		return "24:00", nil
	}
	return formatClock(end), nil
}

// span converts a stored [start, end) pair to minutes. "24:00" is accepted as
// the end of the day.
func span(startTime, endTime string) (int, int, error) {
	s, err := clockMinutes(startTime)
	if err != nil {
		return 0, 0, err
	}
	if endTime == "24:00" {
		return s, minutesDay, nil
	}
	e, err := clockMinutes(endTime)
	if err != nil {
		return 0, 0, err
	}
	return s, e, nil
}

// overlaps uses half-open semantics: [s1,e1) and [s2,e2) share an instant.
func overlaps(s1, e1, s2, e2 int) bool {
	return s1 < e2 && e1 > s2
}

package timectl

import (
	"fmt"
	"strings"
)

// Days lists the day abbreviations in week order.
var Days = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// DayIndex returns the zero-based index of a day abbreviation.
func DayIndex(day string) (int, error) {
	for i, d := range Days {
		if strings.EqualFold(d, strings.TrimSpace(day)) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown day %q", day)
}

// TimeOfWeekFor combines a day abbreviation and seconds since midnight.
func TimeOfWeekFor(day string, secondsOfDay int) (float64, error) {
	idx, err := DayIndex(day)
	if err != nil {
		return 0, err
	}
	if secondsOfDay < 0 || secondsOfDay >= DaySeconds {
		return 0, fmt.Errorf("time of day %d out of range", secondsOfDay)
	}
	return float64(idx*DaySeconds + secondsOfDay), nil
}

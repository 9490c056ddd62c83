package subtitles

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatSRTTimestamp renders a duration as HH:MM:SS,mmm.
func FormatSRTTimestamp(d time.Duration) string {
	return formatTimestamp(d, ",")
}

// FormatVTTTimestamp renders a duration as HH:MM:SS.mmm.
func FormatVTTTimestamp(d time.Duration) string {
	return formatTimestamp(d, ".")
}

func formatTimestamp(d time.Duration, millisSep string) string {
	if d < 0 {
		d = 0
	}
	total := d.Milliseconds()
	millis := total % 1000
	seconds := (total / 1000) % 60
	minutes := (total / 60000) % 60
	hours := total / 3600000
	return fmt.Sprintf("%02d:%02d:%02d%s%03d", hours, minutes, seconds, millisSep, millis)
}

// ParseSRTTimestamp converts an SRT or VTT timestamp back into a duration.
func ParseSRTTimestamp(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	value = strings.ReplaceAll(value, ".", ",")
	timeParts := strings.Split(value, ",")
	if len(timeParts) != 2 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hms := strings.Split(timeParts[0], ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.Atoi(hms[0])
	minutes, errM := strconv.Atoi(hms[1])
	seconds, errS := strconv.Atoi(hms[2])
	millis, errMS := strconv.Atoi(timeParts[1])
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	total := time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		time.Duration(millis)*time.Millisecond
	return total, nil
}

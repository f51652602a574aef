package css

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParsePx reads a pixel length such as "16px" or "16". Anything else is
// ErrMalformedValue.
func ParsePx(value string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(value), "px"), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a pixel length", ErrMalformedValue, value)
	}
	return v, nil
}

func formatPx(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "px"
}

// ParseOutline reads "<width>px solid <color>". Any other form, including
// "none", means no outline.
func ParseOutline(value string) (float64, string) {
	fields := strings.Fields(value)
	if len(fields) != 3 || fields[1] != "solid" {
		return 0, ""
	}
	thickness, err := ParsePx(fields[0])
	if err != nil || thickness <= 0 {
		return 0, ""
	}
	return thickness, fields[2]
}

// ParseTransition reads a comma-separated list of "<property> <duration>"
// entries and converts each duration into a frame count at the given frame
// interval.
func ParseTransition(value string, frame time.Duration) map[string]int {
	properties := map[string]int{}
	if value == "" || frame <= 0 {
		return properties
	}
	for item := range strings.SplitSeq(value, ",") {
		fields := strings.Fields(item)
		if len(fields) != 2 {
			continue
		}
		duration, err := parseDuration(fields[1])
		if err != nil {
			continue
		}
		properties[strings.ToLower(fields[0])] = int(duration / frame)
	}
	return properties
}

func parseDuration(value string) (time.Duration, error) {
	switch {
	case strings.HasSuffix(value, "ms"):
		v, err := strconv.ParseFloat(strings.TrimSuffix(value, "ms"), 64)
		return time.Duration(v * float64(time.Millisecond)), err
	case strings.HasSuffix(value, "s"):
		v, err := strconv.ParseFloat(strings.TrimSuffix(value, "s"), 64)
		return time.Duration(v * float64(time.Second)), err
	}
	return 0, fmt.Errorf("%w: duration %q", ErrMalformedValue, value)
}

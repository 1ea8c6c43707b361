// ABOUTME: Parsing and formatting of musical time values
// ABOUTME: Converts clock, second, beat and bar strings into seconds
package musictime

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrSyntax is returned for strings that are not a duration
	ErrSyntax = errors.New("invalid duration")
	// ErrNoTempo is returned for beat or bar units without a tempo
	ErrNoTempo = errors.New("duration in beats requires a tempo")
	// ErrNoMeter is returned for bar units without beats per bar
	ErrNoMeter = errors.New("duration in bars requires a time signature")
)

// Meter describes tempo and time signature for beat and bar units.
// A zero field means the value is not configured.
type Meter struct {
	BPM         float64
	BeatsPerBar int
}

// Beat returns the length of one beat in seconds
func (m Meter) Beat() (float64, error) {
	if m.BPM <= 0 {
		return 0, ErrNoTempo
	}
	return 60 / m.BPM, nil
}

// Bar returns the length of one bar in seconds
func (m Meter) Bar() (float64, error) {
	beat, err := m.Beat()
	if err != nil {
		return 0, err
	}
	if m.BeatsPerBar <= 0 {
		return 0, ErrNoMeter
	}
	return beat * float64(m.BeatsPerBar), nil
}

// ParseDuration returns the number of seconds a string denotes. Accepted forms:
//
//	"83", "12.5s", "8 sec", "10 seconds"   seconds
//	"1:23", "1:02:03.5"                    clock time
//	"4 beats", "1 beat"                    beats at m.BPM
//	"2 bars", "1 bar"                      bars at m.BPM and m.BeatsPerBar
func ParseDuration(s string, m Meter) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrSyntax)
	}
	if strings.Contains(s, ":") {
		return parseClock(s)
	}

	i := 0
	for i < len(s) && (s[i] >= '0' && s[i] <= '9' || s[i] == '.' || s[i] == '-' || s[i] == '+') {
		i++
	}
	qty, err := strconv.ParseFloat(s[:i], 64)
	if err != nil || math.IsInf(qty, 0) {
		return 0, fmt.Errorf("%w: %q", ErrSyntax, s)
	}

	switch unit := strings.ToLower(strings.TrimSpace(s[i:])); unit {
	case "", "s", "sec", "secs", "second", "seconds":
		return qty, nil
	case "beat", "beats":
		beat, err := m.Beat()
		if err != nil {
			return 0, err
		}
		return qty * beat, nil
	case "bar", "bars":
		bar, err := m.Bar()
		if err != nil {
			return 0, err
		}
		return qty * bar, nil
	default:
		return 0, fmt.Errorf("%w: unknown unit %q", ErrSyntax, unit)
	}
}

func parseClock(s string) (float64, error) {
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrSyntax, s)
	}
	var total float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || v < 0 || math.IsInf(v, 0) {
			return 0, fmt.Errorf("%w: %q", ErrSyntax, s)
		}
		// only the seconds field may be fractional or exceed 59
		if i < len(parts)-1 && v != math.Trunc(v) {
			return 0, fmt.Errorf("%w: %q", ErrSyntax, s)
		}
		if i > 0 && i < len(parts)-1 && v >= 60 {
			return 0, fmt.Errorf("%w: %q", ErrSyntax, s)
		}
		total = total*60 + v
	}
	return total, nil
}

// FormatTimestamp renders seconds as m:ss.cc, or ss.cc below one minute
func FormatTimestamp(seconds float64) string {
	if math.IsNaN(seconds) || seconds < 0 {
		seconds = 0
	}
	cs := int64(math.Round(seconds * 100))
	minutes := cs / 6000
	rem := cs % 6000
	if minutes > 0 {
		return fmt.Sprintf("%d:%02d.%02d", minutes, rem/100, rem%100)
	}
	return fmt.Sprintf("%02d.%02d", rem/100, rem%100)
}

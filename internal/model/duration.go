package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration is a time.Duration that reads "1m30s", "00:01:30", "1.02:00:00"
// or a number of seconds from JSON and always writes the Go form.
type Duration time.Duration

func Seconds(s int64) Duration { return Duration(time.Duration(s) * time.Second) }

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) Seconds() int64 { return int64(time.Duration(d) / time.Second) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*d = Duration(time.Duration(n * float64(time.Second)))
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration: %w", err)
	}
	parsed, err := parseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if !strings.Contains(s, ":") {
		return time.ParseDuration(s)
	}
	// [-][d.]hh:mm:ss[.fff]
	neg := strings.HasPrefix(s, "-")
	clock := strings.TrimPrefix(s, "-")
	parts := strings.Split(clock, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("duration: bad clock value %q", s)
	}
	var days int
	hours := parts[0]
	if i := strings.IndexByte(hours, '.'); i >= 0 {
		n, err := strconv.Atoi(hours[:i])
		if err != nil || n < 0 {
			return 0, fmt.Errorf("duration: bad days in %q", s)
		}
		days, hours = n, hours[i+1:]
	}
	h, err := strconv.Atoi(hours)
	if err != nil || h < 0 {
		return 0, fmt.Errorf("duration: bad hours in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 {
		return 0, fmt.Errorf("duration: bad minutes in %q", s)
	}
	sec, err := strconv.ParseFloat(parts[2], 64)
	if err != nil || sec < 0 {
		return 0, fmt.Errorf("duration: bad seconds in %q", s)
	}
	d := time.Duration(days)*24*time.Hour + time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec*float64(time.Second))
	if neg {
		d = -d
	}
	return d, nil
}

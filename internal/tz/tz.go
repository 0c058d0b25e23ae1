// Package tz converts upstream timestamps into the viewer's wall clock.
//
// Conversion is instant based: every timestamp is parsed into an absolute
// instant first and only then rendered in the target zone, so DST
// transitions in the target zone are handled by time.Location itself.
package tz

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	appLog "unical/internal/log"
)

// ErrEmpty is returned for blank timestamps.
var ErrEmpty = errors.New("tz: empty timestamp")

// layouts are tried in order. Layouts without an explicit offset are
// interpreted as UTC, which is what the upstream platforms emit.
var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// Normalizer renders upstream instants in a fixed viewer zone.
type Normalizer struct {
	loc *time.Location
}

// New returns a Normalizer for loc. A nil loc means UTC.
func New(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	return &Normalizer{loc: loc}
}

// Location returns the viewer zone.
func (n *Normalizer) Location() *time.Location {
	return n.loc
}

// ToLocal parses an upstream timestamp and returns it in the viewer zone.
// Numeric values are treated as unix seconds.
func (n *Normalizer) ToLocal(raw string) (time.Time, error) {
	t, err := Parse(raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.In(n.loc), nil
}

// Parse parses an upstream timestamp into an absolute instant.
func Parse(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, ErrEmpty
	}

	if isDigits(s) {
		sec, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("tz: parse unix %q: %w", s, err)
		}
		return time.Unix(sec, 0).UTC(), nil
	}

	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("tz: unrecognized timestamp %q", s)
}

// Load resolves an IANA zone name, falling back to UTC on failure.
func Load(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to UTC", err, "name", name)
		return time.UTC
	}
	return loc
}

// StartOfDay returns local midnight of t's calendar day in t's zone.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DateKey formats t's calendar day as YYYY-MM-DD.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// ParseDate parses a YYYY-MM-DD day in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation("2006-01-02", strings.TrimSpace(s), loc)
}

func isDigits(s string) bool {
	start := 0
	if s[0] == '-' {
		start = 1
	}
	if start == len(s) {
		return false
	}
	for i := start; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

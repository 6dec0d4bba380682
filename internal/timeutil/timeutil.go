// Package timeutil converts between vendor UTC instants and zoned wall-clock
// timestamps, and parses read-period bounds that may or may not carry a zone.
package timeutil

import (
	"fmt"
	"strings"
	"time"
)

// DateTime is a wall-clock timestamp whose zone may be unassigned.
type DateTime struct {
	wall time.Time
	zone *time.Location
}

// Naive returns a DateTime with the wall-clock fields of t and no zone.
func Naive(t time.Time) DateTime {
	return DateTime{wall: time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)}
}

// Zoned returns a DateTime fixed to t's location.
func Zoned(t time.Time) DateTime {
	return DateTime{wall: t, zone: t.Location()}
}

// IsZero reports whether d was never set.
func (d DateTime) IsZero() bool {
	return d.wall.IsZero()
}

// HasZone reports whether a zone is attached.
func (d DateTime) HasZone() bool {
	return d.zone != nil
}

// In returns d as an instant. A naive value gets loc attached without altering
// the wall-clock numbers; a zoned value keeps its own zone.
func (d DateTime) In(loc *time.Location) time.Time {
	if d.zone != nil {
		return d.wall.In(d.zone)
	}
	return AttachZone(d.wall, loc)
}

func (d DateTime) String() string {
	if d.zone == nil {
		return d.wall.Format("2006-01-02 15:04:05")
	}
	return d.wall.Format(time.RFC3339)
}

// AttachZone reinterprets the wall clock of t in loc.
func AttachZone(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02 15",
	"2006-01-02",
	"2006-01",
	"2006",
}

// ParseDateTime parses a read-period bound. RFC 3339 input is zoned, a trailing
// zone token ("2024-01-02 03:04 America/Denver") is zoned, anything else is naive.
func ParseDateTime(s string) (DateTime, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DateTime{}, fmt.Errorf("empty date/time")
	}

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return Zoned(t), nil
	}

	for _, layout := range naiveLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Naive(t), nil
		}
	}

	if i := strings.LastIndex(s, " "); i > 0 {
		loc, locErr := ResolveLocation(s[i+1:])
		if locErr == nil {
			inner, err := ParseDateTime(s[:i])
			if err == nil && !inner.HasZone() {
				return Zoned(inner.In(loc)), nil
			}
		}
	}

	return DateTime{}, fmt.Errorf("unrecognized date/time %q", s)
}

// ResolveLocation resolves an IANA zone name, a "UTC"/"GMT"/"Z" alias, or a
// numeric offset such as "-07:00". An empty name resolves to the machine zone.
func ResolveLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	switch strings.ToUpper(name) {
	case "":
		return time.Local, nil
	case "Z", "UTC", "GMT":
		return time.UTC, nil
	}

	if name[0] == '+' || name[0] == '-' {
		for _, layout := range []string{"-07:00", "-0700", "-07"} {
			if t, err := time.Parse(layout, name); err == nil {
				_, offset := t.Zone()
				return time.FixedZone(name, offset), nil
			}
		}
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid time zone %q: %w", name, err)
	}
	return loc, nil
}

// ToZoned converts a UTC instant to wall-clock time in zoneID, defaulting to
// UTC when zoneID is empty. Precision is kept to the millisecond.
func ToZoned(instant time.Time, zoneID string) (time.Time, error) {
	loc := time.UTC
	if zoneID != "" {
		var err error
		if loc, err = ResolveLocation(zoneID); err != nil {
			return time.Time{}, err
		}
	}
	return ToLocation(instant, loc), nil
}

// ToLocation is ToZoned for an already resolved location; nil means UTC.
func ToLocation(instant time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return instant.In(loc).Truncate(time.Millisecond)
}

// ToEpochSeconds resolves d to Unix seconds. A naive d is interpreted in
// zoneAbbreviation, or the machine zone when that is empty.
func ToEpochSeconds(d DateTime, zoneAbbreviation string) (int64, error) {
	if d.HasZone() {
		return d.In(nil).Unix(), nil
	}
	loc, err := ResolveLocation(zoneAbbreviation)
	if err != nil {
		return 0, err
	}
	return d.In(loc).Unix(), nil
}

// Package timezones resolves the campus time zone that event dates and
// times are entered in, and turns those entries into instants.
package timezones

import (
	"errors"
	"fmt"
	"strings"
	"time"

	// Containers often ship without a zoneinfo database.
	_ "time/tzdata"
)

// Default is used when no zone is configured.
const Default = "Europe/Paris"

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

var (
	ErrBadDate = errors.New("date must be YYYY-MM-DD")
	ErrBadTime = errors.New("time must be HH:MM")
)

// Load returns the location for id, or Default when id is empty.
func Load(id string) (*time.Location, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		id = Default
	}
	loc, err := time.LoadLocation(id)
	if err != nil {
		return nil, fmt.Errorf("time zone %q: %w", id, err)
	}
	return loc, nil
}

// Valid reports whether id names a loadable zone.
func Valid(id string) bool {
	_, err := Load(id)
	return err == nil
}

// ParseLocal combines a date and a wall-clock time in loc.
func ParseLocal(date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(date), loc)
	if err != nil {
		return time.Time{}, ErrBadDate
	}
	c, err := time.Parse(TimeLayout, strings.TrimSpace(clock))
	if err != nil {
		return time.Time{}, ErrBadTime
	}
	return time.Date(d.Year(), d.Month(), d.Day(), c.Hour(), c.Minute(), 0, 0, loc), nil
}

// Label formats loc with its offset at t, e.g. "Europe/Paris (UTC+02:00)".
func Label(loc *time.Location, t time.Time) string {
	_, off := t.In(loc).Zone()
	sign := "+"
	if off < 0 {
		sign = "-"
		off = -off
	}
	return fmt.Sprintf("%s (UTC%s%02d:%02d)", loc.String(), sign, off/3600, (off%3600)/60)
}

package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Validation errors returned by the helpers below.
var (
	ErrInvalidTime         = errors.New("time must be HH:MM (24h)")
	ErrInvalidTimezone     = errors.New("unknown IANA timezone")
	ErrInvalidScheduleType = errors.New("schedule type must be daily or monday_only")
	ErrInvalidRating       = errors.New("rating must be between 1 and 5")
)

var (
	clockRe   = regexp.MustCompile(`^([01]?\d|2[0-3]):([0-5]\d)$`)
	userIDRe  = regexp.MustCompile(`^[UW][A-Z0-9]{8,}$`)
	chanIDRe  = regexp.MustCompile(`^[CGD][A-Z0-9]{8,}$`)
	teamIDRe  = regexp.MustCompile(`^T[A-Z0-9]{8,}$`)
	blankAnsw = map[string]struct{}{
		"": {}, "none": {}, "n/a": {}, "na": {}, "no": {}, "nope": {}, "-": {},
	}
)

// ParseClock parses "HH:MM" into hour and minute.
func ParseClock(s string) (hour, minute int, err error) {
	m := clockRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	return hour, minute, nil
}

// NormalizeClock returns s as zero-padded "HH:MM".
func NormalizeClock(s string) (string, error) {
	h, m, err := ParseClock(s)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%02d:%02d", h, m), nil
}

// LoadTimezone validates an IANA timezone name.
func LoadTimezone(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "local") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, name)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, name)
	}
	return loc, nil
}

// ValidScheduleType reports whether t is a supported standup cadence.
func ValidScheduleType(t string) bool {
	return t == ScheduleDaily || t == ScheduleMondayOnly
}

// ValidRating checks a 1..5 rating.
func ValidRating(r int) error {
	if r < 1 || r > 5 {
		return fmt.Errorf("%w: %d", ErrInvalidRating, r)
	}
	return nil
}

// IsSlackUserID reports whether s looks like a Slack user id.
func IsSlackUserID(s string) bool { return userIDRe.MatchString(s) }

// IsSlackChannelID reports whether s looks like a Slack channel id.
func IsSlackChannelID(s string) bool { return chanIDRe.MatchString(s) }

// IsSlackTeamID reports whether s looks like a Slack team id.
func IsSlackTeamID(s string) bool { return teamIDRe.MatchString(s) }

// IsBlankAnswer reports whether a free-text answer carries no content.
// Placeholder replies such as "none" or "n/a" count as blank.
func IsBlankAnswer(s string) bool {
	_, ok := blankAnsw[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// Period formats t in loc as the YYYY-MM-DD key used for standup dates and
// feedback week endings.
func Period(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(time.DateOnly)
}

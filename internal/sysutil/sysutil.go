// Package sysutil holds the string conventions shared by configuration and
// process setup: log level names and boolean spellings.
package sysutil

import (
	"strings"

	"github.com/rs/zerolog"
)

var levels = map[string]zerolog.Level{
	"debug":   zerolog.DebugLevel,
	"info":    zerolog.InfoLevel,
	"warn":    zerolog.WarnLevel,
	"warning": zerolog.WarnLevel,
	"error":   zerolog.ErrorLevel,
	"fatal":   zerolog.FatalLevel,
	"panic":   zerolog.PanicLevel,
}

// ParseLevel maps a LOG_LEVEL value (case-insensitive) to a zerolog level.
// Empty means info. Unknown names report ok=false.
func ParseLevel(lvl string) (zerolog.Level, bool) {
	lvl = strings.ToLower(strings.TrimSpace(lvl))
	if lvl == "" {
		return zerolog.InfoLevel, true
	}
	l, ok := levels[lvl]
	if !ok {
		return zerolog.InfoLevel, false
	}
	return l, true
}

// SetLogLevel sets the global zerolog level, falling back to info, and
// returns the level applied.
func SetLogLevel(lvl string) zerolog.Level {
	l, _ := ParseLevel(lvl)
	zerolog.SetGlobalLevel(l)
	return l
}

// ParseBool accepts 1/true/yes/y/on and 0/false/no/n/off in any case.
// ok is false for anything else.
func ParseBool(v string) (val, ok bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true, true
	case "0", "false", "no", "n", "off":
		return false, true
	}
	return false, false
}

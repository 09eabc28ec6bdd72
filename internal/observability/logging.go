package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tbourn/vibe-check/internal/sysutil"
)

// Rotation policy for LOG_FILE.
const (
	logMaxSizeMB  = 100
	logMaxBackups = 7
	logMaxAgeDays = 28
)

// LogOptions configures SetupLogging.
type LogOptions struct {
	Level  string
	Pretty bool
	// File, when set, receives JSON logs in addition to stderr and is
	// rotated by size.
	File string
	// Stderr overrides os.Stderr (tests).
	Stderr io.Writer
}

// SetupLogging configures the global zerolog logger and level and returns
// the logger together with a closer for the rotating file, if any.
func SetupLogging(opts LogOptions) (zerolog.Logger, io.Closer) {
	sysutil.SetLogLevel(opts.Level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var console io.Writer = os.Stderr
	if opts.Stderr != nil {
		console = opts.Stderr
	}
	if opts.Pretty {
		console = zerolog.ConsoleWriter{Out: console, TimeFormat: time.Kitchen}
	}

	out := console
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		rot := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    logMaxSizeMB,
			MaxBackups: logMaxBackups,
			MaxAge:     logMaxAgeDays,
			Compress:   true,
		}
		out = zerolog.MultiLevelWriter(console, rot)
		closer = rot
	}

	lg := zerolog.New(out).With().Timestamp().Str("service", "vibe-check").Logger()
	log.Logger = lg
	zerolog.DefaultContextLogger = &lg
	return lg, closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

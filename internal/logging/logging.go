package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogLevel   = "CANDECODE_LOG_LEVEL"
	EnvLogNoColor = "CANDECODE_LOG_NOCOLOR"
)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

var configureOnce sync.Once

// ConfigureRuntime sets up the process logger on stderr for a CLI.
func ConfigureRuntime(app string) zerolog.Logger {
	Configure(ProfileRuntime, app, os.Stderr)
	return log.Logger
}

// ConfigureTests sets up a quiet debug logger for tests.
func ConfigureTests() {
	Configure(ProfileTest, "test", io.Discard)
}

// Configure installs the global logger once per process.
func Configure(profile Profile, app string, out io.Writer) {
	configureOnce.Do(func() {
		log.Logger = New(profile, app, out)
		zerolog.SetGlobalLevel(log.Logger.GetLevel())
	})
}

// New builds a console logger for the given profile; env overrides apply.
func New(profile Profile, app string, out io.Writer) zerolog.Logger {
	level := zerolog.InfoLevel
	timestamps := true
	if profile == ProfileTest {
		level = zerolog.DebugLevel
		timestamps = false
	}
	if lvl, ok := parseLevel(os.Getenv(EnvLogLevel)); ok {
		level = lvl
	}
	noColor, _ := parseBool(os.Getenv(EnvLogNoColor))

	writer := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		NoColor:    noColor,
	}
	ctx := zerolog.New(writer).Level(level).With().Str("app", app)
	if timestamps {
		ctx = ctx.Timestamp()
	}
	return ctx.Logger()
}

// Component returns a child of the global logger tagged with a component name.
func Component(name string) zerolog.Logger {
	return log.Logger.With().Str("component", name).Logger()
}

func parseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

package logging

import (
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// StartupLogger collects process identity, configuration, and feature flags,
// then emits a single structured zerolog event summarising the startup state.
// One line per boot makes it easy to see how a binary was configured when
// reading its logs after the fact.
type StartupLogger struct {
	name         string
	version      string
	initDuration time.Duration

	listeners map[string]string
	caches    map[string]string
	features  map[string]bool
	config    map[string]string
}

// NewStartupLogger creates a StartupLogger for the given binary name
// (e.g. "guardian-web", "guardian-mcp").
func NewStartupLogger(name string) *StartupLogger {
	return &StartupLogger{
		name:      name,
		listeners: make(map[string]string),
		caches:    make(map[string]string),
		features:  make(map[string]bool),
		config:    make(map[string]string),
	}
}

// Version sets the build version baked into the binary.
func (s *StartupLogger) Version(v string) *StartupLogger {
	s.version = v
	return s
}

// Listener registers a network address the process serves on.
func (s *StartupLogger) Listener(label, addr string) *StartupLogger {
	s.listeners[label] = addr
	return s
}

// Cache registers an asset cache generation and the backend holding it.
func (s *StartupLogger) Cache(name, backend string) *StartupLogger {
	s.caches[name] = backend
	return s
}

// Feature registers a boolean feature flag (e.g. "apiKey", "offlineCache").
func (s *StartupLogger) Feature(name string, enabled bool) *StartupLogger {
	s.features[name] = enabled
	return s
}

// Config registers a non-sensitive configuration key-value pair.
func (s *StartupLogger) Config(key, value string) *StartupLogger {
	s.config[key] = value
	return s
}

// InitDuration records how long startup took.
func (s *StartupLogger) InitDuration(d time.Duration) *StartupLogger {
	s.initDuration = d
	return s
}

// EnvOrDefault returns the value of the named environment variable, or
// defaultVal if the variable is empty or unset.
func EnvOrDefault(envVar, defaultVal string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return defaultVal
}

// Log emits a single structured INFO log event with all collected information.
func (s *StartupLogger) Log() {
	evt := log.Info()

	proc := zerolog.Dict().
		Str("name", s.name).
		Int("pid", os.Getpid()).
		Str("goVersion", runtime.Version()).
		Str("arch", runtime.GOARCH).
		Str("os", runtime.GOOS).
		Str("logLevel", zerolog.GlobalLevel().String())
	if s.version != "" {
		proc = proc.Str("version", s.version)
	}
	evt = evt.Dict("process", proc)

	if len(s.listeners) > 0 {
		evt = evt.Dict("listeners", dictFromMap(s.listeners))
	}
	if len(s.caches) > 0 {
		evt = evt.Dict("caches", dictFromMap(s.caches))
	}

	if len(s.features) > 0 {
		d := zerolog.Dict()
		for k, v := range s.features {
			d = d.Bool(k, v)
		}
		evt = evt.Dict("features", d)
	}

	if len(s.config) > 0 {
		evt = evt.Dict("config", dictFromMap(s.config))
	}

	if s.initDuration > 0 {
		evt = evt.Dur("initDuration", s.initDuration)
	}

	evt.Msg("Startup complete")
}

// dictFromMap converts a map[string]string into a zerolog.Event (Dict).
func dictFromMap(m map[string]string) *zerolog.Event {
	d := zerolog.Dict()
	for k, v := range m {
		d = d.Str(k, v)
	}
	return d
}

package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// output lets Init swap the destination after package-level component loggers were created.
var output = &switchWriter{w: os.Stderr}

func init() {
	log.Logger = zerolog.New(output).With().Timestamp().Caller().Logger()
}

// Init configures the global zerolog logger.
// format "json" writes one JSON object per line; anything else uses the colorized console writer.
func Init(level, format string) {
	if strings.EqualFold(format, "json") {
		output.set(os.Stderr)
	} else {
		output.set(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// Component returns a child of the global logger tagged with the component name.
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

type switchWriter struct {
	mu sync.RWMutex
	w  io.Writer
}

func (s *switchWriter) set(w io.Writer) {
	s.mu.Lock()
	s.w = w
	s.mu.Unlock()
}

func (s *switchWriter) Write(p []byte) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.w.Write(p)
}

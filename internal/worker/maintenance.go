package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"warbler/internal/queue"
)

// StreamTrimmer caps a stream's length.
type StreamTrimmer interface {
	Trim(ctx context.Context, stream string, maxLen int64) (int64, error)
}

// Maintenance runs periodic housekeeping on a cron schedule.
type Maintenance struct {
	cron    *cron.Cron
	trimmer StreamTrimmer
	maxLen  int64
}

// NewMaintenance schedules stream trimming. spec is a standard cron expression or a
// descriptor such as "@hourly".
func NewMaintenance(trimmer StreamTrimmer, spec string, maxLen int64) (*Maintenance, error) {
	m := &Maintenance{
		cron:    cron.New(),
		trimmer: trimmer,
		maxLen:  maxLen,
	}

	if _, err := m.cron.AddFunc(spec, m.TrimStream); err != nil {
		return nil, fmt.Errorf("invalid trim schedule %q: %w", spec, err)
	}
	return m, nil
}

func (m *Maintenance) Start() {
	m.cron.Start()
	log.Info().Int("jobs", len(m.cron.Entries())).Msg("Maintenance scheduler started")
}

// Stop waits for a running job to finish.
func (m *Maintenance) Stop() {
	<-m.cron.Stop().Done()
}

// TrimStream drops the oldest timeline events beyond maxLen.
func (m *Maintenance) TrimStream() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	removed, err := m.trimmer.Trim(ctx, queue.StreamTimeline, m.maxLen)
	if err != nil {
		log.Error().Err(err).Msg("Stream trim failed")
		return
	}
	log.Info().Int64("removed", removed).Int64("max_len", m.maxLen).Msg("Stream trimmed")
}

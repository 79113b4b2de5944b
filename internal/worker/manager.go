package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"warbler/internal/queue"
)

const (
	// DefaultWorkerCount is the default number of worker goroutines
	DefaultWorkerCount = 2

	// DefaultBatchSize is the number of messages to read per batch
	DefaultBatchSize = 10

	// DefaultBlockTimeout is how long to block waiting for new messages
	DefaultBlockTimeout = 5 * time.Second

	// DefaultMaxAttempts is how often a failing event is handled before it is dropped
	DefaultMaxAttempts = 5

	// DefaultRetryInterval is how often unacknowledged events are handled again
	DefaultRetryInterval = 30 * time.Second
)

// EventHandler processes one stream event.
type EventHandler interface {
	HandleEvent(ctx context.Context, event queue.TimelineEvent) error
}

// Manager orchestrates worker goroutines that consume from Redis Streams.
type Manager struct {
	consumer    queue.Consumer
	handler     EventHandler
	workerCount int
	batchSize   int64
	blockTime   time.Duration
	instance    string

	maxAttempts   int
	retryInterval time.Duration

	// attempts counts failed deliveries per stream entry id
	mu       sync.Mutex
	attempts map[string]int

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// ManagerConfig holds configuration for the worker manager.
type ManagerConfig struct {
	WorkerCount  int           // Number of worker goroutines
	BatchSize    int64         // Messages per read
	BlockTimeout time.Duration // Block time for XREADGROUP
	// Instance names this process in consumer names. Defaults to hostname.
	Instance string
	// A failed event stays pending and is retried every RetryInterval,
	// up to MaxAttempts deliveries in total.
	MaxAttempts   int
	RetryInterval time.Duration
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		WorkerCount:   DefaultWorkerCount,
		BatchSize:     DefaultBatchSize,
		BlockTimeout:  DefaultBlockTimeout,
		MaxAttempts:   DefaultMaxAttempts,
		RetryInterval: DefaultRetryInterval,
	}
}

// NewManager creates a new worker manager.
func NewManager(consumer queue.Consumer, handler EventHandler, cfg ManagerConfig) *Manager {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = DefaultWorkerCount
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = DefaultBlockTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	if cfg.Instance == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = uuid.NewString()
		}
		cfg.Instance = host
	}

	return &Manager{
		consumer:    consumer,
		handler:     handler,
		workerCount: cfg.WorkerCount,
		batchSize:   cfg.BatchSize,
		blockTime:   cfg.BlockTimeout,
		instance:    cfg.Instance,

		maxAttempts:   cfg.MaxAttempts,
		retryInterval: cfg.RetryInterval,
		attempts:      make(map[string]int),
	}
}

// Start begins the worker goroutines.
// Call Stop() to gracefully shut down.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	if err := m.consumer.EnsureGroup(m.ctx, queue.StreamTimeline, queue.ConsumerGroupTimeline); err != nil {
		m.cancel()
		return err
	}

	for i := 1; i <= m.workerCount; i++ {
		m.wg.Add(1)
		go m.runWorker(i, m.consumerName(i))
	}

	log.Info().
		Int("workers", m.workerCount).
		Str("stream", queue.StreamTimeline).
		Str("group", queue.ConsumerGroupTimeline).
		Msg("Workers started")
	return nil
}

// Stop gracefully shuts down all workers.
// Blocks until all workers have finished.
func (m *Manager) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	m.wg.Wait()
	log.Info().Msg("All workers stopped")
}

// runWorker is the main loop for a single worker goroutine.
func (m *Manager) runWorker(workerID int, consumerName string) {
	defer m.wg.Done()

	// Messages left pending by a previous run of this consumer (crash recovery)
	m.processPending(workerID, consumerName)
	lastRetry := time.Now()

	for {
		select {
		case <-m.ctx.Done():
			log.Debug().Int("worker", workerID).Msg("Shutting down")
			return
		default:
			m.processMessages(workerID, consumerName)
			if time.Since(lastRetry) >= m.retryInterval {
				m.processPending(workerID, consumerName)
				lastRetry = time.Now()
			}
		}
	}
}

// processPending makes one pass over this consumer's unacknowledged messages.
// Entries that fail again stay pending for the next pass.
func (m *Manager) processPending(workerID int, consumerName string) {
	after := "0"
	for m.ctx.Err() == nil {
		messages, err := m.consumer.ReadPending(m.ctx, queue.StreamTimeline, queue.ConsumerGroupTimeline, consumerName, after, m.batchSize)
		if err != nil {
			log.Error().Err(err).Int("worker", workerID).Msg("Error reading pending")
			return
		}
		if len(messages) == 0 {
			return
		}

		log.Info().Int("worker", workerID).Int("count", len(messages)).Msg("Processing pending messages")
		m.handleMessages(workerID, messages)
		after = messages[len(messages)-1].ID
	}
}

// processMessages reads and handles a batch of messages.
func (m *Manager) processMessages(workerID int, consumerName string) {
	messages, err := m.consumer.Read(
		m.ctx,
		queue.StreamTimeline,
		queue.ConsumerGroupTimeline,
		consumerName,
		m.batchSize,
		m.blockTime,
	)
	if err != nil {
		if m.ctx.Err() != nil {
			return
		}
		log.Error().Err(err).Int("worker", workerID).Msg("Error reading")
		// Back off on error
		select {
		case <-m.ctx.Done():
		case <-time.After(time.Second):
		}
		return
	}

	if len(messages) == 0 {
		return
	}

	m.handleMessages(workerID, messages)
}

// handleMessages processes a batch. Handled messages are acknowledged. A failed
// message stays pending for the next retry pass until it has failed maxAttempts
// times; it is then acknowledged and dropped, leaving the affected timelines to
// their TTL.
func (m *Manager) handleMessages(workerID int, messages []queue.Message) {
	for _, msg := range messages {
		err := m.handler.HandleEvent(m.ctx, msg.Event)
		if err != nil {
			if m.ctx.Err() != nil {
				// interrupted by shutdown; the entry is picked up on restart
				return
			}
			if !m.giveUp(msg.ID, err) {
				log.Warn().Err(err).Int("worker", workerID).Str("id", msg.ID).Msg("Handler error, will retry")
				continue
			}
			log.Error().Err(err).Int("worker", workerID).Str("id", msg.ID).Str("type", msg.Event.Type).Msg("Dropping event")
		}

		if err := m.consumer.Ack(m.ctx, queue.StreamTimeline, queue.ConsumerGroupTimeline, msg.ID); err != nil {
			log.Error().Err(err).Int("worker", workerID).Str("id", msg.ID).Msg("ACK error")
			continue
		}
		m.forget(msg.ID)
	}
}

// giveUp records a failed delivery and reports whether the message should be dropped.
func (m *Manager) giveUp(id string, err error) bool {
	if errors.Is(err, ErrUnknownEvent) {
		return true
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[id]++
	return m.attempts[id] >= m.maxAttempts
}

func (m *Manager) forget(id string) {
	m.mu.Lock()
	delete(m.attempts, id)
	m.mu.Unlock()
}

// consumerName is stable across restarts so pending messages are picked up again.
func (m *Manager) consumerName(workerID int) string {
	return fmt.Sprintf("%s-worker-%d", m.instance, workerID)
}

package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"warbler/internal/cache"
	"warbler/internal/logger"
	"warbler/internal/queue"
)

var log = logger.Component("Worker")

// ErrUnknownEvent marks events no retry can fix.
var ErrUnknownEvent = errors.New("unknown event type")

// FollowerProvider defines the interface for fetching followers.
// This abstracts the repository layer so workers don't depend on DB directly.
type FollowerProvider interface {
	// GetFollowerIDs returns all follower IDs for a given user.
	GetFollowerIDs(ctx context.Context, userID int64) ([]int64, error)
}

// Handler applies timeline events to the timeline cache.
type Handler struct {
	timelines        cache.TimelineCache
	followerProvider FollowerProvider
}

// NewHandler creates a new event handler.
func NewHandler(timelines cache.TimelineCache, followerProvider FollowerProvider) *Handler {
	return &Handler{
		timelines:        timelines,
		followerProvider: followerProvider,
	}
}

// HandleEvent routes an event to the appropriate handler based on type.
func (h *Handler) HandleEvent(ctx context.Context, event queue.TimelineEvent) error {
	startTime := time.Now()
	var err error

	switch event.Type {
	case queue.EventMessageCreated:
		err = h.handleMessageCreated(ctx, event)
	case queue.EventMessageDeleted:
		err = h.handleMessageDeleted(ctx, event)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, event.Type)
	}

	if err != nil {
		log.Error().Err(err).Str("type", event.Type).Dur("duration", time.Since(startTime)).Msg("HandleEvent failed")
		return err
	}

	log.Debug().Str("type", event.Type).Dur("duration", time.Since(startTime)).Msg("HandleEvent OK")
	return nil
}

// handleMessageCreated fans a new message out to the author's and every follower's timeline.
func (h *Handler) handleMessageCreated(ctx context.Context, event queue.TimelineEvent) error {
	followers, err := h.followerProvider.GetFollowerIDs(ctx, event.AuthorID)
	if err != nil {
		return fmt.Errorf("get followers: %w", err)
	}

	score := cache.MessageScore{MessageID: event.MessageID, Score: event.Score}
	failed := h.fanout(ctx, audience(event.AuthorID, followers), func(userID int64) error {
		return h.timelines.AddMessage(ctx, userID, score)
	})

	log.Info().
		Int64("message", event.MessageID).
		Int("fanout", len(followers)+1).
		Int("failed", failed).
		Msg("MessageCreated done")
	return unresolved(failed)
}

// handleMessageDeleted removes a message from the author's and every follower's timeline.
func (h *Handler) handleMessageDeleted(ctx context.Context, event queue.TimelineEvent) error {
	followers, err := h.followerProvider.GetFollowerIDs(ctx, event.AuthorID)
	if err != nil {
		return fmt.Errorf("get followers: %w", err)
	}

	failed := h.fanout(ctx, audience(event.AuthorID, followers), func(userID int64) error {
		return h.timelines.RemoveMessage(ctx, userID, event.MessageID)
	})

	log.Info().
		Int64("message", event.MessageID).
		Int("fanout", len(followers)+1).
		Int("failed", failed).
		Msg("MessageDeleted done")
	return unresolved(failed)
}

// fanout applies fn to every user. A failure for one user does not stop the
// others; that user's timeline is dropped instead so the next read rebuilds it.
// It returns how many timelines could be neither updated nor dropped.
func (h *Handler) fanout(ctx context.Context, users []int64, fn func(userID int64) error) int {
	failed := 0
	for _, userID := range users {
		if err := fn(userID); err == nil {
			continue
		}
		if err := h.timelines.Invalidate(ctx, userID); err != nil {
			failed++
		}
	}
	return failed
}

// unresolved turns leftover failures into an error so the event is retried.
// Both fan-out operations are idempotent, so repeating them is harmless.
func unresolved(failed int) error {
	if failed == 0 {
		return nil
	}
	return fmt.Errorf("%d timelines left stale", failed)
}

// audience is everyone whose home timeline shows the author's messages.
func audience(authorID int64, followers []int64) []int64 {
	ids := make([]int64, 0, len(followers)+1)
	ids = append(ids, authorID)
	return append(ids, followers...)
}

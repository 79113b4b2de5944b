package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"warbler/internal/cache"
	"warbler/internal/logger"
	"warbler/internal/model"
	"warbler/internal/queue"
	"warbler/internal/repository"
)

var messageLog = logger.Component("MessageService")

type MessageService struct {
	messageRepo repository.MessageRepository
	followRepo  repository.FollowRepository
	publisher   queue.Publisher
	timelines   cache.TimelineCache
}

// NewMessageService accepts a nil publisher and a nil timelines cache.
// Without a publisher, timelines are only filled on cache misses.
func NewMessageService(
	messageRepo repository.MessageRepository,
	followRepo repository.FollowRepository,
	publisher queue.Publisher,
	timelines cache.TimelineCache,
) *MessageService {
	return &MessageService{
		messageRepo: messageRepo,
		followRepo:  followRepo,
		publisher:   publisher,
		timelines:   timelines,
	}
}

func (s *MessageService) Create(ctx context.Context, userID int64, req *model.CreateMessageRequest) (*model.Message, error) {
	text := strings.TrimSpace(req.Text)

	v := &model.ValidationError{}
	if text == "" {
		v.Add("text", "Message text is required")
	} else if utf8.RuneCountInString(text) > model.MaxMessageLength {
		v.Add("text", fmt.Sprintf("Message must be at most %d characters", model.MaxMessageLength))
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	msg := &model.Message{Text: text, UserID: userID}
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, err
	}

	score := cache.ScoreOf(msg.ID, msg.Timestamp).Score
	s.publish(ctx, queue.NewMessageCreatedEvent(msg.ID, userID, score))
	return msg, nil
}

func (s *MessageService) Get(ctx context.Context, messageID int64) (*model.Message, error) {
	return s.messageRepo.GetByID(ctx, messageID)
}

// Delete removes a message owned by userID.
func (s *MessageService) Delete(ctx context.Context, userID, messageID int64) error {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.UserID != userID {
		return model.ErrNotMessageOwner
	}

	if err := s.messageRepo.Delete(ctx, messageID); err != nil {
		return err
	}

	s.publish(ctx, queue.NewMessageDeletedEvent(messageID, userID))
	return nil
}

func (s *MessageService) ListByUser(ctx context.Context, userID int64, limit int) ([]model.Message, error) {
	if limit <= 0 || limit > model.HomeFeedLimit {
		limit = model.HomeFeedLimit
	}
	return s.messageRepo.ListByUser(ctx, userID, limit)
}

// publish runs after the write committed. When the event cannot be queued, the
// timelines it would have touched are dropped instead, so they rebuild from SQL.
func (s *MessageService) publish(ctx context.Context, event queue.TimelineEvent) {
	if s.publisher == nil {
		return
	}

	id, err := s.publisher.Publish(ctx, queue.StreamTimeline, event)
	if err != nil {
		messageLog.Error().Err(err).Str("type", event.Type).Int64("message", event.MessageID).Msg("Failed to publish event")
		s.invalidateAudience(ctx, event.AuthorID)
		return
	}
	messageLog.Debug().Str("type", event.Type).Int64("message", event.MessageID).Str("id", id).Msg("Published event")
}

// invalidateAudience drops the timelines of authorID and their followers.
// If followers cannot be listed, only the author's own timeline is dropped;
// the others catch up when their TTL runs out.
func (s *MessageService) invalidateAudience(ctx context.Context, authorID int64) {
	if s.timelines == nil {
		return
	}

	audience := []int64{authorID}
	if s.followRepo != nil {
		followers, err := s.followRepo.GetFollowerIDs(ctx, authorID)
		if err != nil {
			messageLog.Warn().Err(err).Int64("author", authorID).Msg("Could not list followers to invalidate")
		} else {
			audience = append(audience, followers...)
		}
	}

	failed := 0
	for _, userID := range audience {
		if err := s.timelines.Invalidate(ctx, userID); err != nil {
			failed++
		}
	}
	messageLog.Warn().Int64("author", authorID).Int("timelines", len(audience)).Int("failed", failed).Msg("Invalidated timelines after publish failure")
}

package service

import (
	"context"
	"time"

	"warbler/internal/cache"
	"warbler/internal/logger"
	"warbler/internal/model"
	"warbler/internal/repository"
)

var feedLog = logger.Component("FeedService")

// FeedService assembles the home timeline.
//
// Reads go to the per-user Redis timeline first. Cached ids are hydrated from
// Postgres and filtered by the viewer's current author set, so a stale cache can
// only hide messages, never show ones from authors the viewer does not follow.
// Whenever hiding may have happened, the SQL query answers instead.
type FeedService struct {
	messageRepo repository.MessageRepository
	followRepo  repository.FollowRepository
	likes       *LikeService
	timelines   cache.TimelineCache
}

// NewFeedService accepts a nil timelines cache; every read then goes to SQL.
func NewFeedService(
	messageRepo repository.MessageRepository,
	followRepo repository.FollowRepository,
	likes *LikeService,
	timelines cache.TimelineCache,
) *FeedService {
	return &FeedService{
		messageRepo: messageRepo,
		followRepo:  followRepo,
		likes:       likes,
		timelines:   timelines,
	}
}

// Homepage returns the newest messages by userID and everyone they follow,
// plus which of them userID has liked.
func (s *FeedService) Homepage(ctx context.Context, userID int64) (*model.Feed, error) {
	startTime := time.Now()
	limit := model.HomeFeedLimit

	authors, err := s.authors(ctx, userID)
	if err != nil {
		return nil, err
	}

	messages, source := s.fromCache(ctx, userID, authors, limit)
	if messages == nil {
		// Reserve before reading, so fan-out and invalidation racing the
		// query are applied to (or discard) this rebuild.
		rebuild := source != sourceCacheError && s.reserve(ctx, userID)
		if rebuild {
			if authors, err = s.authors(ctx, userID); err != nil {
				return nil, err
			}
		}

		messages, err = s.messageRepo.ListByAuthors(ctx, authors, limit)
		if err != nil {
			return nil, err
		}
		if rebuild {
			s.warm(ctx, userID, messages, len(messages) < limit)
		}
	}

	liked, err := s.likes.LikedIDs(ctx, userID, messages)
	if err != nil {
		return nil, err
	}

	feedLog.Debug().
		Int64("user", userID).
		Str("source", source).
		Int("count", len(messages)).
		Dur("duration", time.Since(startTime)).
		Msg("Homepage")

	return &model.Feed{Messages: messages, LikedIDs: liked}, nil
}

const (
	sourceCache        = "cache"
	sourceCacheMiss    = "miss"
	sourceCacheStale   = "stale"
	sourceCacheWarming = "warming"
	sourceCacheError   = "error"
)

// fromCache returns nil when the caller must fall back to SQL.
func (s *FeedService) fromCache(ctx context.Context, userID int64, authors []int64, limit int) ([]model.Message, string) {
	if s.timelines == nil {
		return nil, sourceCacheError
	}

	// Over-fetch so a few filtered entries still leave a full page.
	tl, err := s.timelines.GetTimeline(ctx, userID, 2*limit)
	if err != nil {
		feedLog.Warn().Err(err).Int64("user", userID).Msg("Timeline cache unavailable")
		return nil, sourceCacheError
	}
	if !tl.Found {
		return nil, sourceCacheMiss
	}
	if tl.Warming {
		return nil, sourceCacheWarming
	}

	hydrated, err := s.messageRepo.GetByIDs(ctx, tl.IDs)
	if err != nil {
		feedLog.Warn().Err(err).Int64("user", userID).Msg("Timeline hydration failed")
		return nil, sourceCacheError
	}

	allowed := make(map[int64]struct{}, len(authors))
	for _, id := range authors {
		allowed[id] = struct{}{}
	}

	messages := make([]model.Message, 0, limit)
	for _, m := range hydrated {
		if _, ok := allowed[m.UserID]; !ok {
			continue
		}
		messages = append(messages, m)
		if len(messages) == limit {
			break
		}
	}

	// A short page is only trustworthy when the cache holds the whole history.
	// Otherwise deletions or unfollows emptied part of a window, and older
	// messages the cache never held may belong on the page.
	if len(messages) < limit && !tl.Complete {
		return nil, sourceCacheStale
	}

	return messages, sourceCache
}

func (s *FeedService) authors(ctx context.Context, userID int64) ([]int64, error) {
	followed, err := s.followRepo.GetFollowedIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	authors := make([]int64, 0, len(followed)+1)
	authors = append(authors, userID)
	return append(authors, followed...), nil
}

func (s *FeedService) reserve(ctx context.Context, userID int64) bool {
	if err := s.timelines.Reserve(ctx, userID); err != nil {
		feedLog.Warn().Err(err).Int64("user", userID).Msg("Timeline reserve failed")
		return false
	}
	return true
}

// warm stores a rebuilt timeline. complete means messages is the viewer's whole history.
func (s *FeedService) warm(ctx context.Context, userID int64, messages []model.Message, complete bool) {
	scores := make([]cache.MessageScore, len(messages))
	for i, m := range messages {
		scores[i] = cache.ScoreOf(m.ID, m.Timestamp)
	}

	applied, err := s.timelines.Warm(ctx, userID, scores, complete)
	if err != nil {
		feedLog.Warn().Err(err).Int64("user", userID).Msg("Timeline warm failed")
		return
	}
	if !applied {
		feedLog.Debug().Int64("user", userID).Msg("Timeline invalidated during rebuild, not stored")
	}
}

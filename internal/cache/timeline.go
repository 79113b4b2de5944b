package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"warbler/internal/logger"
)

const (
	// TimelinePrefix is the key prefix for per-user home timelines
	TimelinePrefix = "timeline:user:"

	// TimelineCap is the maximum number of message ids kept per user
	TimelineCap = 500

	// TimelineTTL is counted from the last rebuild. Reads and fan-out do not
	// extend it, so every timeline is rebuilt from the database at least this often.
	TimelineTTL = time.Hour
)

// Marker members share the sorted set with message ids.
// markerWarming (score +inf) means a rebuild is in flight and the ids are not usable yet.
// markerComplete (score 0, below every timestamp) means the set reaches back to the
// user's oldest message. Trimming removes it first, since it has the lowest rank.
const (
	markerWarming  = "warming"
	markerComplete = "complete"
)

var log = logger.Component("TimelineCache")

// MessageScore is a message id with its sort score (timestamp in Unix milliseconds).
type MessageScore struct {
	MessageID int64
	Score     int64
}

// ScoreOf builds the cache score for a message.
func ScoreOf(messageID int64, ts time.Time) MessageScore {
	return MessageScore{MessageID: messageID, Score: ts.UnixMilli()}
}

// Timeline is one read of a cached home timeline.
type Timeline struct {
	// IDs are message ids, newest first.
	IDs []int64
	// Found is false when nothing is cached for the user.
	Found bool
	// Warming is set while a rebuild is in flight; IDs must not be served.
	Warming bool
	// Complete is set when IDs end at the user's oldest message, so a short
	// list is the whole history rather than a truncated window.
	Complete bool
}

// TimelineCache stores, per user, the ids of recent messages from that user and everyone they follow.
//
// A rebuild is Reserve, then a database read, then Warm. Fan-out that happens in
// between lands in the reserved key, and Warm merges instead of replacing, so a
// message created during the read is never lost. Invalidate during the read
// deletes the reservation and Warm becomes a no-op.
type TimelineCache interface {
	// AddMessage inserts into an existing timeline. Missing timelines are left alone so a
	// partial timeline is never mistaken for a complete one.
	AddMessage(ctx context.Context, userID int64, msg MessageScore) error

	RemoveMessage(ctx context.Context, userID, messageID int64) error

	// GetTimeline returns up to limit message ids, newest first.
	GetTimeline(ctx context.Context, userID int64, limit int) (*Timeline, error)

	// Reserve marks the user's timeline as rebuilding, creating it if needed.
	Reserve(ctx context.Context, userID int64) error

	// Warm merges msgs into a reserved timeline and clears the reservation.
	// complete records that msgs hold every message the user can see.
	// It reports false when the reservation was invalidated in the meantime.
	Warm(ctx context.Context, userID int64, msgs []MessageScore, complete bool) (bool, error)

	// Invalidate drops the timeline; the next read rebuilds it from the database.
	Invalidate(ctx context.Context, userID int64) error

	Exists(ctx context.Context, userID int64) (bool, error)
}

// RedisTimelineCache implements TimelineCache using Redis Sorted Sets.
type RedisTimelineCache struct {
	client *redis.Client
}

// NewTimelineCache creates a new TimelineCache backed by Redis.
func NewTimelineCache(client *redis.Client) TimelineCache {
	return &RedisTimelineCache{client: client}
}

func timelineKey(userID int64) string {
	return fmt.Sprintf("%s%d", TimelinePrefix, userID)
}

// addIfExists: ZADD + trim to cap, only when the key is already present.
var addIfExists = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return 0
end
redis.call("ZADD", KEYS[1], ARGV[1], ARGV[2])
redis.call("ZREMRANGEBYRANK", KEYS[1], 0, -tonumber(ARGV[3]) - 1)
return 1
`)

// reserve: add the warming marker. A key created here gets a TTL so an
// abandoned rebuild cannot pin an empty timeline.
var reserve = redis.NewScript(`
local created = redis.call("EXISTS", KEYS[1]) == 0
redis.call("ZADD", KEYS[1], "+inf", ARGV[1])
if created then
	redis.call("EXPIRE", KEYS[1], ARGV[2])
end
return 1
`)

// warmReserved: merge score/member pairs from ARGV[6:] into a reserved key.
// ARGV: warming marker, complete flag, complete marker, cap, ttl, pairs...
var warmReserved = redis.NewScript(`
if not redis.call("ZSCORE", KEYS[1], ARGV[1]) then
	return 0
end
redis.call("ZREM", KEYS[1], ARGV[1])
if ARGV[2] == "1" then
	redis.call("ZADD", KEYS[1], 0, ARGV[3])
end
for i = 6, #ARGV, 2 do
	redis.call("ZADD", KEYS[1], ARGV[i], ARGV[i + 1])
end
redis.call("ZREMRANGEBYRANK", KEYS[1], 0, -tonumber(ARGV[4]) - 1)
redis.call("EXPIRE", KEYS[1], ARGV[5])
return 1
`)

func (c *RedisTimelineCache) AddMessage(ctx context.Context, userID int64, msg MessageScore) error {
	key := timelineKey(userID)

	added, err := addIfExists.Run(ctx, c.client, []string{key},
		msg.Score,
		strconv.FormatInt(msg.MessageID, 10),
		TimelineCap,
	).Int()
	if err != nil {
		log.Error().Err(err).Int64("user", userID).Int64("message", msg.MessageID).Msg("AddMessage failed")
		return fmt.Errorf("add message to timeline: %w", err)
	}

	log.Debug().Int64("user", userID).Int64("message", msg.MessageID).Bool("added", added == 1).Msg("AddMessage")
	return nil
}

func (c *RedisTimelineCache) RemoveMessage(ctx context.Context, userID, messageID int64) error {
	key := timelineKey(userID)

	removed, err := c.client.ZRem(ctx, key, strconv.FormatInt(messageID, 10)).Result()
	if err != nil {
		log.Error().Err(err).Int64("user", userID).Int64("message", messageID).Msg("RemoveMessage failed")
		return fmt.Errorf("remove message from timeline: %w", err)
	}

	log.Debug().Int64("user", userID).Int64("message", messageID).Int64("removed", removed).Msg("RemoveMessage")
	return nil
}

func (c *RedisTimelineCache) GetTimeline(ctx context.Context, userID int64, limit int) (*Timeline, error) {
	key := timelineKey(userID)
	startTime := time.Now()

	// One extra slot for the warming marker, which always ranks first.
	members, err := c.client.ZRevRange(ctx, key, 0, int64(limit)).Result()
	if err != nil {
		log.Error().Err(err).Int64("user", userID).Msg("GetTimeline failed")
		return nil, fmt.Errorf("get timeline: %w", err)
	}

	tl := &Timeline{Found: len(members) > 0, IDs: make([]int64, 0, len(members))}
	for _, m := range members {
		switch m {
		case markerWarming:
			tl.Warming = true
			continue
		case markerComplete:
			tl.Complete = true
			continue
		}
		if len(tl.IDs) == limit {
			// The complete marker was not reached, so the history goes on.
			tl.Complete = false
			break
		}
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse message id %q: %w", m, err)
		}
		tl.IDs = append(tl.IDs, id)
	}

	log.Debug().
		Int64("user", userID).
		Int("returned", len(tl.IDs)).
		Bool("warming", tl.Warming).
		Bool("complete", tl.Complete).
		Dur("duration", time.Since(startTime)).
		Msg("GetTimeline")
	return tl, nil
}

func (c *RedisTimelineCache) Reserve(ctx context.Context, userID int64) error {
	err := reserve.Run(ctx, c.client, []string{timelineKey(userID)},
		markerWarming,
		int(TimelineTTL.Seconds()),
	).Err()
	if err != nil {
		log.Error().Err(err).Int64("user", userID).Msg("Reserve failed")
		return fmt.Errorf("reserve timeline: %w", err)
	}
	return nil
}

func (c *RedisTimelineCache) Warm(ctx context.Context, userID int64, msgs []MessageScore, complete bool) (bool, error) {
	flag := "0"
	if complete {
		flag = "1"
	}

	args := make([]interface{}, 0, 5+2*len(msgs))
	args = append(args, markerWarming, flag, markerComplete, TimelineCap, int(TimelineTTL.Seconds()))
	for _, m := range msgs {
		args = append(args, m.Score, strconv.FormatInt(m.MessageID, 10))
	}

	applied, err := warmReserved.Run(ctx, c.client, []string{timelineKey(userID)}, args...).Int()
	if err != nil {
		log.Error().Err(err).Int64("user", userID).Int("messages", len(msgs)).Msg("Warm failed")
		return false, fmt.Errorf("warm timeline: %w", err)
	}

	log.Debug().Int64("user", userID).Int("messages", len(msgs)).Bool("complete", complete).Bool("applied", applied == 1).Msg("Warm")
	return applied == 1, nil
}

func (c *RedisTimelineCache) Invalidate(ctx context.Context, userID int64) error {
	if err := c.client.Del(ctx, timelineKey(userID)).Err(); err != nil {
		log.Error().Err(err).Int64("user", userID).Msg("Invalidate failed")
		return fmt.Errorf("invalidate timeline: %w", err)
	}
	return nil
}

func (c *RedisTimelineCache) Exists(ctx context.Context, userID int64) (bool, error) {
	n, err := c.client.Exists(ctx, timelineKey(userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("check timeline exists: %w", err)
	}
	return n > 0, nil
}

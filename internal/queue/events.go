package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types for the timeline stream
const (
	EventMessageCreated = "message_created"
	EventMessageDeleted = "message_deleted"
)

// Stream names
const (
	StreamTimeline = "stream:timeline"
)

// Consumer group name for timeline workers
const (
	ConsumerGroupTimeline = "timeline_workers"
)

// TimelineEvent is published after a message is committed or deleted.
type TimelineEvent struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"` // Unix seconds when the event was published

	MessageID int64 `json:"message_id"`
	AuthorID  int64 `json:"author_id"`
	// Score is the message's timeline score (Unix milliseconds of its timestamp).
	Score int64 `json:"score,omitempty"`
}

// NewMessageCreatedEvent asks workers to push the message into the author's followers' timelines.
func NewMessageCreatedEvent(messageID, authorID, score int64) TimelineEvent {
	return TimelineEvent{
		Type:      EventMessageCreated,
		Timestamp: time.Now().Unix(),
		MessageID: messageID,
		AuthorID:  authorID,
		Score:     score,
	}
}

// NewMessageDeletedEvent asks workers to drop the message from followers' timelines.
func NewMessageDeletedEvent(messageID, authorID int64) TimelineEvent {
	return TimelineEvent{
		Type:      EventMessageDeleted,
		Timestamp: time.Now().Unix(),
		MessageID: messageID,
		AuthorID:  authorID,
	}
}

// ToMap converts the event to a map for Redis XADD.
// Redis Streams store field-value pairs, so the event is JSON in a "data" field.
func (e TimelineEvent) ToMap() (map[string]interface{}, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return map[string]interface{}{
		"type": e.Type,
		"data": string(data),
	}, nil
}

// ParseTimelineEvent parses a TimelineEvent from Redis stream message values.
func ParseTimelineEvent(values map[string]interface{}) (TimelineEvent, error) {
	data, ok := values["data"].(string)
	if !ok {
		return TimelineEvent{}, fmt.Errorf("missing or invalid 'data' field")
	}

	var event TimelineEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return TimelineEvent{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return event, nil
}

package model

import (
	"errors"
	"time"
)

const (
	MaxMessageLength = 140

	// HomeFeedLimit caps both the home timeline and the user page.
	HomeFeedLimit = 100
)

// Message is a short post owned by a user.
type Message struct {
	ID        int64     `db:"id" json:"id"`
	Text      string    `db:"text" json:"text"`
	Timestamp time.Time `db:"timestamp" json:"timestamp"`
	UserID    int64     `db:"user_id" json:"user_id"`

	Author *UserSummary `db:"-" json:"author,omitempty"`
}

// MessageWithAuthor is the row shape of queries that join the author.
type MessageWithAuthor struct {
	Message
	AuthorUsername string `db:"author_username"`
	AuthorImageURL string `db:"author_image_url"`
}

// ToMessage folds the joined author columns into Message.Author.
func (m MessageWithAuthor) ToMessage() Message {
	msg := m.Message
	msg.Author = &UserSummary{
		ID:       m.UserID,
		Username: m.AuthorUsername,
		ImageURL: m.AuthorImageURL,
	}
	return msg
}

// Feed is the authenticated homepage.
type Feed struct {
	Messages []Message `json:"messages"`
	// LikedIDs holds the ids among Messages that the viewer has liked.
	LikedIDs []int64 `json:"liked_ids"`
}

// CreateMessageRequest is the new-message form.
type CreateMessageRequest struct {
	Text string `json:"text"`
}

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrNotMessageOwner = errors.New("you can only delete your own messages")
)

package model

import (
	"errors"
	"time"
)

// Like records that a user liked a message. (user_id, message_id) is unique.
type Like struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	MessageID int64     `db:"message_id" json:"message_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ToggleLikeResponse is returned by the JSON like endpoint.
type ToggleLikeResponse struct {
	MessageID int64 `json:"message_id"`
	Liked     bool  `json:"liked"`
}

var (
	ErrNotLiked             = errors.New("message not liked")
	ErrCannotLikeOwnMessage = errors.New("cannot like your own message")
)

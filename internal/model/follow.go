package model

import (
	"errors"
	"time"
)

type Follow struct {
	FollowerID int64     `db:"follower_id" json:"follower_id"`
	FollowedID int64     `db:"followed_id" json:"followed_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

type UserSummary struct {
	ID          int64   `db:"id" json:"id"`
	Username    string  `db:"username" json:"username"`
	ImageURL    string  `db:"image_url" json:"image_url"`
	Bio         *string `db:"bio" json:"bio,omitempty"`
	IsFollowing bool    `db:"-" json:"is_following"`
}

// FollowListResponse is the body of the following and followers pages.
type FollowListResponse struct {
	User  UserSummary   `json:"user"`
	Users []UserSummary `json:"users"`
}

var (
	ErrAlreadyFollowing = errors.New("already following this user")
	ErrNotFollowing     = errors.New("not following this user")
	ErrCannotFollowSelf = errors.New("cannot follow yourself")
)

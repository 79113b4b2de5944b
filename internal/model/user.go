package model

import (
	"errors"
	"time"
)

// User represents a user in the system
type User struct {
	ID             int64     `db:"id" json:"id"`
	Username       string    `db:"username" json:"username"`
	Email          string    `db:"email" json:"email"`
	PasswordHashed string    `db:"password_hashed" json:"-"` // "-" hides from JSON output
	Bio            *string   `db:"bio" json:"bio"`
	Location       *string   `db:"location" json:"location"`
	ImageURL       string    `db:"image_url" json:"image_url"`
	ImageKey       *string   `db:"image_key" json:"-"`
	HeaderImageURL string    `db:"header_image_url" json:"header_image_url"`
	HeaderImageKey *string   `db:"header_image_key" json:"-"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Summary trims a user down to what lists and message bylines need.
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:       u.ID,
		Username: u.Username,
		ImageURL: u.ImageURL,
		Bio:      u.Bio,
	}
}

// SignupRequest carries the signup form. ImageURL may be empty.
type SignupRequest struct {
	Username string  `json:"username"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	ImageURL string  `json:"image_url"`
	ImageKey *string `json:"-"`
}

// LoginRequest represents the data needed to log in
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ProfileUpdate is the profile edit form. Empty strings keep the stored value.
type ProfileUpdate struct {
	Username       string
	Email          string
	ImageURL       string
	HeaderImageURL string
	Bio            string
	Location       string
	Password       string

	ImageKey       *string
	HeaderImageKey *string
}

// UserStats are the relation counts shown on the user page.
type UserStats struct {
	MessageCount   int `db:"message_count" json:"message_count"`
	FollowingCount int `db:"following_count" json:"following_count"`
	FollowerCount  int `db:"follower_count" json:"follower_count"`
	LikeCount      int `db:"like_count" json:"like_count"`
}

// UserProfile is the user page: the user, their newest messages and relation counts.
type UserProfile struct {
	User        *User     `json:"user"`
	Messages    []Message `json:"messages"`
	Stats       UserStats `json:"stats"`
	IsFollowing bool      `json:"is_following"`
}

// ProfileDefaults holds the image URLs given to users who do not pick one.
type ProfileDefaults struct {
	ImageURL       string
	HeaderImageURL string
}

const (
	DefaultImageURL       = "/static/images/default-pic.png"
	DefaultHeaderImageURL = "/static/images/warbler-hero.jpg"

	MinPasswordLength = 6
)

var (
	// ErrUserNotFound is returned when a user cannot be found
	ErrUserNotFound = errors.New("user not found")

	// ErrUserExists is returned when a username or email is already taken
	ErrUserExists = errors.New("username or email already taken")

	// ErrInvalidCredentials is returned when login credentials are incorrect
	ErrInvalidCredentials = errors.New("invalid credentials")
)

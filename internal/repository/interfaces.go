package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"warbler/internal/model"
)

// Transactor runs fn inside a single database transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
}

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	// ExistsByUsernameOrEmail ignores the row with excludeID (0 excludes nothing).
	ExistsByUsernameOrEmail(ctx context.Context, username, email string, excludeID int64) (bool, error)
	Update(ctx context.Context, user *model.User) error
	Delete(ctx context.Context, id int64) error
	Search(ctx context.Context, query string, limit int) ([]model.UserSummary, error)
	GetStats(ctx context.Context, id int64) (*model.UserStats, error)
}

type MessageRepository interface {
	Create(ctx context.Context, msg *model.Message) error
	GetByID(ctx context.Context, id int64) (*model.Message, error)
	GetByIDs(ctx context.Context, ids []int64) ([]model.Message, error)
	Delete(ctx context.Context, id int64) error
	ListByUser(ctx context.Context, userID int64, limit int) ([]model.Message, error)
	// ListByAuthors returns the newest messages written by any of authorIDs.
	ListByAuthors(ctx context.Context, authorIDs []int64, limit int) ([]model.Message, error)
}

type FollowRepository interface {
	Create(ctx context.Context, followerID, followedID int64) (bool, error)
	Delete(ctx context.Context, followerID, followedID int64) error
	Exists(ctx context.Context, followerID, followedID int64) (bool, error)
	GetFollowers(ctx context.Context, userID int64) ([]model.UserSummary, error)
	GetFollowing(ctx context.Context, userID int64) ([]model.UserSummary, error)
	GetFollowerIDs(ctx context.Context, userID int64) ([]int64, error)
	GetFollowedIDs(ctx context.Context, userID int64) ([]int64, error)
}

type LikeRepository interface {
	// LockMessage takes a row lock on the message for the rest of tx and returns its author.
	LockMessage(ctx context.Context, tx *sqlx.Tx, messageID int64) (authorID int64, err error)
	Insert(ctx context.Context, tx *sqlx.Tx, userID, messageID int64) (bool, error)
	Delete(ctx context.Context, tx *sqlx.Tx, userID, messageID int64) (bool, error)
	// LikedIDs returns the subset of messageIDs the user has liked.
	LikedIDs(ctx context.Context, userID int64, messageIDs []int64) ([]int64, error)
	ListLikedMessages(ctx context.Context, userID int64, limit int) ([]model.Message, error)
}

package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"warbler/internal/model"
)

type followRepository struct {
	db *sqlx.DB
}

func NewFollowRepository(db *sqlx.DB) FollowRepository {
	return &followRepository{db: db}
}

// Create inserts the edge and reports whether it was new.
// The (follower_id, followed_id) primary key turns a repeated follow into a no-op.
func (r *followRepository) Create(ctx context.Context, followerID, followedID int64) (bool, error) {
	query := `
		INSERT INTO follows (follower_id, followed_id)
		VALUES ($1, $2)
		ON CONFLICT (follower_id, followed_id) DO NOTHING
	`
	result, err := r.db.ExecContext(ctx, query, followerID, followedID)
	if err != nil {
		if isPQError(err, pqForeignKeyViolation) {
			return false, model.ErrUserNotFound
		}
		return false, fmt.Errorf("failed to create follow: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

func (r *followRepository) Delete(ctx context.Context, followerID, followedID int64) error {
	query := `DELETE FROM follows WHERE follower_id = $1 AND followed_id = $2`
	result, err := r.db.ExecContext(ctx, query, followerID, followedID)
	if err != nil {
		return fmt.Errorf("failed to delete follow: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return model.ErrNotFollowing
	}

	return nil
}

func (r *followRepository) Exists(ctx context.Context, followerID, followedID int64) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM follows WHERE follower_id = $1 AND followed_id = $2)`
	var exists bool
	err := r.db.GetContext(ctx, &exists, query, followerID, followedID)
	if err != nil {
		return false, fmt.Errorf("failed to check follow existence: %w", err)
	}
	return exists, nil
}

// GetFollowers lists users following userID, most recent follow first.
func (r *followRepository) GetFollowers(ctx context.Context, userID int64) ([]model.UserSummary, error) {
	query := `
		SELECT u.id, u.username, u.image_url, u.bio
		FROM follows f
		JOIN users u ON u.id = f.follower_id
		WHERE f.followed_id = $1
		ORDER BY f.created_at DESC
	`

	users := []model.UserSummary{}
	if err := r.db.SelectContext(ctx, &users, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get followers: %w", err)
	}
	return users, nil
}

// GetFollowing lists users that userID follows, most recent follow first.
func (r *followRepository) GetFollowing(ctx context.Context, userID int64) ([]model.UserSummary, error) {
	query := `
		SELECT u.id, u.username, u.image_url, u.bio
		FROM follows f
		JOIN users u ON u.id = f.followed_id
		WHERE f.follower_id = $1
		ORDER BY f.created_at DESC
	`

	users := []model.UserSummary{}
	if err := r.db.SelectContext(ctx, &users, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get following: %w", err)
	}
	return users, nil
}

// GetFollowerIDs returns the ids of every follower of userID. Used for timeline fan-out.
func (r *followRepository) GetFollowerIDs(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	err := r.db.SelectContext(ctx, &ids, `SELECT follower_id FROM follows WHERE followed_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get follower ids: %w", err)
	}
	return ids, nil
}

// GetFollowedIDs returns the ids of every user that userID follows.
func (r *followRepository) GetFollowedIDs(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	err := r.db.SelectContext(ctx, &ids, `SELECT followed_id FROM follows WHERE follower_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get followed ids: %w", err)
	}
	return ids, nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"warbler/internal/model"
)

type likeRepository struct {
	db *sqlx.DB
}

func NewLikeRepository(db *sqlx.DB) LikeRepository {
	return &likeRepository{db: db}
}

// LockMessage serializes concurrent like toggles on the same message until tx ends.
func (r *likeRepository) LockMessage(ctx context.Context, tx *sqlx.Tx, messageID int64) (int64, error) {
	var authorID int64
	err := tx.GetContext(ctx, &authorID, `SELECT user_id FROM messages WHERE id = $1 FOR UPDATE`, messageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, model.ErrMessageNotFound
		}
		return 0, fmt.Errorf("failed to lock message: %w", err)
	}
	return authorID, nil
}

func (r *likeRepository) Insert(ctx context.Context, tx *sqlx.Tx, userID, messageID int64) (bool, error) {
	query := `
		INSERT INTO likes (user_id, message_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, message_id) DO NOTHING
	`
	result, err := tx.ExecContext(ctx, query, userID, messageID)
	if err != nil {
		if isPQError(err, pqForeignKeyViolation) {
			return false, model.ErrMessageNotFound
		}
		return false, fmt.Errorf("failed to like message: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *likeRepository) Delete(ctx context.Context, tx *sqlx.Tx, userID, messageID int64) (bool, error) {
	result, err := tx.ExecContext(ctx, `DELETE FROM likes WHERE user_id = $1 AND message_id = $2`, userID, messageID)
	if err != nil {
		return false, fmt.Errorf("failed to unlike message: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *likeRepository) LikedIDs(ctx context.Context, userID int64, messageIDs []int64) ([]int64, error) {
	liked := []int64{}
	if len(messageIDs) == 0 {
		return liked, nil
	}

	query := `SELECT message_id FROM likes WHERE user_id = $1 AND message_id = ANY($2)`
	if err := r.db.SelectContext(ctx, &liked, query, userID, pq.Array(messageIDs)); err != nil {
		return nil, fmt.Errorf("failed to check likes: %w", err)
	}
	return liked, nil
}

// ListLikedMessages returns messages userID liked, most recent like first.
func (r *likeRepository) ListLikedMessages(ctx context.Context, userID int64, limit int) ([]model.Message, error) {
	query := `
		SELECT m.id, m.text, m.timestamp, m.user_id,
		       u.username AS author_username, u.image_url AS author_image_url
		FROM likes l
		JOIN messages m ON m.id = l.message_id
		JOIN users u ON u.id = m.user_id
		WHERE l.user_id = $1
		ORDER BY l.created_at DESC, l.id DESC
		LIMIT $2
	`

	var rows []model.MessageWithAuthor
	if err := r.db.SelectContext(ctx, &rows, query, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to list liked messages: %w", err)
	}

	messages := make([]model.Message, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, row.ToMessage())
	}
	return messages, nil
}

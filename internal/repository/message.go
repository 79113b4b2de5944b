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

type messageRepository struct {
	db *sqlx.DB
}

func NewMessageRepository(db *sqlx.DB) MessageRepository {
	return &messageRepository{db: db}
}

// messageSelect joins the author so every listing can show a byline.
const messageSelect = `
	SELECT m.id, m.text, m.timestamp, m.user_id,
	       u.username AS author_username, u.image_url AS author_image_url
	FROM messages m
	JOIN users u ON u.id = m.user_id
`

func (r *messageRepository) Create(ctx context.Context, msg *model.Message) error {
	query := `
		INSERT INTO messages (text, user_id, timestamp)
		VALUES ($1, $2, NOW())
		RETURNING id, timestamp
	`

	err := r.db.QueryRowxContext(ctx, query, msg.Text, msg.UserID).Scan(&msg.ID, &msg.Timestamp)
	if err != nil {
		if isPQError(err, pqForeignKeyViolation) {
			return model.ErrUserNotFound
		}
		return fmt.Errorf("failed to create message: %w", err)
	}

	return nil
}

func (r *messageRepository) GetByID(ctx context.Context, id int64) (*model.Message, error) {
	var row model.MessageWithAuthor
	err := r.db.GetContext(ctx, &row, messageSelect+` WHERE m.id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	msg := row.ToMessage()
	return &msg, nil
}

// GetByIDs returns the messages that still exist, newest first. Missing ids are skipped.
func (r *messageRepository) GetByIDs(ctx context.Context, ids []int64) ([]model.Message, error) {
	if len(ids) == 0 {
		return []model.Message{}, nil
	}

	query := messageSelect + `
		WHERE m.id = ANY($1)
		ORDER BY m.timestamp DESC, m.id DESC
	`
	return r.selectMessages(ctx, query, pq.Array(ids))
}

func (r *messageRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return model.ErrMessageNotFound
	}

	return nil
}

func (r *messageRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]model.Message, error) {
	query := messageSelect + `
		WHERE m.user_id = $1
		ORDER BY m.timestamp DESC, m.id DESC
		LIMIT $2
	`
	return r.selectMessages(ctx, query, userID, limit)
}

func (r *messageRepository) ListByAuthors(ctx context.Context, authorIDs []int64, limit int) ([]model.Message, error) {
	if len(authorIDs) == 0 {
		return []model.Message{}, nil
	}

	query := messageSelect + `
		WHERE m.user_id = ANY($1)
		ORDER BY m.timestamp DESC, m.id DESC
		LIMIT $2
	`
	return r.selectMessages(ctx, query, pq.Array(authorIDs), limit)
}

func (r *messageRepository) selectMessages(ctx context.Context, query string, args ...interface{}) ([]model.Message, error) {
	var rows []model.MessageWithAuthor
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	messages := make([]model.Message, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, row.ToMessage())
	}
	return messages, nil
}

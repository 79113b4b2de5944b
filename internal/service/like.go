package service

import (
	"context"

	"github.com/jmoiron/sqlx"

	"warbler/internal/logger"
	"warbler/internal/model"
	"warbler/internal/repository"
)

// LikedListLimit caps the likes page.
const LikedListLimit = 100

var likeLog = logger.Component("LikeService")

type LikeService struct {
	likeRepo repository.LikeRepository
	tx       repository.Transactor
}

func NewLikeService(likeRepo repository.LikeRepository, tx repository.Transactor) *LikeService {
	return &LikeService{likeRepo: likeRepo, tx: tx}
}

// Toggle flips userID's like on messageID and reports the new state.
//
// The message row is locked for the transaction, so two toggles by the same
// user serialize: the second sees the first's result instead of racing it.
func (s *LikeService) Toggle(ctx context.Context, userID, messageID int64) (bool, error) {
	var liked bool

	err := s.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		authorID, err := s.likeRepo.LockMessage(ctx, tx, messageID)
		if err != nil {
			return err
		}
		if authorID == userID {
			return model.ErrCannotLikeOwnMessage
		}

		removed, err := s.likeRepo.Delete(ctx, tx, userID, messageID)
		if err != nil {
			return err
		}
		if removed {
			liked = false
			return nil
		}

		if _, err := s.likeRepo.Insert(ctx, tx, userID, messageID); err != nil {
			return err
		}
		liked = true
		return nil
	})
	if err != nil {
		return false, err
	}

	likeLog.Debug().Int64("user", userID).Int64("message", messageID).Bool("liked", liked).Msg("Toggle")
	return liked, nil
}

// Unlike removes userID's like; ErrNotLiked when there was none.
func (s *LikeService) Unlike(ctx context.Context, userID, messageID int64) error {
	return s.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.likeRepo.LockMessage(ctx, tx, messageID); err != nil {
			return err
		}

		removed, err := s.likeRepo.Delete(ctx, tx, userID, messageID)
		if err != nil {
			return err
		}
		if !removed {
			return model.ErrNotLiked
		}
		return nil
	})
}

// LikedMessages lists what userID liked, newest like first.
func (s *LikeService) LikedMessages(ctx context.Context, userID int64) ([]model.Message, error) {
	return s.likeRepo.ListLikedMessages(ctx, userID, LikedListLimit)
}

// LikedIDs returns the subset of messages that userID liked.
func (s *LikeService) LikedIDs(ctx context.Context, userID int64, messages []model.Message) ([]int64, error) {
	if userID == 0 || len(messages) == 0 {
		return []int64{}, nil
	}

	ids := make([]int64, len(messages))
	for i, m := range messages {
		ids[i] = m.ID
	}
	return s.likeRepo.LikedIDs(ctx, userID, ids)
}

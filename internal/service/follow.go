package service

import (
	"context"

	"warbler/internal/cache"
	"warbler/internal/logger"
	"warbler/internal/model"
	"warbler/internal/repository"
)

var followLog = logger.Component("FollowService")

type FollowService struct {
	followRepo repository.FollowRepository
	userRepo   repository.UserRepository
	timelines  cache.TimelineCache
}

// NewFollowService accepts a nil timelines cache.
func NewFollowService(
	followRepo repository.FollowRepository,
	userRepo repository.UserRepository,
	timelines cache.TimelineCache,
) *FollowService {
	return &FollowService{
		followRepo: followRepo,
		userRepo:   userRepo,
		timelines:  timelines,
	}
}

func (s *FollowService) Follow(ctx context.Context, followerID, followedID int64) error {
	if followerID == followedID {
		return model.ErrCannotFollowSelf
	}

	if _, err := s.userRepo.GetByID(ctx, followedID); err != nil {
		return err
	}

	// The (follower_id, followed_id) primary key makes a concurrent double follow a no-op.
	inserted, err := s.followRepo.Create(ctx, followerID, followedID)
	if err != nil {
		return err
	}
	if !inserted {
		return model.ErrAlreadyFollowing
	}

	s.invalidateTimeline(ctx, followerID)
	followLog.Info().Int64("follower", followerID).Int64("followed", followedID).Msg("Follow")
	return nil
}

func (s *FollowService) Unfollow(ctx context.Context, followerID, followedID int64) error {
	if _, err := s.userRepo.GetByID(ctx, followedID); err != nil {
		return err
	}

	if err := s.followRepo.Delete(ctx, followerID, followedID); err != nil {
		return err
	}

	s.invalidateTimeline(ctx, followerID)
	followLog.Info().Int64("follower", followerID).Int64("followed", followedID).Msg("Unfollow")
	return nil
}

// IsFollowing reports whether followerID follows followedID.
func (s *FollowService) IsFollowing(ctx context.Context, followerID, followedID int64) (bool, error) {
	return s.followRepo.Exists(ctx, followerID, followedID)
}

// Following lists the users userID follows. viewerID decides IsFollowing on each entry.
func (s *FollowService) Following(ctx context.Context, userID, viewerID int64) (*model.FollowListResponse, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	users, err := s.followRepo.GetFollowing(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &model.FollowListResponse{User: user.Summary(), Users: s.markFollowed(ctx, viewerID, users)}, nil
}

// Followers lists the users following userID. viewerID decides IsFollowing on each entry.
func (s *FollowService) Followers(ctx context.Context, userID, viewerID int64) (*model.FollowListResponse, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	users, err := s.followRepo.GetFollowers(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &model.FollowListResponse{User: user.Summary(), Users: s.markFollowed(ctx, viewerID, users)}, nil
}

// markFollowed sets IsFollowing from one query for the viewer's whole follow set.
// On failure the list is returned unmarked.
func (s *FollowService) markFollowed(ctx context.Context, viewerID int64, users []model.UserSummary) []model.UserSummary {
	if viewerID == 0 || len(users) == 0 {
		return users
	}

	followed, err := s.followRepo.GetFollowedIDs(ctx, viewerID)
	if err != nil {
		return users
	}

	set := make(map[int64]struct{}, len(followed))
	for _, id := range followed {
		set[id] = struct{}{}
	}
	for i := range users {
		_, users[i].IsFollowing = set[users[i].ID]
	}
	return users
}

// invalidateTimeline drops the follower's cached home timeline so the next
// read rebuilds it from the new author set.
func (s *FollowService) invalidateTimeline(ctx context.Context, userID int64) {
	if s.timelines == nil {
		return
	}
	if err := s.timelines.Invalidate(ctx, userID); err != nil {
		followLog.Warn().Err(err).Int64("user", userID).Msg("Timeline invalidation failed")
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"warbler/internal/logger"
	"warbler/internal/model"
	"warbler/internal/repository"
)

// UserListLimit caps the /users listing.
const UserListLimit = 500

var userLog = logger.Component("UserService")

// ImageRemover deletes uploaded profile images by storage key.
type ImageRemover interface {
	Delete(ctx context.Context, key *string) error
}

// UserService handles business logic for user operations
type UserService struct {
	repo        repository.UserRepository
	followRepo  repository.FollowRepository
	messageRepo repository.MessageRepository
	images      ImageRemover
	defaults    model.ProfileDefaults
}

func NewUserService(
	repo repository.UserRepository,
	followRepo repository.FollowRepository,
	messageRepo repository.MessageRepository,
	defaults model.ProfileDefaults,
) *UserService {
	if defaults.ImageURL == "" {
		defaults.ImageURL = model.DefaultImageURL
	}
	if defaults.HeaderImageURL == "" {
		defaults.HeaderImageURL = model.DefaultHeaderImageURL
	}
	return &UserService{
		repo:        repo,
		followRepo:  followRepo,
		messageRepo: messageRepo,
		defaults:    defaults,
	}
}

// SetImageRemover enables cleanup of replaced or orphaned uploads.
func (s *UserService) SetImageRemover(images ImageRemover) {
	s.images = images
}

// Signup creates a new account. The caller logs the user in afterwards.
func (s *UserService) Signup(ctx context.Context, req *model.SignupRequest) (*model.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)

	v := &model.ValidationError{}
	if req.Username == "" {
		v.Add("username", "Username is required")
	}
	if !validEmail(req.Email) {
		v.Add("email", "A valid email is required")
	}
	if len(req.Password) < model.MinPasswordLength {
		v.Add("password", fmt.Sprintf("Password must be at least %d characters", model.MinPasswordLength))
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsByUsernameOrEmail(ctx, req.Username, req.Email, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if exists {
		return nil, model.ErrUserExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Username:       req.Username,
		Email:          req.Email,
		PasswordHashed: string(hashedPassword),
		ImageURL:       req.ImageURL,
		ImageKey:       req.ImageKey,
		HeaderImageURL: s.defaults.HeaderImageURL,
	}
	if user.ImageURL == "" {
		user.ImageURL = s.defaults.ImageURL
	}

	// A concurrent signup can still win the race; Create maps the unique violation to ErrUserExists.
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, model.ErrUserExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	userLog.Info().Int64("user", user.ID).Str("username", user.Username).Msg("Signup")
	return user, nil
}

// Authenticate checks a username/password pair. Unknown usernames and wrong
// passwords both yield ErrInvalidCredentials.
func (s *UserService) Authenticate(ctx context.Context, req *model.LoginRequest) (*model.User, error) {
	user, err := s.repo.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return nil, model.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHashed), []byte(req.Password)); err != nil {
		return nil, model.ErrInvalidCredentials
	}

	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return s.repo.GetByID(ctx, id)
}

// Search lists every user, or those whose username contains query.
func (s *UserService) Search(ctx context.Context, query string) ([]model.UserSummary, error) {
	return s.repo.Search(ctx, strings.TrimSpace(query), UserListLimit)
}

// Profile assembles the user page. viewerID 0 means anonymous.
func (s *UserService) Profile(ctx context.Context, userID, viewerID int64) (*model.UserProfile, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	messages, err := s.messageRepo.ListByUser(ctx, userID, model.HomeFeedLimit)
	if err != nil {
		return nil, err
	}

	stats, err := s.repo.GetStats(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile := &model.UserProfile{
		User:     user,
		Messages: messages,
		Stats:    *stats,
	}

	if viewerID != 0 && viewerID != userID {
		// Follow status is decoration; a failed check shows "not following".
		if following, err := s.followRepo.Exists(ctx, viewerID, userID); err == nil {
			profile.IsFollowing = following
		}
	}

	return profile, nil
}

// UpdateProfile re-checks the password, then applies every non-empty field.
func (s *UserService) UpdateProfile(ctx context.Context, userID int64, upd *model.ProfileUpdate) (*model.User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHashed), []byte(upd.Password)); err != nil {
		return nil, model.ErrInvalidCredentials
	}

	oldImageKey, oldHeaderKey := user.ImageKey, user.HeaderImageKey
	applyProfileUpdate(user, upd)

	if !validEmail(user.Email) {
		v := &model.ValidationError{}
		v.Add("email", "A valid email is required")
		return nil, v
	}

	exists, err := s.repo.ExistsByUsernameOrEmail(ctx, user.Username, user.Email, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if exists {
		return nil, model.ErrUserExists
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}

	if upd.ImageURL != "" {
		s.removeImage(ctx, oldImageKey)
	}
	if upd.HeaderImageURL != "" {
		s.removeImage(ctx, oldHeaderKey)
	}

	userLog.Info().Int64("user", user.ID).Msg("Profile updated")
	return user, nil
}

// Delete removes the account. Messages, likes and follow edges cascade in the
// database; uploaded images are removed afterwards on a best-effort basis.
func (s *UserService) Delete(ctx context.Context, userID int64) error {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, userID); err != nil {
		return err
	}

	s.removeImage(ctx, user.ImageKey)
	s.removeImage(ctx, user.HeaderImageKey)

	userLog.Info().Int64("user", userID).Msg("Account deleted")
	return nil
}

func (s *UserService) removeImage(ctx context.Context, key *string) {
	if s.images == nil || key == nil {
		return
	}
	if err := s.images.Delete(ctx, key); err != nil {
		userLog.Warn().Err(err).Str("key", *key).Msg("Failed to delete image")
	}
}

func applyProfileUpdate(user *model.User, upd *model.ProfileUpdate) {
	if v := strings.TrimSpace(upd.Username); v != "" {
		user.Username = v
	}
	if v := strings.TrimSpace(upd.Email); v != "" {
		user.Email = v
	}
	if upd.ImageURL != "" {
		user.ImageURL = upd.ImageURL
		user.ImageKey = upd.ImageKey
	}
	if upd.HeaderImageURL != "" {
		user.HeaderImageURL = upd.HeaderImageURL
		user.HeaderImageKey = upd.HeaderImageKey
	}
	if v := strings.TrimSpace(upd.Bio); v != "" {
		user.Bio = &v
	}
	if v := strings.TrimSpace(upd.Location); v != "" {
		user.Location = &v
	}
}

// validEmail accepts a bare address only, not "Name <addr>".
func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

package http

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"warbler/internal/model"
	"warbler/internal/session"
)

// =============================================================================
// IN-MEMORY SERVICES
// =============================================================================

type memorySessions struct {
	mu     sync.Mutex
	tokens map[string]int64
	next   int
}

func (s *memorySessions) Create(ctx context.Context, userID int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	token := "session-" + strconv.Itoa(s.next)
	s.tokens[token] = userID
	return token, nil
}

func (s *memorySessions) UserID(ctx context.Context, token string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.tokens[token]
	if !ok {
		return 0, session.ErrSessionNotFound
	}
	return id, nil
}

func (s *memorySessions) Delete(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
	return nil
}

type fakeAccounts struct {
	mu        sync.Mutex
	users     map[int64]*model.User
	passwords map[int64]string
	nextID    int64
	deleted   []int64
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{users: make(map[int64]*model.User), passwords: make(map[int64]string)}
}

func (a *fakeAccounts) add(username, password string) *model.User {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextID++
	u := &model.User{ID: a.nextID, Username: username, Email: username + "@test.com", CreatedAt: time.Now()}
	a.users[u.ID] = u
	a.passwords[u.ID] = password
	return u
}

func (a *fakeAccounts) Signup(ctx context.Context, req *model.SignupRequest) (*model.User, error) {
	v := &model.ValidationError{}
	if strings.TrimSpace(req.Username) == "" {
		v.Add("username", "Username is required")
	}
	if len(req.Password) < model.MinPasswordLength {
		v.Add("password", "Password must be at least 6 characters")
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	for _, u := range a.users {
		if u.Username == req.Username || u.Email == req.Email {
			a.mu.Unlock()
			return nil, model.ErrUserExists
		}
	}
	a.mu.Unlock()

	u := a.add(req.Username, req.Password)
	u.Email = req.Email
	return u, nil
}

func (a *fakeAccounts) Authenticate(ctx context.Context, req *model.LoginRequest) (*model.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for id, u := range a.users {
		if u.Username == req.Username && a.passwords[id] == req.Password {
			return u, nil
		}
	}
	return nil, model.ErrInvalidCredentials
}

func (a *fakeAccounts) GetByID(ctx context.Context, id int64) (*model.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	u, ok := a.users[id]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return u, nil
}

func (a *fakeAccounts) Search(ctx context.Context, query string) ([]model.UserSummary, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	users := []model.UserSummary{}
	for _, u := range a.users {
		if strings.Contains(u.Username, query) {
			users = append(users, u.Summary())
		}
	}
	return users, nil
}

func (a *fakeAccounts) Profile(ctx context.Context, userID, viewerID int64) (*model.UserProfile, error) {
	u, err := a.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &model.UserProfile{User: u, Messages: []model.Message{}}, nil
}

func (a *fakeAccounts) UpdateProfile(ctx context.Context, userID int64, upd *model.ProfileUpdate) (*model.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	u, ok := a.users[userID]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	if a.passwords[userID] != upd.Password {
		return nil, model.ErrInvalidCredentials
	}
	if upd.Username != "" {
		u.Username = upd.Username
	}
	return u, nil
}

func (a *fakeAccounts) Delete(ctx context.Context, userID int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.users, userID)
	a.deleted = append(a.deleted, userID)
	return nil
}

type edge struct{ from, to int64 }

type fakeFollows struct {
	mu    sync.Mutex
	edges map[edge]bool
}

func (f *fakeFollows) Follow(ctx context.Context, followerID, followedID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if followerID == followedID {
		return model.ErrCannotFollowSelf
	}
	if f.edges[edge{followerID, followedID}] {
		return model.ErrAlreadyFollowing
	}
	f.edges[edge{followerID, followedID}] = true
	return nil
}

func (f *fakeFollows) Unfollow(ctx context.Context, followerID, followedID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.edges[edge{followerID, followedID}] {
		return model.ErrNotFollowing
	}
	delete(f.edges, edge{followerID, followedID})
	return nil
}

func (f *fakeFollows) Following(ctx context.Context, userID, viewerID int64) (*model.FollowListResponse, error) {
	return &model.FollowListResponse{User: model.UserSummary{ID: userID}, Users: []model.UserSummary{}}, nil
}

func (f *fakeFollows) Followers(ctx context.Context, userID, viewerID int64) (*model.FollowListResponse, error) {
	return &model.FollowListResponse{User: model.UserSummary{ID: userID}, Users: []model.UserSummary{}}, nil
}

type fakeMessages struct {
	mu       sync.Mutex
	messages map[int64]*model.Message
	nextID   int64
}

func (m *fakeMessages) Create(ctx context.Context, userID int64, req *model.CreateMessageRequest) (*model.Message, error) {
	if strings.TrimSpace(req.Text) == "" {
		v := &model.ValidationError{}
		v.Add("text", "Message text is required")
		return nil, v
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	msg := &model.Message{ID: m.nextID, UserID: userID, Text: req.Text, Timestamp: time.Now()}
	m.messages[msg.ID] = msg
	return msg, nil
}

func (m *fakeMessages) Get(ctx context.Context, messageID int64) (*model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[messageID]
	if !ok {
		return nil, model.ErrMessageNotFound
	}
	return msg, nil
}

func (m *fakeMessages) Delete(ctx context.Context, userID, messageID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[messageID]
	if !ok {
		return model.ErrMessageNotFound
	}
	if msg.UserID != userID {
		return model.ErrNotMessageOwner
	}
	delete(m.messages, messageID)
	return nil
}

func (m *fakeMessages) all() []model.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Message{}
	for _, msg := range m.messages {
		out = append(out, *msg)
	}
	return out
}

type fakeLikes struct {
	mu      sync.Mutex
	toggles []edge // user -> message
}

func (l *fakeLikes) Toggle(ctx context.Context, userID, messageID int64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.toggles = append(l.toggles, edge{userID, messageID})
	return true, nil
}

func (l *fakeLikes) Unlike(ctx context.Context, userID, messageID int64) error {
	return model.ErrNotLiked
}

func (l *fakeLikes) LikedMessages(ctx context.Context, userID int64) ([]model.Message, error) {
	return []model.Message{}, nil
}

func (l *fakeLikes) LikedIDs(ctx context.Context, userID int64, messages []model.Message) ([]int64, error) {
	return []int64{}, nil
}

// fakeFeeds shows every message to everyone.
type fakeFeeds struct {
	messages *fakeMessages
}

func (f *fakeFeeds) Homepage(ctx context.Context, userID int64) (*model.Feed, error) {
	return &model.Feed{Messages: f.messages.all(), LikedIDs: []int64{}}, nil
}

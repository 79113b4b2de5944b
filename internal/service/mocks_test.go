package service

import (
	"context"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"

	"warbler/internal/cache"
	"warbler/internal/model"
	"warbler/internal/queue"
)

// =============================================================================
// MOCK REPOSITORIES
// =============================================================================
//
// Each mock implements a repository interface with optional function fields.
// A nil field falls back to a harmless default so tests only stub what they use.

type mockUserRepository struct {
	createFn        func(ctx context.Context, user *model.User) error
	getByIDFn       func(ctx context.Context, id int64) (*model.User, error)
	getByUsernameFn func(ctx context.Context, username string) (*model.User, error)
	existsFn        func(ctx context.Context, username, email string, excludeID int64) (bool, error)
	updateFn        func(ctx context.Context, user *model.User) error
	deleteFn        func(ctx context.Context, id int64) error
	searchFn        func(ctx context.Context, query string, limit int) ([]model.UserSummary, error)
	getStatsFn      func(ctx context.Context, id int64) (*model.UserStats, error)

	createCalls []*model.User
	updateCalls []*model.User
	deleteCalls []int64
}

func (m *mockUserRepository) Create(ctx context.Context, user *model.User) error {
	m.createCalls = append(m.createCalls, user)
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, model.ErrUserNotFound
}

func (m *mockUserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	if m.getByUsernameFn != nil {
		return m.getByUsernameFn(ctx, username)
	}
	return nil, model.ErrUserNotFound
}

func (m *mockUserRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string, excludeID int64) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, username, email, excludeID)
	}
	return false, nil
}

func (m *mockUserRepository) Update(ctx context.Context, user *model.User) error {
	m.updateCalls = append(m.updateCalls, user)
	if m.updateFn != nil {
		return m.updateFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepository) Delete(ctx context.Context, id int64) error {
	m.deleteCalls = append(m.deleteCalls, id)
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockUserRepository) Search(ctx context.Context, query string, limit int) ([]model.UserSummary, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, query, limit)
	}
	return []model.UserSummary{}, nil
}

func (m *mockUserRepository) GetStats(ctx context.Context, id int64) (*model.UserStats, error) {
	if m.getStatsFn != nil {
		return m.getStatsFn(ctx, id)
	}
	return &model.UserStats{}, nil
}

type mockMessageRepository struct {
	createFn        func(ctx context.Context, msg *model.Message) error
	getByIDFn       func(ctx context.Context, id int64) (*model.Message, error)
	getByIDsFn      func(ctx context.Context, ids []int64) ([]model.Message, error)
	deleteFn        func(ctx context.Context, id int64) error
	listByUserFn    func(ctx context.Context, userID int64, limit int) ([]model.Message, error)
	listByAuthorsFn func(ctx context.Context, authorIDs []int64, limit int) ([]model.Message, error)

	deleteCalls        []int64
	listByAuthorsCalls int
}

func (m *mockMessageRepository) Create(ctx context.Context, msg *model.Message) error {
	if m.createFn != nil {
		return m.createFn(ctx, msg)
	}
	return nil
}

func (m *mockMessageRepository) GetByID(ctx context.Context, id int64) (*model.Message, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, model.ErrMessageNotFound
}

func (m *mockMessageRepository) GetByIDs(ctx context.Context, ids []int64) ([]model.Message, error) {
	if m.getByIDsFn != nil {
		return m.getByIDsFn(ctx, ids)
	}
	return []model.Message{}, nil
}

func (m *mockMessageRepository) Delete(ctx context.Context, id int64) error {
	m.deleteCalls = append(m.deleteCalls, id)
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockMessageRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]model.Message, error) {
	if m.listByUserFn != nil {
		return m.listByUserFn(ctx, userID, limit)
	}
	return []model.Message{}, nil
}

func (m *mockMessageRepository) ListByAuthors(ctx context.Context, authorIDs []int64, limit int) ([]model.Message, error) {
	m.listByAuthorsCalls++
	if m.listByAuthorsFn != nil {
		return m.listByAuthorsFn(ctx, authorIDs, limit)
	}
	return []model.Message{}, nil
}

// mockFollowRepository keeps a real in-memory edge set, which reads better in
// follow tests than per-method stubs.
type mockFollowRepository struct {
	edges map[[2]int64]bool
	err   error
}

func newMockFollowRepository(edges ...[2]int64) *mockFollowRepository {
	m := &mockFollowRepository{edges: make(map[[2]int64]bool)}
	for _, e := range edges {
		m.edges[e] = true
	}
	return m
}

func (m *mockFollowRepository) Create(ctx context.Context, followerID, followedID int64) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	key := [2]int64{followerID, followedID}
	if m.edges[key] {
		return false, nil
	}
	m.edges[key] = true
	return true, nil
}

func (m *mockFollowRepository) Delete(ctx context.Context, followerID, followedID int64) error {
	if m.err != nil {
		return m.err
	}
	key := [2]int64{followerID, followedID}
	if !m.edges[key] {
		return model.ErrNotFollowing
	}
	delete(m.edges, key)
	return nil
}

func (m *mockFollowRepository) Exists(ctx context.Context, followerID, followedID int64) (bool, error) {
	return m.edges[[2]int64{followerID, followedID}], m.err
}

func (m *mockFollowRepository) GetFollowers(ctx context.Context, userID int64) ([]model.UserSummary, error) {
	users := []model.UserSummary{}
	for e := range m.edges {
		if e[1] == userID {
			users = append(users, model.UserSummary{ID: e[0]})
		}
	}
	return users, m.err
}

func (m *mockFollowRepository) GetFollowing(ctx context.Context, userID int64) ([]model.UserSummary, error) {
	users := []model.UserSummary{}
	for e := range m.edges {
		if e[0] == userID {
			users = append(users, model.UserSummary{ID: e[1]})
		}
	}
	return users, m.err
}

func (m *mockFollowRepository) GetFollowerIDs(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	for e := range m.edges {
		if e[1] == userID {
			ids = append(ids, e[0])
		}
	}
	return ids, m.err
}

func (m *mockFollowRepository) GetFollowedIDs(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	for e := range m.edges {
		if e[0] == userID {
			ids = append(ids, e[1])
		}
	}
	return ids, m.err
}

// mockLikeRepository stores likes per (user, message) and message authors.
type mockLikeRepository struct {
	authors map[int64]int64 // message -> author
	likes   map[[2]int64]bool
}

func newMockLikeRepository(authors map[int64]int64) *mockLikeRepository {
	return &mockLikeRepository{authors: authors, likes: make(map[[2]int64]bool)}
}

func (m *mockLikeRepository) LockMessage(ctx context.Context, tx *sqlx.Tx, messageID int64) (int64, error) {
	author, ok := m.authors[messageID]
	if !ok {
		return 0, model.ErrMessageNotFound
	}
	return author, nil
}

func (m *mockLikeRepository) Insert(ctx context.Context, tx *sqlx.Tx, userID, messageID int64) (bool, error) {
	key := [2]int64{userID, messageID}
	if m.likes[key] {
		return false, nil
	}
	m.likes[key] = true
	return true, nil
}

func (m *mockLikeRepository) Delete(ctx context.Context, tx *sqlx.Tx, userID, messageID int64) (bool, error) {
	key := [2]int64{userID, messageID}
	if !m.likes[key] {
		return false, nil
	}
	delete(m.likes, key)
	return true, nil
}

func (m *mockLikeRepository) LikedIDs(ctx context.Context, userID int64, messageIDs []int64) ([]int64, error) {
	ids := []int64{}
	for _, id := range messageIDs {
		if m.likes[[2]int64{userID, id}] {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *mockLikeRepository) ListLikedMessages(ctx context.Context, userID int64, limit int) ([]model.Message, error) {
	msgs := []model.Message{}
	for k := range m.likes {
		if k[0] == userID {
			msgs = append(msgs, model.Message{ID: k[1], UserID: m.authors[k[1]]})
		}
	}
	return msgs, nil
}

// mockTransactor runs fn without a database. Repositories under test ignore tx.
type mockTransactor struct {
	calls int
}

func (m *mockTransactor) WithinTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	m.calls++
	return fn(nil)
}

// =============================================================================
// MOCK CACHE AND QUEUE
// =============================================================================

type mockTimeline struct {
	scores   map[int64]int64 // message -> score
	warming  bool
	complete bool
}

// mockTimelineCache mirrors the Redis cache: adds only reach existing
// timelines, Warm merges into a reservation and Invalidate cancels one.
type mockTimelineCache struct {
	timelines   map[int64]*mockTimeline
	getErr      error
	invalidated []int64
	warmed      map[int64][]cache.MessageScore
}

func newMockTimelineCache() *mockTimelineCache {
	return &mockTimelineCache{
		timelines: make(map[int64]*mockTimeline),
		warmed:    make(map[int64][]cache.MessageScore),
	}
}

// set caches ids for userID, scored like msg() timestamps.
func (m *mockTimelineCache) set(userID int64, complete bool, ids ...int64) {
	tl := &mockTimeline{scores: make(map[int64]int64), complete: complete}
	for _, id := range ids {
		tl.scores[id] = cache.ScoreOf(id, time.Unix(id, 0)).Score
	}
	m.timelines[userID] = tl
}

func (m *mockTimelineCache) trim(tl *mockTimeline) {
	for len(tl.scores) > cache.TimelineCap {
		oldest, first := int64(0), true
		for id, score := range tl.scores {
			if first || score < tl.scores[oldest] {
				oldest, first = id, false
			}
		}
		delete(tl.scores, oldest)
		tl.complete = false
	}
}

func (m *mockTimelineCache) AddMessage(ctx context.Context, userID int64, msg cache.MessageScore) error {
	if tl, ok := m.timelines[userID]; ok {
		tl.scores[msg.MessageID] = msg.Score
		m.trim(tl)
	}
	return nil
}

func (m *mockTimelineCache) RemoveMessage(ctx context.Context, userID, messageID int64) error {
	if tl, ok := m.timelines[userID]; ok {
		delete(tl.scores, messageID)
	}
	return nil
}

func (m *mockTimelineCache) GetTimeline(ctx context.Context, userID int64, limit int) (*cache.Timeline, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	tl, ok := m.timelines[userID]
	if !ok {
		return &cache.Timeline{}, nil
	}

	ids := make([]int64, 0, len(tl.scores))
	for id := range tl.scores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return tl.scores[ids[i]] > tl.scores[ids[j]] })

	out := &cache.Timeline{Found: true, Warming: tl.warming, Complete: tl.complete && len(ids) <= limit}
	if len(ids) > limit {
		ids = ids[:limit]
	}
	out.IDs = ids
	return out, nil
}

func (m *mockTimelineCache) Reserve(ctx context.Context, userID int64) error {
	tl, ok := m.timelines[userID]
	if !ok {
		tl = &mockTimeline{scores: make(map[int64]int64)}
		m.timelines[userID] = tl
	}
	tl.warming = true
	return nil
}

func (m *mockTimelineCache) Warm(ctx context.Context, userID int64, msgs []cache.MessageScore, complete bool) (bool, error) {
	tl, ok := m.timelines[userID]
	if !ok || !tl.warming {
		return false, nil
	}
	m.warmed[userID] = msgs
	tl.warming = false
	tl.complete = tl.complete || complete
	for _, s := range msgs {
		tl.scores[s.MessageID] = s.Score
	}
	m.trim(tl)
	return true, nil
}

func (m *mockTimelineCache) Invalidate(ctx context.Context, userID int64) error {
	m.invalidated = append(m.invalidated, userID)
	delete(m.timelines, userID)
	return nil
}

func (m *mockTimelineCache) Exists(ctx context.Context, userID int64) (bool, error) {
	_, ok := m.timelines[userID]
	return ok, nil
}

type mockPublisher struct {
	events []queue.TimelineEvent
	err    error
}

func (m *mockPublisher) Publish(ctx context.Context, stream string, event queue.TimelineEvent) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.events = append(m.events, event)
	return "1-0", nil
}

func (m *mockPublisher) Trim(ctx context.Context, stream string, maxLen int64) (int64, error) {
	return 0, nil
}

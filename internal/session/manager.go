package session

import (
	"encoding/gob"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"

	"warbler/internal/logger"
)

// CookieName is the browser cookie carrying the signed session.
const CookieName = "warbler_session"

const tokenKey = "token"

// Flash categories
const (
	FlashSuccess = "success"
	FlashInfo    = "info"
	FlashDanger  = "danger"
)

var log = logger.Component("Session")

// Flash is a one-shot message shown on the next page.
type Flash struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

func init() {
	gob.Register(Flash{})
}

// Manager ties the signed cookie to the server-side Store.
// The cookie only carries an opaque token and pending flashes.
type Manager struct {
	cookies *sessions.CookieStore
	store   Store
}

// NewManager signs cookies with secret. An empty secret gets a random key,
// which invalidates every session on restart.
func NewManager(store Store, secret string, maxAge int, secure bool) *Manager {
	hashKey := []byte(secret)
	if secret == "" {
		log.Warn().Msg("No session secret configured, using a random key")
		hashKey = securecookie.GenerateRandomKey(32)
	}

	cookies := sessions.NewCookieStore(hashKey)
	cookies.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}

	return &Manager{cookies: cookies, store: store}
}

// session never fails: a tampered or undecodable cookie yields a fresh session.
func (m *Manager) session(r *http.Request) *sessions.Session {
	sess, err := m.cookies.Get(r, CookieName)
	if err != nil {
		log.Debug().Err(err).Msg("Discarding invalid session cookie")
	}
	return sess
}

// Login starts a new server-side session for userID, replacing any previous one.
func (m *Manager) Login(w http.ResponseWriter, r *http.Request, userID int64) error {
	sess := m.session(r)
	if old, ok := sess.Values[tokenKey].(string); ok && old != "" {
		if err := m.store.Delete(r.Context(), old); err != nil {
			log.Warn().Err(err).Msg("Failed to drop previous session")
		}
	}

	token, err := m.store.Create(r.Context(), userID)
	if err != nil {
		return err
	}

	sess.Values[tokenKey] = token
	return sess.Save(r, w)
}

// Logout destroys the server-side session. Pending flashes survive.
func (m *Manager) Logout(w http.ResponseWriter, r *http.Request) error {
	sess := m.session(r)
	token, _ := sess.Values[tokenKey].(string)
	delete(sess.Values, tokenKey)

	if token != "" {
		if err := m.store.Delete(r.Context(), token); err != nil {
			return err
		}
	}
	return sess.Save(r, w)
}

// UserID returns the logged-in user's id, or 0 for anonymous requests.
func (m *Manager) UserID(r *http.Request) (int64, error) {
	token, _ := m.session(r).Values[tokenKey].(string)
	if token == "" {
		return 0, nil
	}

	userID, err := m.store.UserID(r.Context(), token)
	if errors.Is(err, ErrSessionNotFound) {
		return 0, nil
	}
	return userID, err
}

// AddFlash queues a message for the next page render.
func (m *Manager) AddFlash(w http.ResponseWriter, r *http.Request, category, message string) {
	sess := m.session(r)
	sess.AddFlash(Flash{Category: category, Message: message})
	if err := sess.Save(r, w); err != nil {
		log.Error().Err(err).Msg("Failed to save flash")
	}
}

// PopFlashes returns and clears pending flashes.
func (m *Manager) PopFlashes(w http.ResponseWriter, r *http.Request) []Flash {
	sess := m.session(r)
	raw := sess.Flashes()
	if len(raw) == 0 {
		return []Flash{}
	}

	flashes := make([]Flash, 0, len(raw))
	for _, f := range raw {
		if flash, ok := f.(Flash); ok {
			flashes = append(flashes, flash)
		}
	}
	if err := sess.Save(r, w); err != nil {
		log.Error().Err(err).Msg("Failed to clear flashes")
	}
	return flashes
}

// SessionTTL converts a cookie max age in seconds to the store TTL.
func SessionTTL(maxAge int) time.Duration {
	return time.Duration(maxAge) * time.Second
}

package session

import (
	"crypto/subtle"
	"encoding/base64"
	"net/http"

	"github.com/gorilla/securecookie"
)

const csrfKey = "csrf"

// CSRFToken returns the session's form token, issuing one on first use.
// The token lives in the signed cookie and survives login and logout.
func (m *Manager) CSRFToken(w http.ResponseWriter, r *http.Request) string {
	sess := m.session(r)
	if token, ok := sess.Values[csrfKey].(string); ok && token != "" {
		return token
	}

	token := base64.RawURLEncoding.EncodeToString(securecookie.GenerateRandomKey(32))
	sess.Values[csrfKey] = token
	if err := sess.Save(r, w); err != nil {
		log.Error().Err(err).Msg("Failed to save CSRF token")
	}
	return token
}

// ValidCSRF reports whether token matches the one issued to this session.
func (m *Manager) ValidCSRF(r *http.Request, token string) bool {
	want, _ := m.session(r).Values[csrfKey].(string)
	if want == "" || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(token)) == 1
}

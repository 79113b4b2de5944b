package middleware

import (
	"net/http"

	"warbler/internal/httputil"
	"warbler/internal/session"
)

const (
	// CSRFField is the form field carrying the token.
	CSRFField = "csrf_token"
	// CSRFHeader carries the token on responses, and may carry it on requests
	// from scripts that do not post a form.
	CSRFHeader = "X-CSRF-Token"

	MsgInvalidForm = "Invalid form data"
	MsgCSRFFailed  = "Form expired or was not sent by this site. Please try again."
)

// CSRF rejects unsafe requests whose token does not match the session's.
// Every response carries the session's token in CSRFHeader.
func CSRF(sessions *session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(CSRFHeader, sessions.CSRFToken(w, r))

			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			sent := r.Header.Get(CSRFHeader)
			if sent == "" {
				if err := httputil.ParseForm(w, r); err != nil {
					httputil.WritePage(w, http.StatusBadRequest, httputil.Page{
						Name:   "bad-request",
						Errors: []string{MsgInvalidForm},
					})
					return
				}
				sent = r.PostFormValue(CSRFField)
			}

			if !sessions.ValidCSRF(r, sent) {
				log.Warn().Str("method", r.Method).Str("path", r.URL.Path).Msg("CSRF token mismatch")
				httputil.WritePage(w, http.StatusForbidden, httputil.Page{
					Name:   "forbidden",
					Errors: []string{MsgCSRFFailed},
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

package middleware

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"warbler/internal/model"
	"warbler/internal/session"
)

type fakeStore struct {
	sessions map[string]int64
}

func (s *fakeStore) Create(ctx context.Context, userID int64) (string, error) {
	s.sessions["tok"] = userID
	return "tok", nil
}

func (s *fakeStore) UserID(ctx context.Context, token string) (int64, error) {
	id, ok := s.sessions[token]
	if !ok {
		return 0, session.ErrSessionNotFound
	}
	return id, nil
}

func (s *fakeStore) Delete(ctx context.Context, token string) error {
	delete(s.sessions, token)
	return nil
}

type usersFunc func(ctx context.Context, id int64) (*model.User, error)

func (f usersFunc) GetByID(ctx context.Context, id int64) (*model.User, error) { return f(ctx, id) }

// loggedInCookie returns a session cookie for userID issued by m.
func loggedInCookie(t *testing.T, m *session.Manager, userID int64) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	if err := m.Login(rec, httptest.NewRequest(http.MethodPost, "/login", nil), userID); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	cookies := rec.Result().Cookies()
	return cookies[len(cookies)-1]
}

func TestLoadSession(t *testing.T) {
	alice := &model.User{ID: 1, Username: "alice"}

	tests := []struct {
		name   string
		login  bool
		users  usersFunc
		wantID int64
	}{
		{
			name:   "anonymous",
			users:  func(ctx context.Context, id int64) (*model.User, error) { return alice, nil },
			wantID: 0,
		},
		{
			name:   "logged in",
			login:  true,
			users:  func(ctx context.Context, id int64) (*model.User, error) { return alice, nil },
			wantID: 1,
		},
		{
			name:   "user deleted since login",
			login:  true,
			users:  func(ctx context.Context, id int64) (*model.User, error) { return nil, model.ErrUserNotFound },
			wantID: 0,
		},
		{
			name:   "database error",
			login:  true,
			users:  func(ctx context.Context, id int64) (*model.User, error) { return nil, errors.New("db down") },
			wantID: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// ARRANGE
			m := session.NewManager(&fakeStore{sessions: map[string]int64{}}, "secret", 3600, false)
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.login {
				req.AddCookie(loggedInCookie(t, m, 1))
			}

			var gotID int64 = -1
			h := LoadSession(m, tt.users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotID = CurrentUserID(r.Context())
			}))

			// ACT
			h.ServeHTTP(httptest.NewRecorder(), req)

			// ASSERT
			if gotID != tt.wantID {
				t.Errorf("CurrentUserID = %d, want %d", gotID, tt.wantID)
			}
		})
	}
}

func TestRequireUser_RedirectsAnonymous(t *testing.T) {
	m := session.NewManager(&fakeStore{sessions: map[string]int64{}}, "secret", 3600, false)
	called := false
	h := RequireUser(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/messages/new", nil))

	if called {
		t.Error("guarded handler must not run for anonymous requests")
	}
	if rec.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if loc := rec.Header().Get("Location"); loc != "/" {
		t.Errorf("Location = %q, want /", loc)
	}

	// The flash rides along in the cookie to the next page
	next := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		next.AddCookie(c)
	}
	flashes := m.PopFlashes(httptest.NewRecorder(), next)
	if len(flashes) != 1 || flashes[0].Message != MsgAccessUnauthorized {
		t.Errorf("flashes = %v, want %q", flashes, MsgAccessUnauthorized)
	}
}

func TestRequireUser_PassesAuthenticated(t *testing.T) {
	m := session.NewManager(&fakeStore{sessions: map[string]int64{}}, "secret", 3600, false)
	called := false
	h := RequireUser(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	req := httptest.NewRequest(http.MethodPost, "/messages/new", nil)
	req = req.WithContext(WithUser(req.Context(), &model.User{ID: 3}))
	h.ServeHTTP(httptest.NewRecorder(), req)

	if !called {
		t.Error("guarded handler should run for logged-in users")
	}
}

type tokenFunc func(string) (int64, error)

func (f tokenFunc) Parse(token string) (int64, error) { return f(token) }

func TestAuthMiddleware(t *testing.T) {
	parser := tokenFunc(func(token string) (int64, error) {
		switch token {
		case "good":
			return 5, nil
		case "old":
			return 0, model.ErrTokenExpired
		default:
			return 0, model.ErrTokenInvalid
		}
	})

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantCode   string
	}{
		{name: "valid", header: "Bearer good", wantStatus: http.StatusOK},
		{name: "lowercase scheme", header: "bearer good", wantStatus: http.StatusOK},
		{name: "missing", header: "", wantStatus: http.StatusUnauthorized, wantCode: "UNAUTHORIZED"},
		{name: "expired", header: "Bearer old", wantStatus: http.StatusUnauthorized, wantCode: model.CodeTokenExpired},
		{name: "invalid", header: "Bearer junk", wantStatus: http.StatusUnauthorized, wantCode: model.CodeTokenInvalid},
		{name: "wrong scheme", header: "Basic good", wantStatus: http.StatusUnauthorized, wantCode: "UNAUTHORIZED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotID int64
			h := AuthMiddleware(parser)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotID, _ = GetUserIDFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/feed", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantCode != "" && !strings.Contains(rec.Body.String(), tt.wantCode) {
				t.Errorf("body %q does not contain %q", rec.Body.String(), tt.wantCode)
			}
			if tt.wantStatus == http.StatusOK && gotID != 5 {
				t.Errorf("user id = %d, want 5", gotID)
			}
		})
	}
}

// csrfSession runs one GET through CSRF and returns the session cookie and token it issued.
func csrfSession(t *testing.T, m *session.Manager) (*http.Cookie, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	CSRF(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	token := rec.Header().Get(CSRFHeader)
	cookies := rec.Result().Cookies()
	if token == "" || len(cookies) == 0 {
		t.Fatalf("GET issued token %q and %d cookies", token, len(cookies))
	}
	return cookies[len(cookies)-1], token
}

func TestCSRF(t *testing.T) {
	m := session.NewManager(&fakeStore{sessions: map[string]int64{}}, "test-secret", 3600, false)
	cookie, token := csrfSession(t, m)
	otherCookie, _ := csrfSession(t, m)

	form := func(tok string) string { return "text=hi&" + CSRFField + "=" + tok }

	tests := []struct {
		name       string
		method     string
		body       string
		header     string
		cookie     *http.Cookie
		wantStatus int
	}{
		{name: "GET needs no token", method: http.MethodGet, cookie: cookie, wantStatus: http.StatusOK},
		{name: "form field", method: http.MethodPost, body: form(token), cookie: cookie, wantStatus: http.StatusOK},
		{name: "header", method: http.MethodPost, header: token, cookie: cookie, wantStatus: http.StatusOK},
		{name: "missing token", method: http.MethodPost, body: "text=hi", cookie: cookie, wantStatus: http.StatusForbidden},
		{name: "wrong token", method: http.MethodPost, body: form("forged"), cookie: cookie, wantStatus: http.StatusForbidden},
		{name: "token of another session", method: http.MethodPost, body: form(token), cookie: otherCookie, wantStatus: http.StatusForbidden},
		{name: "no session", method: http.MethodPost, body: form(token), wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// ARRANGE
			req := httptest.NewRequest(tt.method, "/messages/new", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			if tt.header != "" {
				req.Header.Set(CSRFHeader, tt.header)
			}
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				if tt.method == http.MethodPost && tt.body != "" && r.FormValue("text") != "hi" {
					t.Error("handler should still see the parsed form")
				}
			})
			rec := httptest.NewRecorder()

			// ACT
			CSRF(m)(next).ServeHTTP(rec, req)

			// ASSERT
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if called != (tt.wantStatus == http.StatusOK) {
				t.Errorf("next called = %v", called)
			}
			if tt.wantStatus == http.StatusForbidden && !strings.Contains(rec.Body.String(), "forbidden") {
				t.Errorf("body = %s, want the forbidden page", rec.Body.String())
			}
		})
	}
}

func TestCSRF_Multipart(t *testing.T) {
	m := session.NewManager(&fakeStore{sessions: map[string]int64{}}, "test-secret", 3600, false)
	cookie, token := csrfSession(t, m)

	var body strings.Builder
	mw := multipart.NewWriter(&body)
	mw.WriteField(CSRFField, token)
	mw.WriteField("username", "alice")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(body.String()))
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()

	var username string
	CSRF(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username = r.FormValue("username")
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || username != "alice" {
		t.Errorf("status = %d, username = %q; want 200 and the parsed form", rec.Code, username)
	}
}

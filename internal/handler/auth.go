package handler

import (
	"errors"
	"net/http"
	"strings"

	"warbler/internal/httputil"
	"warbler/internal/model"
	"warbler/internal/monitoring"
	"warbler/internal/session"
	"warbler/internal/transport/http/middleware"
)

const (
	MsgUserTaken          = "Username/Email already taken"
	MsgInvalidCredentials = "Invalid credentials."
	MsgLogout             = "Logout succeeded"
)

// AuthHandler serves signup, login and logout.
type AuthHandler struct {
	pages
	accounts Accounts
	uploader Uploader
}

func NewAuthHandler(sessions *session.Manager, accounts Accounts, uploader Uploader) *AuthHandler {
	return &AuthHandler{
		pages:    pages{sessions: sessions},
		accounts: accounts,
		uploader: uploader,
	}
}

// SignupPage renders the signup form. Logged-in users go home.
// GET /signup
func (h *AuthHandler) SignupPage(w http.ResponseWriter, r *http.Request) {
	if middleware.CurrentUser(r.Context()) != nil {
		httputil.SeeOther(w, r, "/")
		return
	}
	h.render(w, r, http.StatusOK, "signup", nil)
}

// Signup creates the account and logs it in.
// POST /signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	if err := httputil.ParseForm(w, r); err != nil {
		h.render(w, r, http.StatusBadRequest, "signup", nil, "Invalid form data")
		return
	}

	req := model.SignupRequest{
		Username: r.FormValue("username"),
		Email:    r.FormValue("email"),
		Password: r.FormValue("password"),
		ImageURL: strings.TrimSpace(r.FormValue("image_url")),
	}

	upload, err := uploadImage(r, h.uploader, "image", model.ImageAvatar)
	if err != nil {
		msg, ok := uploadError(err)
		if !ok {
			log.Error().Err(err).Msg("Signup image upload failed")
			msg = MsgSomethingWrong
		}
		h.render(w, r, http.StatusBadRequest, "signup", nil, msg)
		return
	}
	if upload != nil {
		req.ImageURL, req.ImageKey = upload.URL, &upload.Key
	}

	user, err := h.accounts.Signup(r.Context(), &req)
	if err != nil {
		if upload != nil {
			discardUploads(r, h.uploader, upload)
		}
		if msgs, ok := validationMessages(err); ok {
			h.render(w, r, http.StatusBadRequest, "signup", nil, msgs...)
			return
		}
		if errors.Is(err, model.ErrUserExists) {
			h.render(w, r, http.StatusBadRequest, "signup", nil, MsgUserTaken)
			return
		}
		h.fail(w, r, err, "/signup")
		return
	}

	monitoring.SignupSuccess.Inc()

	if err := h.sessions.Login(w, r, user.ID); err != nil {
		log.Error().Err(err).Int64("user", user.ID).Msg("Failed to start session after signup")
		h.flash(w, r, session.FlashDanger, MsgSomethingWrong)
		httputil.SeeOther(w, r, "/login")
		return
	}
	httputil.SeeOther(w, r, "/")
}

// LoginPage renders the login form.
// GET /login
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "login", nil)
}

// Login checks credentials and starts a session.
// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := httputil.ParseForm(w, r); err != nil {
		h.render(w, r, http.StatusBadRequest, "login", nil, "Invalid form data")
		return
	}

	req := model.LoginRequest{
		Username: strings.TrimSpace(r.FormValue("username")),
		Password: r.FormValue("password"),
	}

	user, err := h.accounts.Authenticate(r.Context(), &req)
	if err != nil {
		if errors.Is(err, model.ErrInvalidCredentials) {
			monitoring.LoginFailure.WithLabelValues("invalid_credentials").Inc()
			h.render(w, r, http.StatusUnauthorized, "login", nil, MsgInvalidCredentials)
			return
		}
		monitoring.LoginFailure.WithLabelValues("error").Inc()
		h.fail(w, r, err, "/login")
		return
	}

	if err := h.sessions.Login(w, r, user.ID); err != nil {
		monitoring.LoginFailure.WithLabelValues("session").Inc()
		h.fail(w, r, err, "/login")
		return
	}

	monitoring.LoginSuccess.Inc()
	h.flash(w, r, session.FlashSuccess, "Hello, "+user.Username+"!")
	httputil.SeeOther(w, r, "/")
}

// Logout destroys the session.
// GET /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(w, r); err != nil {
		h.fail(w, r, err, "/")
		return
	}
	h.flash(w, r, session.FlashSuccess, MsgLogout)
	httputil.SeeOther(w, r, "/login")
}

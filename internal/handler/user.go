package handler

import (
	"errors"
	"net/http"

	"warbler/internal/httputil"
	"warbler/internal/model"
	"warbler/internal/session"
	"warbler/internal/transport/http/middleware"
)

const MsgEditSuccessful = "Edit successful"

type UserHandler struct {
	pages
	accounts Accounts
	uploader Uploader
}

func NewUserHandler(sessions *session.Manager, accounts Accounts, uploader Uploader) *UserHandler {
	return &UserHandler{
		pages:    pages{sessions: sessions},
		accounts: accounts,
		uploader: uploader,
	}
}

type userListData struct {
	Query string              `json:"q"`
	Users []model.UserSummary `json:"users"`
}

// List shows every user, or those matching ?q=.
// GET /users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")

	users, err := h.accounts.Search(r.Context(), q)
	if err != nil {
		h.fail(w, r, err, "/")
		return
	}
	h.render(w, r, http.StatusOK, "users", userListData{Query: q, Users: users})
}

// Show renders a user page with their newest messages.
// GET /users/{id}
func (h *UserHandler) Show(w http.ResponseWriter, r *http.Request) {
	userID, ok := urlID(r, "id")
	if !ok {
		h.notFound(w, r, "User")
		return
	}

	profile, err := h.accounts.Profile(r.Context(), userID, middleware.CurrentUserID(r.Context()))
	if err != nil {
		h.fail(w, r, err, "/")
		return
	}
	h.render(w, r, http.StatusOK, "user", profile)
}

// EditPage renders the profile form prefilled with the current user.
// GET /users/profile/{id}
func (h *UserHandler) EditPage(w http.ResponseWriter, r *http.Request) {
	user, ok := h.editableUser(w, r)
	if !ok {
		return
	}
	h.render(w, r, http.StatusOK, "edit-profile", user)
}

// Update applies the profile form after re-checking the password.
// POST /users/profile/{id}
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := h.editableUser(w, r)
	if !ok {
		return
	}

	if err := httputil.ParseForm(w, r); err != nil {
		h.render(w, r, http.StatusBadRequest, "edit-profile", user, "Invalid form data")
		return
	}

	upd := model.ProfileUpdate{
		Username:       r.FormValue("username"),
		Email:          r.FormValue("email"),
		ImageURL:       r.FormValue("image_url"),
		HeaderImageURL: r.FormValue("header_image_url"),
		Bio:            r.FormValue("bio"),
		Location:       r.FormValue("location"),
		Password:       r.FormValue("password"),
	}

	var uploaded []*model.UploadResult
	for _, field := range []struct {
		name string
		kind model.ImageKind
		url  *string
		key  **string
	}{
		{"image", model.ImageAvatar, &upd.ImageURL, &upd.ImageKey},
		{"header_image", model.ImageHeader, &upd.HeaderImageURL, &upd.HeaderImageKey},
	} {
		upload, err := uploadImage(r, h.uploader, field.name, field.kind)
		if err != nil {
			discardUploads(r, h.uploader, uploaded...)
			msg, ok := uploadError(err)
			if !ok {
				log.Error().Err(err).Msg("Profile image upload failed")
				msg = MsgSomethingWrong
			}
			h.render(w, r, http.StatusBadRequest, "edit-profile", user, msg)
			return
		}
		if upload != nil {
			*field.url, *field.key = upload.URL, &upload.Key
			uploaded = append(uploaded, upload)
		}
	}

	updated, err := h.accounts.UpdateProfile(r.Context(), user.ID, &upd)
	if err != nil {
		discardUploads(r, h.uploader, uploaded...)
		switch {
		case errors.Is(err, model.ErrInvalidCredentials):
			h.render(w, r, http.StatusUnauthorized, "edit-profile", user, MsgInvalidCredentials)
		case errors.Is(err, model.ErrUserExists):
			h.render(w, r, http.StatusBadRequest, "edit-profile", user, MsgUserTaken)
		default:
			if msgs, ok := validationMessages(err); ok {
				h.render(w, r, http.StatusBadRequest, "edit-profile", user, msgs...)
				return
			}
			h.fail(w, r, err, userPath(user.ID))
		}
		return
	}

	h.flash(w, r, session.FlashSuccess, MsgEditSuccessful)
	httputil.SeeOther(w, r, userPath(updated.ID))
}

// Delete logs out and removes the current user's account.
// POST /users/delete
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	me := middleware.CurrentUserID(r.Context())

	if err := h.sessions.Logout(w, r); err != nil {
		h.fail(w, r, err, "/")
		return
	}

	if err := h.accounts.Delete(r.Context(), me); err != nil {
		h.fail(w, r, err, "/")
		return
	}

	httputil.SeeOther(w, r, "/signup")
}

// editableUser returns the current user when the path id is theirs, and
// otherwise answers the request itself.
func (h *UserHandler) editableUser(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	user := middleware.CurrentUser(r.Context())
	id, ok := urlID(r, "id")
	if !ok || user == nil || id != user.ID {
		h.flash(w, r, session.FlashDanger, MsgUnauthorized)
		httputil.SeeOther(w, r, "/")
		return nil, false
	}
	return user, true
}


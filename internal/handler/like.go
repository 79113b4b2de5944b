package handler

import (
	"net/http"
	"strconv"

	"warbler/internal/httputil"
	"warbler/internal/model"
	"warbler/internal/monitoring"
	"warbler/internal/session"
	"warbler/internal/transport/http/middleware"
)

type LikeHandler struct {
	pages
	likes    Likes
	accounts Accounts
}

func NewLikeHandler(sessions *session.Manager, likes Likes, accounts Accounts) *LikeHandler {
	return &LikeHandler{pages: pages{sessions: sessions}, likes: likes, accounts: accounts}
}

// AddLike toggles the current user's like. userId in the path must be the current user.
// POST /users/add_like/{msgId}/{userId}
func (h *LikeHandler) AddLike(w http.ResponseWriter, r *http.Request) {
	me := middleware.CurrentUserID(r.Context())

	userID, okUser := urlID(r, "userId")
	messageID, okMsg := urlID(r, "msgId")
	if !okUser || userID != me {
		h.flash(w, r, session.FlashDanger, MsgUnauthorized)
		httputil.SeeOther(w, r, "/")
		return
	}
	if !okMsg {
		h.notFound(w, r, "Message")
		return
	}

	liked, err := h.likes.Toggle(r.Context(), me, messageID)
	if err != nil {
		h.fail(w, r, err, "/")
		return
	}

	monitoring.LikesToggled.WithLabelValues(strconv.FormatBool(liked)).Inc()
	httputil.SeeOther(w, r, "/")
}

// Unlike removes a like from the likes page. id in the path must be the current user.
// POST /users/{id}/{msgId}
func (h *LikeHandler) Unlike(w http.ResponseWriter, r *http.Request) {
	me := middleware.CurrentUserID(r.Context())

	userID, okUser := urlID(r, "id")
	messageID, okMsg := urlID(r, "msgId")
	if !okUser || userID != me {
		h.flash(w, r, session.FlashDanger, MsgUnauthorized)
		httputil.SeeOther(w, r, "/")
		return
	}
	back := userPath(me) + "/likes"
	if !okMsg {
		h.notFound(w, r, "Message")
		return
	}

	if err := h.likes.Unlike(r.Context(), me, messageID); err != nil {
		h.fail(w, r, err, back)
		return
	}

	monitoring.LikesToggled.WithLabelValues("false").Inc()
	httputil.SeeOther(w, r, back)
}

type likesData struct {
	User     model.UserSummary `json:"user"`
	Messages []model.Message  `json:"messages"`
}

// List shows the messages a user liked.
// GET /users/{id}/likes
func (h *LikeHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := urlID(r, "id")
	if !ok {
		h.notFound(w, r, "User")
		return
	}

	user, err := h.accounts.GetByID(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err, "/")
		return
	}

	messages, err := h.likes.LikedMessages(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err, "/")
		return
	}

	h.render(w, r, http.StatusOK, "likes", likesData{User: user.Summary(), Messages: messages})
}

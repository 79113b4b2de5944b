package handler

import (
	"net/http"

	"warbler/internal/httputil"
	"warbler/internal/monitoring"
	"warbler/internal/session"
	"warbler/internal/transport/http/middleware"
)

type FollowHandler struct {
	pages
	follows Follows
}

func NewFollowHandler(sessions *session.Manager, follows Follows) *FollowHandler {
	return &FollowHandler{pages: pages{sessions: sessions}, follows: follows}
}

// Following lists whom a user follows.
// GET /users/{id}/following
func (h *FollowHandler) Following(w http.ResponseWriter, r *http.Request) {
	userID, ok := urlID(r, "id")
	if !ok {
		h.notFound(w, r, "User")
		return
	}

	list, err := h.follows.Following(r.Context(), userID, middleware.CurrentUserID(r.Context()))
	if err != nil {
		h.fail(w, r, err, "/")
		return
	}
	h.render(w, r, http.StatusOK, "following", list)
}

// Followers lists who follows a user.
// GET /users/{id}/followers
func (h *FollowHandler) Followers(w http.ResponseWriter, r *http.Request) {
	userID, ok := urlID(r, "id")
	if !ok {
		h.notFound(w, r, "User")
		return
	}

	list, err := h.follows.Followers(r.Context(), userID, middleware.CurrentUserID(r.Context()))
	if err != nil {
		h.fail(w, r, err, "/")
		return
	}
	h.render(w, r, http.StatusOK, "followers", list)
}

// Follow adds an edge from the current user.
// POST /users/follow/{id}
func (h *FollowHandler) Follow(w http.ResponseWriter, r *http.Request) {
	me := middleware.CurrentUserID(r.Context())
	back := userPath(me) + "/following"

	targetID, ok := urlID(r, "id")
	if !ok {
		h.notFound(w, r, "User")
		return
	}

	if err := h.follows.Follow(r.Context(), me, targetID); err != nil {
		h.fail(w, r, err, back)
		return
	}

	monitoring.FollowChanges.WithLabelValues("follow").Inc()
	httputil.SeeOther(w, r, back)
}

// Unfollow removes the current user's edge.
// POST /users/stop-following/{id}
func (h *FollowHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	me := middleware.CurrentUserID(r.Context())
	back := userPath(me) + "/following"

	targetID, ok := urlID(r, "id")
	if !ok {
		h.notFound(w, r, "User")
		return
	}

	if err := h.follows.Unfollow(r.Context(), me, targetID); err != nil {
		h.fail(w, r, err, back)
		return
	}

	monitoring.FollowChanges.WithLabelValues("unfollow").Inc()
	httputil.SeeOther(w, r, back)
}

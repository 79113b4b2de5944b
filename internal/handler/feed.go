package handler

import (
	"net/http"

	"warbler/internal/model"
	"warbler/internal/session"
	"warbler/internal/transport/http/middleware"
)

type FeedHandler struct {
	pages
	feeds Feeds
}

func NewFeedHandler(sessions *session.Manager, feeds Feeds) *FeedHandler {
	return &FeedHandler{pages: pages{sessions: sessions}, feeds: feeds}
}

type homeData struct {
	User     model.UserSummary `json:"user"`
	Messages []model.Message   `json:"messages"`
	LikedIDs []int64           `json:"liked_ids"`
}

// Home shows the landing page to anonymous visitors and the home timeline otherwise.
// GET /
func (h *FeedHandler) Home(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r.Context())
	if user == nil {
		h.render(w, r, http.StatusOK, "home-anon", nil)
		return
	}

	feed, err := h.feeds.Homepage(r.Context(), user.ID)
	if err != nil {
		log.Error().Err(err).Int64("user", user.ID).Msg("Homepage failed")
		h.render(w, r, http.StatusInternalServerError, "home", nil, MsgSomethingWrong)
		return
	}

	h.render(w, r, http.StatusOK, "home", homeData{
		User:     user.Summary(),
		Messages: feed.Messages,
		LikedIDs: feed.LikedIDs,
	})
}

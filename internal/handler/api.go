package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"warbler/internal/httputil"
	"warbler/internal/model"
	"warbler/internal/monitoring"
	"warbler/internal/transport/http/middleware"
)

// APIHandler is the bearer-token JSON surface for non-browser clients.
type APIHandler struct {
	accounts Accounts
	tokens   Tokens
	feeds    Feeds
	messages Messages
	likes    Likes
	follows  Follows
}

func NewAPIHandler(accounts Accounts, tokens Tokens, feeds Feeds, messages Messages, likes Likes, follows Follows) *APIHandler {
	return &APIHandler{
		accounts: accounts,
		tokens:   tokens,
		feeds:    feeds,
		messages: messages,
		likes:    likes,
		follows:  follows,
	}
}

// Token exchanges credentials for an access token.
// POST /api/token
func (h *APIHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		httputil.WriteBadRequest(w, "Username and password are required")
		return
	}

	user, err := h.accounts.Authenticate(r.Context(), &req)
	if err != nil {
		if errors.Is(err, model.ErrInvalidCredentials) {
			monitoring.LoginFailure.WithLabelValues("invalid_credentials").Inc()
			httputil.WriteUnauthorized(w, "Invalid username or password")
			return
		}
		h.internal(w, r, err)
		return
	}

	resp, err := h.tokens.Issue(user)
	if err != nil {
		h.internal(w, r, err)
		return
	}

	monitoring.LoginSuccess.Inc()
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// Feed returns the caller's home timeline.
// GET /api/feed
func (h *APIHandler) Feed(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())

	feed, err := h.feeds.Homepage(r.Context(), userID)
	if err != nil {
		h.internal(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, feed)
}

// CreateMessage posts a message.
// POST /api/messages
func (h *APIHandler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())

	var req model.CreateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	msg, err := h.messages.Create(r.Context(), userID, &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	monitoring.MessagesPosted.Inc()
	httputil.WriteJSON(w, http.StatusCreated, msg)
}

// DeleteMessage removes one of the caller's messages.
// DELETE /api/messages/{id}
func (h *APIHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	messageID, ok := urlID(r, "id")
	if !ok {
		httputil.WriteBadRequest(w, "Invalid message ID")
		return
	}

	if err := h.messages.Delete(r.Context(), userID, messageID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleLike flips the caller's like.
// POST /api/messages/{id}/like
func (h *APIHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	messageID, ok := urlID(r, "id")
	if !ok {
		httputil.WriteBadRequest(w, "Invalid message ID")
		return
	}

	liked, err := h.likes.Toggle(r.Context(), userID, messageID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	monitoring.LikesToggled.WithLabelValues(strconv.FormatBool(liked)).Inc()
	httputil.WriteJSON(w, http.StatusOK, model.ToggleLikeResponse{MessageID: messageID, Liked: liked})
}

// Follow makes the caller follow a user.
// POST /api/users/{id}/follow
func (h *APIHandler) Follow(w http.ResponseWriter, r *http.Request) {
	h.changeFollow(w, r, "follow", h.follows.Follow)
}

// Unfollow makes the caller stop following a user.
// DELETE /api/users/{id}/follow
func (h *APIHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	h.changeFollow(w, r, "unfollow", h.follows.Unfollow)
}

func (h *APIHandler) changeFollow(w http.ResponseWriter, r *http.Request, action string, apply func(ctx context.Context, followerID, followedID int64) error) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	targetID, ok := urlID(r, "id")
	if !ok {
		httputil.WriteBadRequest(w, "Invalid user ID")
		return
	}

	if err := apply(r.Context(), userID, targetID); err != nil {
		h.writeError(w, r, err)
		return
	}

	monitoring.FollowChanges.WithLabelValues(action).Inc()
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		httputil.WriteValidationError(w, verr)
	case errors.Is(err, model.ErrUserNotFound), errors.Is(err, model.ErrMessageNotFound):
		httputil.WriteNotFound(w, err.Error())
	case errors.Is(err, model.ErrNotMessageOwner):
		httputil.WriteForbidden(w, err.Error())
	case errors.Is(err, model.ErrAlreadyFollowing):
		httputil.WriteConflict(w, err.Error())
	case errors.Is(err, model.ErrNotFollowing):
		httputil.WriteNotFound(w, err.Error())
	case errors.Is(err, model.ErrCannotFollowSelf), errors.Is(err, model.ErrCannotLikeOwnMessage):
		httputil.WriteBadRequest(w, err.Error())
	default:
		h.internal(w, r, err)
	}
}

func (h *APIHandler) internal(w http.ResponseWriter, r *http.Request, err error) {
	log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("API request failed")
	httputil.WriteInternalError(w, "Internal server error")
}

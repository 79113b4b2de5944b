package handler

import (
	"net/http"

	"warbler/internal/httputil"
	"warbler/internal/model"
	"warbler/internal/monitoring"
	"warbler/internal/session"
	"warbler/internal/transport/http/middleware"
)

type MessageHandler struct {
	pages
	messages Messages
}

func NewMessageHandler(sessions *session.Manager, messages Messages) *MessageHandler {
	return &MessageHandler{pages: pages{sessions: sessions}, messages: messages}
}

// NewPage renders the compose form.
// GET /messages/new
func (h *MessageHandler) NewPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "new-message", map[string]int{"max_length": model.MaxMessageLength})
}

// Create posts a message as the current user.
// POST /messages/new
func (h *MessageHandler) Create(w http.ResponseWriter, r *http.Request) {
	me := middleware.CurrentUserID(r.Context())

	if err := httputil.ParseForm(w, r); err != nil {
		h.render(w, r, http.StatusBadRequest, "new-message", nil, "Invalid form data")
		return
	}

	_, err := h.messages.Create(r.Context(), me, &model.CreateMessageRequest{Text: r.FormValue("text")})
	if err != nil {
		if msgs, ok := validationMessages(err); ok {
			h.render(w, r, http.StatusBadRequest, "new-message", nil, msgs...)
			return
		}
		h.fail(w, r, err, "/messages/new")
		return
	}

	monitoring.MessagesPosted.Inc()
	httputil.SeeOther(w, r, userPath(me))
}

// Show renders one message.
// GET /messages/{id}
func (h *MessageHandler) Show(w http.ResponseWriter, r *http.Request) {
	messageID, ok := urlID(r, "id")
	if !ok {
		h.notFound(w, r, "Message")
		return
	}

	msg, err := h.messages.Get(r.Context(), messageID)
	if err != nil {
		h.fail(w, r, err, "/")
		return
	}
	h.render(w, r, http.StatusOK, "message", msg)
}

// Delete removes one of the current user's messages.
// POST /messages/{id}/delete
func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	me := middleware.CurrentUserID(r.Context())

	messageID, ok := urlID(r, "id")
	if !ok {
		h.notFound(w, r, "Message")
		return
	}

	if err := h.messages.Delete(r.Context(), me, messageID); err != nil {
		h.fail(w, r, err, userPath(me))
		return
	}

	h.flash(w, r, session.FlashSuccess, "Message deleted")
	httputil.SeeOther(w, r, userPath(me))
}

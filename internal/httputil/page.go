package httputil

import (
	"net/http"
	"strings"

	"warbler/internal/model"
	"warbler/internal/session"
)

// Page is the JSON rendering of a browser page: its name, the flashes queued
// by the previous request and the page data.
type Page struct {
	Name    string          `json:"page"`
	Flashes []session.Flash `json:"flashes"`
	Errors  []string        `json:"errors,omitempty"`
	Data    interface{}     `json:"data,omitempty"`

	// CSRFToken must be echoed in the csrf_token field of every form post.
	CSRFToken string `json:"csrf_token,omitempty"`
}

// WritePage renders page with status.
func WritePage(w http.ResponseWriter, status int, page Page) {
	if page.Flashes == nil {
		page.Flashes = []session.Flash{}
	}
	WriteJSON(w, status, page)
}

// SeeOther redirects a form submission to url with 303, so a reload never re-posts.
func SeeOther(w http.ResponseWriter, r *http.Request, url string) {
	http.Redirect(w, r, url, http.StatusSeeOther)
}

// ParseForm accepts urlencoded and multipart bodies up to model.MaxFormBytes.
// The form is parsed once; later calls reuse it.
func ParseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, model.MaxFormBytes)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return r.ParseMultipartForm(1 << 20)
	}
	return r.ParseForm()
}

package handler

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"warbler/internal/httputil"
	"warbler/internal/logger"
	"warbler/internal/model"
	"warbler/internal/session"
)

var log = logger.Component("Handler")

const (
	MsgSomethingWrong = "Something went wrong. Please try again."
	MsgUnauthorized   = "Access unauthorized."
)

// Accounts is the user-facing part of service.UserService.
type Accounts interface {
	Signup(ctx context.Context, req *model.SignupRequest) (*model.User, error)
	Authenticate(ctx context.Context, req *model.LoginRequest) (*model.User, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)
	Search(ctx context.Context, query string) ([]model.UserSummary, error)
	Profile(ctx context.Context, userID, viewerID int64) (*model.UserProfile, error)
	UpdateProfile(ctx context.Context, userID int64, upd *model.ProfileUpdate) (*model.User, error)
	Delete(ctx context.Context, userID int64) error
}

type Follows interface {
	Follow(ctx context.Context, followerID, followedID int64) error
	Unfollow(ctx context.Context, followerID, followedID int64) error
	Following(ctx context.Context, userID, viewerID int64) (*model.FollowListResponse, error)
	Followers(ctx context.Context, userID, viewerID int64) (*model.FollowListResponse, error)
}

type Messages interface {
	Create(ctx context.Context, userID int64, req *model.CreateMessageRequest) (*model.Message, error)
	Get(ctx context.Context, messageID int64) (*model.Message, error)
	Delete(ctx context.Context, userID, messageID int64) error
}

type Likes interface {
	Toggle(ctx context.Context, userID, messageID int64) (bool, error)
	Unlike(ctx context.Context, userID, messageID int64) error
	LikedMessages(ctx context.Context, userID int64) ([]model.Message, error)
	LikedIDs(ctx context.Context, userID int64, messages []model.Message) ([]int64, error)
}

type Feeds interface {
	Homepage(ctx context.Context, userID int64) (*model.Feed, error)
}

// Uploader stores profile images; see service.MediaService.
type Uploader interface {
	Enabled() bool
	Upload(ctx context.Context, kind model.ImageKind, file multipart.File, header *multipart.FileHeader) (*model.UploadResult, error)
	Delete(ctx context.Context, key *string) error
}

type Tokens interface {
	Issue(user *model.User) (*model.TokenResponse, error)
}

// pages renders JSON pages and flashes for the browser-facing handlers.
type pages struct {
	sessions *session.Manager
}

func (p pages) render(w http.ResponseWriter, r *http.Request, status int, name string, data interface{}, errs ...string) {
	httputil.WritePage(w, status, httputil.Page{
		Name:      name,
		Flashes:   p.sessions.PopFlashes(w, r),
		Errors:    errs,
		Data:      data,
		CSRFToken: p.sessions.CSRFToken(w, r),
	})
}

func (p pages) flash(w http.ResponseWriter, r *http.Request, category, message string) {
	p.sessions.AddFlash(w, r, category, message)
}

func (p pages) notFound(w http.ResponseWriter, r *http.Request, what string) {
	p.render(w, r, http.StatusNotFound, "not-found", nil, what+" not found")
}

// fail handles errors every form route shares. Anything unexpected is logged and
// answered with a generic flash.
func (p pages) fail(w http.ResponseWriter, r *http.Request, err error, back string) {
	switch {
	case errors.Is(err, model.ErrUserNotFound):
		p.notFound(w, r, "User")
	case errors.Is(err, model.ErrMessageNotFound):
		p.notFound(w, r, "Message")
	case errors.Is(err, model.ErrNotMessageOwner):
		p.flash(w, r, session.FlashDanger, MsgUnauthorized)
		httputil.SeeOther(w, r, back)
	case errors.Is(err, model.ErrAlreadyFollowing),
		errors.Is(err, model.ErrNotFollowing),
		errors.Is(err, model.ErrCannotFollowSelf),
		errors.Is(err, model.ErrCannotLikeOwnMessage),
		errors.Is(err, model.ErrNotLiked):
		p.flash(w, r, session.FlashInfo, capitalize(err.Error()))
		httputil.SeeOther(w, r, back)
	default:
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("Request failed")
		p.flash(w, r, session.FlashDanger, MsgSomethingWrong)
		httputil.SeeOther(w, r, back)
	}
}

// uploadImage stores the optional file field. It returns nil, nil when the
// field is absent or uploads are disabled.
func uploadImage(r *http.Request, uploader Uploader, field string, kind model.ImageKind) (*model.UploadResult, error) {
	if uploader == nil || !uploader.Enabled() || r.MultipartForm == nil {
		return nil, nil
	}

	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return uploader.Upload(r.Context(), kind, file, header)
}

// discardUploads removes uploads of a form that was rejected.
// A failed delete only leaves an orphaned object behind, so it is logged and skipped.
func discardUploads(r *http.Request, uploader Uploader, uploads ...*model.UploadResult) {
	for _, u := range uploads {
		if err := uploader.Delete(r.Context(), &u.Key); err != nil {
			log.Warn().Err(err).Str("key", u.Key).Msg("Failed to discard upload")
		}
	}
}

// uploadError turns a media failure into a form error message.
func uploadError(err error) (string, bool) {
	switch {
	case errors.Is(err, model.ErrFileTooLarge):
		return "Image exceeds 5MB limit", true
	case errors.Is(err, model.ErrInvalidImageType):
		return "Unsupported image type. Allowed: jpeg, png, gif, webp", true
	default:
		return "", false
	}
}

func urlID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

func validationMessages(err error) ([]string, bool) {
	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		return nil, false
	}
	msgs := make([]string, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		msgs = append(msgs, f.Message)
	}
	return msgs, true
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func userPath(id int64) string {
	return "/users/" + strconv.FormatInt(id, 10)
}

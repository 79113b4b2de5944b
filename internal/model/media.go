package model

import "errors"

const (
	MaxImageSizeBytes = 5 * 1024 * 1024 // 5MB per upload
	ImageExt          = ".jpg"
	ImageCacheControl = "public, max-age=31536000" // 1 year

	AvatarWidth  = 200
	AvatarHeight = 200
	AvatarFolder = "avatars"

	HeaderWidth  = 1200
	HeaderHeight = 400
	HeaderFolder = "headers"
)

// MaxFormBytes fits a profile form with both images.
const MaxFormBytes = 2*MaxImageSizeBytes + 1<<20

// Supported image content types for upload validation
const (
	ContentTypeJPEG = "image/jpeg"
	ContentTypePNG  = "image/png"
	ContentTypeGIF  = "image/gif"
	ContentTypeWebP = "image/webp"
)

var allowedImageTypes = map[string]struct{}{
	ContentTypeJPEG: {},
	ContentTypePNG:  {},
	ContentTypeGIF:  {},
	ContentTypeWebP: {},
}

// ImageKind selects the target size and folder of an upload.
type ImageKind int

const (
	ImageAvatar ImageKind = iota
	ImageHeader
)

// Domain errors for media operations
var (
	ErrFileTooLarge     = errors.New("file too large")
	ErrInvalidImageType = errors.New("invalid image type")
	ErrUploadsDisabled  = errors.New("image uploads are not configured")
)

// UploadResult represents the uploaded object location.
// Key is the object key inside the bucket, kept so the object can be deleted later.
type UploadResult struct {
	URL string `json:"url"`
	Key string `json:"key"`
}

// IsAllowedImageType reports if the provided content type is supported
func IsAllowedImageType(contentType string) bool {
	_, ok := allowedImageTypes[contentType]
	return ok
}

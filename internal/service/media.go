package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"warbler/internal/logger"
	"warbler/internal/model"
	"warbler/internal/storage"
)

const jpegQuality = 85

var mediaLog = logger.Component("MediaService")

// MediaService resizes profile images and stores them in the object store.
type MediaService struct {
	store storage.ObjectStore
}

// NewMediaService accepts a nil store; uploads then fail with ErrUploadsDisabled.
func NewMediaService(store storage.ObjectStore) *MediaService {
	return &MediaService{store: store}
}

func (s *MediaService) Enabled() bool {
	return s != nil && s.store != nil
}

// Upload enforces size/type, crops to the kind's dimensions as JPEG and stores it.
func (s *MediaService) Upload(ctx context.Context, kind model.ImageKind, file multipart.File, header *multipart.FileHeader) (*model.UploadResult, error) {
	if !s.Enabled() {
		return nil, model.ErrUploadsDisabled
	}

	width, height, folder := model.AvatarWidth, model.AvatarHeight, model.AvatarFolder
	if kind == model.ImageHeader {
		width, height, folder = model.HeaderWidth, model.HeaderHeight, model.HeaderFolder
	}

	data, err := readAndValidateImage(file, header, model.MaxImageSizeBytes)
	if err != nil {
		return nil, err
	}

	jpegBytes, err := resizeToJPEG(data, width, height, jpegQuality)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s/%s%s", folder, uuid.NewString(), model.ImageExt)
	if err := s.store.Put(ctx, key, jpegBytes, model.ContentTypeJPEG, model.ImageCacheControl); err != nil {
		return nil, err
	}

	mediaLog.Info().Str("key", key).Int("bytes", len(jpegBytes)).Msg("Image uploaded")
	return &model.UploadResult{URL: s.store.URL(key), Key: key}, nil
}

// Delete removes a previously uploaded image. A nil or empty key is a no-op,
// so default images are never touched.
func (s *MediaService) Delete(ctx context.Context, key *string) error {
	if !s.Enabled() || key == nil || *key == "" {
		return nil
	}
	return s.store.Delete(ctx, *key)
}

// readAndValidateImage loads the upload into memory with size and type checks.
func readAndValidateImage(file multipart.File, header *multipart.FileHeader, maxSize int64) ([]byte, error) {
	if header.Size > maxSize {
		return nil, model.ErrFileTooLarge
	}

	data, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > maxSize {
		return nil, model.ErrFileTooLarge
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" && len(data) > 0 {
		contentType = http.DetectContentType(data[:min(len(data), 512)])
	}
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	if !model.IsAllowedImageType(contentType) {
		return nil, model.ErrInvalidImageType
	}

	return data, nil
}

// resizeToJPEG center-crops to the target size and encodes as JPEG.
func resizeToJPEG(data []byte, width, height, quality int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidImageType, err)
	}

	resized := imaging.Fill(img, width, height, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

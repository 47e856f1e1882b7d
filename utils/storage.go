package utils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/disintegration/imaging"
	"google.golang.org/api/option"
)

const (
	MaxAttachmentBytes int64 = 5 * 1024 * 1024
	thumbnailWidth           = 200
)

var attachmentMimeTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       true,
	"text/plain; charset=utf-8": true,
	"image/jpeg":                true,
	"image/png":                 true,
}

// ObjectStorage stores uploaded files and returns a URL the browser can fetch.
type ObjectStorage interface {
	Put(ctx context.Context, objectKey string, data []byte, contentType string) (string, error)
}

// GCSStorage writes objects to the GCS_BUCKET bucket.
type GCSStorage struct {
	Bucket string
}

func NewGCSStorage() (*GCSStorage, error) {
	bucket := strings.TrimSpace(os.Getenv("GCS_BUCKET"))
	if bucket == "" {
		return nil, errors.New("GCS_BUCKET is required")
	}
	return &GCSStorage{Bucket: bucket}, nil
}

// uses ADC unless GCS_CREDENTIALS_JSON is set
func getGoogleClient(ctx context.Context) (*storage.Client, error) {
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		return storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
	}
	return storage.NewClient(ctx)
}

func (s *GCSStorage) Put(ctx context.Context, objectKey string, data []byte, contentType string) (string, error) {
	client, err := getGoogleClient(ctx)
	if err != nil {
		return "", err
	}
	defer client.Close()

	wc := client.Bucket(s.Bucket).Object(objectKey).NewWriter(ctx)
	wc.ContentType = contentType
	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return "", fmt.Errorf("failed to upload to Google Cloud Storage: %w", err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("failed to close writer: %w", err)
	}
	return BuildObjectAccessURL(s.Bucket, objectKey), nil
}

func BuildObjectAccessURL(bucket, objectKey string) string {
	if base := strings.TrimSpace(os.Getenv("STORAGE_ACCESS_BASE_URL")); base != "" {
		return strings.TrimRight(base, "/") + "/" + objectKey
	}
	return "https://storage.googleapis.com/" + bucket + "/" + objectKey
}

// DetectAttachmentType sniffs data and rejects anything outside the allowed attachment types.
func DetectAttachmentType(fileName string, data []byte) (string, error) {
	if int64(len(data)) > MaxAttachmentBytes {
		return "", errors.New("file size exceeds 5MB limit")
	}
	mimeType := http.DetectContentType(data)
	if mimeType == "application/zip" {
		switch strings.ToLower(path.Ext(fileName)) {
		case ".docx":
			mimeType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
		case ".xlsx":
			mimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		}
	}
	if !attachmentMimeTypes[mimeType] {
		return "", fmt.Errorf("unsupported file type: %s", mimeType)
	}
	return mimeType, nil
}

func IsImageType(mimeType string) bool {
	return mimeType == "image/jpeg" || mimeType == "image/png"
}

// MakeThumbnail scales an image to 200px wide and re-encodes it as JPEG.
func MakeThumbnail(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	thumbnail := imaging.Resize(img, thumbnailWidth, 0, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumbnail, imaging.JPEG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func ThumbnailObjectKey(objectKey string) string {
	return path.Join(path.Dir(objectKey), "thumbnails", path.Base(objectKey))
}

package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"murmur/internal/config"
	"murmur/internal/models"

	"github.com/google/uuid"
	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder
)

const (
	DefaultUploadDir   = "uploads"
	DefaultUploadMaxMB = 5

	// UploadURLPrefix is where stored images are served from.
	UploadURLPrefix = "/uploads"

	maxNameAttempts = 5
)

var extByFormat = map[string]string{
	"jpeg": ".jpg",
	"png":  ".png",
	"gif":  ".gif",
	"webp": ".webp",
	"bmp":  ".bmp",
	"tiff": ".tiff",
}

var allowedExt = map[string]string{
	".jpg":  "jpeg",
	".jpeg": "jpeg",
	".png":  "png",
	".gif":  "gif",
	".webp": "webp",
	".bmp":  "bmp",
	".tif":  "tiff",
	".tiff": "tiff",
}

// UploadInput is a single uploaded file.
type UploadInput struct {
	Filename string
	Content  []byte
}

// UploadService stores tweet images on local disk.
type UploadService struct {
	dir      string
	maxBytes int64
	now      func() time.Time
}

func NewUploadService(cfg *config.Config) *UploadService {
	dir := DefaultUploadDir
	maxMB := DefaultUploadMaxMB
	if cfg != nil {
		if cfg.UploadDir != "" {
			dir = cfg.UploadDir
		}
		if cfg.UploadMaxMB > 0 {
			maxMB = cfg.UploadMaxMB
		}
	}
	return &UploadService{dir: dir, maxBytes: int64(maxMB) * 1024 * 1024, now: time.Now}
}

// Dir is the directory files are written to.
func (s *UploadService) Dir() string { return s.dir }

// MaxBytes is the largest accepted upload.
func (s *UploadService) MaxBytes() int64 { return s.maxBytes }

// Save validates that in is a decodable image and writes it under a generated
// name "<unix-millis>-<random><ext>". It returns the public relative path.
func (s *UploadService) Save(_ context.Context, in UploadInput) (string, error) {
	if len(in.Content) == 0 {
		return "", models.NewValidationError(models.ReasonInvalidImage, "Uploaded file is empty")
	}
	if int64(len(in.Content)) > s.maxBytes {
		return "", models.NewValidationError(models.ReasonInvalidImage,
			fmt.Sprintf("File too large (max %dMB)", s.maxBytes/(1024*1024)))
	}

	sniffed := http.DetectContentType(in.Content)
	if !strings.HasPrefix(sniffed, "image/") && sniffed != "application/octet-stream" {
		return "", models.NewValidationError(models.ReasonInvalidImage, "Invalid image type")
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(in.Content))
	if err != nil {
		return "", models.NewValidationError(models.ReasonInvalidImage, "Invalid image file")
	}

	ext := strings.ToLower(filepath.Ext(in.Filename))
	if allowedExt[ext] != format {
		ext = extByFormat[format]
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", models.NewInternalError(err)
	}

	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		name := s.generateName(ext)
		f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", models.NewInternalError(err)
		}
		if _, err := f.Write(in.Content); err != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
			return "", models.NewInternalError(err)
		}
		if err := f.Close(); err != nil {
			_ = os.Remove(f.Name())
			return "", models.NewInternalError(err)
		}
		return path.Join(UploadURLPrefix, name), nil
	}
	return "", models.NewInternalError(errors.New("could not allocate a unique upload name"))
}

// Remove deletes a file previously returned by Save. Unknown paths are ignored.
func (s *UploadService) Remove(publicPath string) {
	name := strings.TrimPrefix(publicPath, UploadURLPrefix+"/")
	if name == publicPath || name == "" || strings.ContainsAny(name, `/\`) {
		return
	}
	_ = os.Remove(filepath.Join(s.dir, name))
}

func (s *UploadService) generateName(ext string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%d-%s%s", s.now().UnixMilli(), suffix, ext)
}

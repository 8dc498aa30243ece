package media

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/isdelr/tweeter-be/internal/models"
)

// ProfileImageDir is the directory under the media root that holds avatars.
const ProfileImageDir = "profile_images"

var (
	ErrTooLarge    = errors.New("file is too large")
	ErrUnsupported = errors.New("upload a valid image. The file you uploaded was either not an image or a corrupted image")
)

var imageExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Storage saves uploaded files under a root directory.
type Storage struct {
	root     string
	maxBytes int64
}

// NewStorage creates the profile image directory if needed.
func NewStorage(root string, maxBytes int64) (*Storage, error) {
	if err := os.MkdirAll(filepath.Join(root, ProfileImageDir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}
	return &Storage{root: root, maxBytes: maxBytes}, nil
}

// Root is the directory served under the media URL.
func (s *Storage) Root() string {
	return s.root
}

// MaxBytes is the upload size limit.
func (s *Storage) MaxBytes() int64 {
	return s.maxBytes
}

// SaveProfileImage sniffs the content type, writes the file under a random name
// and returns its path relative to the media root.
func (s *Storage) SaveProfileImage(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > s.maxBytes {
		return "", ErrTooLarge
	}

	ext, ok := imageExtensions[http.DetectContentType(data)]
	if !ok {
		return "", ErrUnsupported
	}

	rel := ProfileImageDir + "/" + uuid.New().String() + ext
	f, err := os.OpenFile(filepath.Join(s.root, filepath.FromSlash(rel)), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, bytes.NewReader(data)); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return rel, nil
}

// Remove deletes a previously saved file. The default image and paths outside
// the profile image directory are left alone.
func (s *Storage) Remove(rel string) error {
	if rel == "" || rel == models.DefaultProfileImage {
		return nil
	}
	clean := filepath.ToSlash(filepath.Clean(rel))
	if !strings.HasPrefix(clean, ProfileImageDir+"/") || strings.Contains(clean, "..") {
		return nil
	}
	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(clean)))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

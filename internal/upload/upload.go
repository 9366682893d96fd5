package upload

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Rana718/petquest/internal/logging"
)

type Kind string

const (
	KindMedia Kind = "media"
	KindFile  Kind = "file"
)

func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindMedia, KindFile:
		return Kind(s), true
	}
	return "", false
}

// Error reports a rejected or failed upload. Rejected is true when the
// request itself was at fault (size or content type).
type Error struct {
	Kind     Kind
	Name     string
	Reason   string
	Rejected bool
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("upload %s %q: %s", e.Kind, e.Name, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Store writes uploaded files under dir and hands back the URL they are
// served from.
type Store struct {
	dir       string
	publicURL string
	maxBytes  int64
	logger    *zap.Logger
}

func NewStore(dir, publicURL string, maxBytes int64, logger *zap.Logger) *Store {
	if publicURL == "" {
		publicURL = "/uploads"
	}
	return &Store{
		dir:       dir,
		publicURL: strings.TrimSuffix(publicURL, "/"),
		maxBytes:  maxBytes,
		logger:    logging.OrNop(logger),
	}
}

func (s *Store) Dir() string {
	return s.dir
}

// Save copies the file to a fresh uuid-based name and returns its URL.
func (s *Store) Save(ctx context.Context, kind Kind, fh *multipart.FileHeader) (string, error) {
	if fh == nil {
		return "", &Error{Kind: kind, Reason: "no file", Rejected: true}
	}
	if s.maxBytes > 0 && fh.Size > s.maxBytes {
		return "", &Error{
			Kind:     kind,
			Name:     fh.Filename,
			Reason:   fmt.Sprintf("file is %d bytes, limit is %d", fh.Size, s.maxBytes),
			Rejected: true,
		}
	}

	contentType := fh.Header.Get("Content-Type")
	if kind == KindMedia && !isMedia(contentType) {
		return "", &Error{Kind: kind, Name: fh.Filename, Reason: fmt.Sprintf("content type %q is not an image or video", contentType), Rejected: true}
	}

	if err := ctx.Err(); err != nil {
		return "", &Error{Kind: kind, Name: fh.Filename, Reason: "cancelled", Err: err}
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", &Error{Kind: kind, Name: fh.Filename, Reason: "failed to create upload directory", Err: err}
	}

	name := uuid.NewString() + strings.ToLower(filepath.Ext(fh.Filename))
	if err := s.copy(fh, filepath.Join(s.dir, name)); err != nil {
		return "", &Error{Kind: kind, Name: fh.Filename, Reason: "failed to store file", Err: err}
	}

	url := path.Join(s.publicURL, name)
	if strings.Contains(s.publicURL, "://") {
		url = s.publicURL + "/" + name
	}
	s.logger.Info("file uploaded", zap.String("kind", string(kind)), zap.String("name", fh.Filename), zap.Int64("size", fh.Size), zap.String("url", url))
	return url, nil
}

func (s *Store) copy(fh *multipart.FileHeader, dst string) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}

func isMedia(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	return strings.HasPrefix(ct, "image/") || strings.HasPrefix(ct, "video/")
}

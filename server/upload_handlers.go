package server

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const (
	maxUploadSize = 10 << 20
	presignTTL    = 10 * time.Minute
)

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

type pendingUpload struct {
	sig         string
	contentType string
	expiresAt   time.Time
}

// uploadStore hands out one-time upload slots and keeps the files on disk.
type uploadStore struct {
	dir string
	now func() time.Time

	mu      sync.Mutex
	pending map[string]pendingUpload
}

func newUploadStore(dir string) (*uploadStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &uploadStore{dir: dir, now: time.Now, pending: make(map[string]pendingUpload)}, nil
}

func (us *uploadStore) reserve(contentType string) (key, sig string, expiresAt time.Time, err error) {
	ext, ok := imageExtensions[strings.ToLower(contentType)]
	if !ok {
		return "", "", time.Time{}, fmt.Errorf("%w: unsupported content type %q", ErrBadRequest, contentType)
	}

	key = uuid.NewString() + ext
	sig = uuid.NewString()
	expiresAt = us.now().Add(presignTTL)

	us.mu.Lock()
	defer us.mu.Unlock()

	for k, p := range us.pending {
		if us.now().After(p.expiresAt) {
			delete(us.pending, k)
		}
	}
	us.pending[key] = pendingUpload{sig: sig, contentType: contentType, expiresAt: expiresAt}
	return key, sig, expiresAt, nil
}

var (
	errBadSignature = &HTTPError{Code: http.StatusForbidden, Message: "Invalid or expired upload signature"}
	errWrongType    = &HTTPError{Code: http.StatusBadRequest, Message: "Content type does not match the signed upload"}
)

// claim consumes the slot for key if sig matches, it has not expired and
// contentType (when given) is the one it was signed for. A rejected claim
// leaves the slot usable.
func (us *uploadStore) claim(key, sig, contentType string) error {
	us.mu.Lock()
	defer us.mu.Unlock()

	p, ok := us.pending[key]
	if !ok || p.sig != sig || us.now().After(p.expiresAt) {
		return errBadSignature
	}
	if contentType != "" && !strings.EqualFold(contentType, p.contentType) {
		return errWrongType
	}
	delete(us.pending, key)
	return nil
}

func (us *uploadStore) path(key string) (string, bool) {
	if key == "" || key != filepath.Base(key) || strings.HasPrefix(key, ".") {
		return "", false
	}
	return filepath.Join(us.dir, key), true
}

type presignRequest struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
}

type presignResponse struct {
	UploadURL string    `json:"uploadUrl"`
	FileURL   string    `json:"fileUrl"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *Server) presignUpload(w http.ResponseWriter, r *http.Request) {
	var req presignRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, err)
		return
	}

	key, sig, expiresAt, err := s.uploads.reserve(req.ContentType)
	if err != nil {
		handleError(w, err)
		return
	}

	base := s.publicURL(r)
	fileURL := base + "/storage/" + key

	s.logger.Debug("upload slot reserved", "key", key, "file", req.FileName, "user", userFromContext(r))
	writeJSON(w, http.StatusOK, presignResponse{
		UploadURL: fileURL + "?sig=" + sig,
		FileURL:   fileURL,
		Key:       key,
		ExpiresAt: expiresAt,
	})
}

// putObject accepts the bytes for a reserved slot. The signature in the
// query string is the only credential.
func (s *Server) putObject(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	dst, ok := s.uploads.path(key)
	if !ok {
		handleError(w, ErrNotFound)
		return
	}

	if err := s.uploads.claim(key, r.URL.Query().Get("sig"), r.Header.Get("Content-Type")); err != nil {
		handleError(w, err)
		return
	}

	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	n, err := io.Copy(f, http.MaxBytesReader(w, r.Body, maxUploadSize))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dst)
		handleError(w, &HTTPError{Code: http.StatusBadRequest, Message: "Upload failed", Err: err})
		return
	}

	s.logger.Info("stored upload", "key", key, "bytes", n)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) getObject(w http.ResponseWriter, r *http.Request) {
	dst, ok := s.uploads.path(mux.Vars(r)["key"])
	if !ok {
		handleError(w, ErrNotFound)
		return
	}
	if _, err := os.Stat(dst); err != nil {
		handleError(w, ErrNotFound)
		return
	}
	http.ServeFile(w, r, dst)
}

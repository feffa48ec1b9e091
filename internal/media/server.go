// Package media serves attachment uploads and downloads.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"

	"slackclone/internal/common"
	"slackclone/internal/dbmongo"
)

// multipart framing allowance on top of the file limit
const formOverhead = 1 << 20

// Store is the attachment backend; *dbmongo.MediaStorage implements it.
type Store interface {
	UploadFile(ctx context.Context, filename, mimeType, uploaderID string, content io.Reader) (*dbmongo.MediaFile, error)
	DownloadFile(ctx context.Context, fileID string) (io.ReadCloser, *dbmongo.MediaFile, error)
}

type HTTPServer struct {
	storage  Store
	maxBytes int64
	baseURL  string
}

func NewHTTPServer(storage Store, maxBytes int64, baseURL string) *HTTPServer {
	if baseURL == "" {
		baseURL = "/media/"
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &HTTPServer{storage: storage, maxBytes: maxBytes, baseURL: baseURL}
}

// UploadResponse is returned by POST /api/uploads.
type UploadResponse struct {
	ID       string          `json:"id"`
	Filename string          `json:"filename"`
	Size     int64           `json:"size"`
	FileType common.FileType `json:"fileType"`
	URL      string          `json:"url"`
}

func (s *HTTPServer) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/uploads", s.upload).Methods(http.MethodPost)
	router.HandleFunc("/api/uploads", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodOptions)
	router.HandleFunc("/media/{fileId}", s.serveFile).Methods(http.MethodGet)
}

func (s *HTTPServer) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBytes+formOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.tooLarge(w)
			return
		}
		common.WriteError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	if header.Size > s.maxBytes {
		s.tooLarge(w)
		return
	}

	filename := filepath.Base(header.Filename)
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		if guessed := mime.TypeByExtension(filepath.Ext(filename)); guessed != "" {
			mimeType = guessed
		}
	}

	stored, err := s.storage.UploadFile(r.Context(), filename, mimeType, r.FormValue("userId"), file)
	if err != nil {
		log.Printf("❌ upload of %s failed [%s]: %v", filename, common.RequestIDFrom(r.Context()), err)
		common.WriteError(w, http.StatusInternalServerError, "Failed to upload file")
		return
	}

	common.WriteJSON(w, http.StatusCreated, UploadResponse{
		ID:       stored.ID,
		Filename: stored.Filename,
		Size:     stored.Size,
		FileType: stored.FileType,
		URL:      s.baseURL + stored.ID,
	})
}

func (s *HTTPServer) tooLarge(w http.ResponseWriter) {
	common.WriteError(w, http.StatusRequestEntityTooLarge,
		fmt.Sprintf("File too large (max %s)", humanize.Bytes(uint64(s.maxBytes))))
}

func (s *HTTPServer) serveFile(w http.ResponseWriter, r *http.Request) {
	fileID := mux.Vars(r)["fileId"]

	reader, mediaFile, err := s.storage.DownloadFile(r.Context(), fileID)
	if errors.Is(err, common.ErrNotFound) {
		common.WriteError(w, http.StatusNotFound, "File not found")
		return
	}
	if err != nil {
		log.Printf("❌ download of %s failed: %v", fileID, err)
		common.WriteError(w, http.StatusInternalServerError, "Failed to read file")
		return
	}
	defer reader.Close()

	ctype, disposition := servePolicy(contentType(mediaFile))
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", mediaFile.Size))
	w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": mediaFile.Filename}))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; sandbox")

	if _, err := io.Copy(w, reader); err != nil {
		log.Printf("Error streaming file: %v", err)
	}
}

// servePolicy decides how a stored type is sent back. Only images, video and
// audio render inline; everything else, SVG included, downloads as opaque
// bytes so an uploaded page or script never runs on the API origin.
func servePolicy(stored string) (ctype, disposition string) {
	base, _, err := mime.ParseMediaType(stored)
	if err != nil {
		return "application/octet-stream", "attachment"
	}
	if base == "image/svg+xml" {
		return "application/octet-stream", "attachment"
	}
	if strings.HasPrefix(base, "image/") || strings.HasPrefix(base, "video/") || strings.HasPrefix(base, "audio/") {
		return base, "inline"
	}
	return "application/octet-stream", "attachment"
}

func contentType(f *dbmongo.MediaFile) string {
	if f.MimeType != "" {
		return f.MimeType
	}
	ext := strings.ToLower(filepath.Ext(f.Filename))
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	default:
		return "application/octet-stream"
	}
}

package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"slackclone/internal/common"
	"slackclone/internal/dbmongo"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) UploadFile(ctx context.Context, filename, mimeType, uploaderID string, content io.Reader) (*dbmongo.MediaFile, error) {
	data, _ := io.ReadAll(content)
	args := m.Called(filename, mimeType, uploaderID, string(data))
	f, _ := args.Get(0).(*dbmongo.MediaFile)
	return f, args.Error(1)
}

func (m *MockStore) DownloadFile(ctx context.Context, fileID string) (io.ReadCloser, *dbmongo.MediaFile, error) {
	args := m.Called(fileID)
	rc, _ := args.Get(0).(io.ReadCloser)
	f, _ := args.Get(1).(*dbmongo.MediaFile)
	return rc, f, args.Error(2)
}

func newRouter(store Store, limit int64) *mux.Router {
	router := mux.NewRouter()
	NewHTTPServer(store, limit, "/media").RegisterRoutes(router)
	return router
}

func multipartBody(t *testing.T, field, filename, contentType string, content []byte, userID string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	if userID != "" {
		require.NoError(t, mw.WriteField("userId", userID))
	}
	if field != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func TestUpload(t *testing.T) {
	tests := []struct {
		name       string
		field      string
		content    []byte
		limit      int64
		setupMock  func(*MockStore)
		wantStatus int
		wantBody   string
	}{
		{
			name:    "stored",
			field:   "file",
			content: []byte("png-bytes"),
			limit:   1024,
			setupMock: func(m *MockStore) {
				m.On("UploadFile", "cat.png", "image/png", "u1", "png-bytes").
					Return(&dbmongo.MediaFile{ID: "abc123", Filename: "cat.png", Size: 9, FileType: common.FileTypeImage}, nil)
			},
			wantStatus: http.StatusCreated,
			wantBody:   `{"id":"abc123","filename":"cat.png","size":9,"fileType":"image","url":"/media/abc123"}`,
		},
		{
			name:       "missing file",
			field:      "",
			limit:      1024,
			setupMock:  func(m *MockStore) {},
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"No file uploaded"}`,
		},
		{
			name:       "too large",
			field:      "file",
			content:    bytes.Repeat([]byte("x"), 2048),
			limit:      1024,
			setupMock:  func(m *MockStore) {},
			wantStatus: http.StatusRequestEntityTooLarge,
			wantBody:   `{"error":"File too large (max 1.0 kB)"}`,
		},
		{
			name:    "storage failure",
			field:   "file",
			content: []byte("png-bytes"),
			limit:   1024,
			setupMock: func(m *MockStore) {
				m.On("UploadFile", "cat.png", "image/png", "u1", "png-bytes").
					Return(nil, errors.New("gridfs down"))
			},
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"Failed to upload file"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(MockStore)
			tt.setupMock(store)

			body, ct := multipartBody(t, tt.field, "cat.png", "image/png", tt.content, "u1")
			req := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
			req.Header.Set("Content-Type", ct)
			rr := httptest.NewRecorder()

			newRouter(store, tt.limit).ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.JSONEq(t, tt.wantBody, rr.Body.String())
			store.AssertExpectations(t)
		})
	}
}

func TestServeFile(t *testing.T) {
	t.Run("streams file", func(t *testing.T) {
		store := new(MockStore)
		store.On("DownloadFile", "abc123").Return(
			io.NopCloser(strings.NewReader("hello")),
			&dbmongo.MediaFile{ID: "abc123", Filename: "note.txt", Size: 5, MimeType: "text/plain"},
			nil,
		)

		rr := httptest.NewRecorder()
		newRouter(store, 1024).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/media/abc123", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "hello", rr.Body.String())
		assert.Equal(t, "application/octet-stream", rr.Header().Get("Content-Type"))
		assert.Equal(t, "5", rr.Header().Get("Content-Length"))
		assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	})

	t.Run("images render inline", func(t *testing.T) {
		store := new(MockStore)
		store.On("DownloadFile", "img1").Return(
			io.NopCloser(strings.NewReader("png")),
			&dbmongo.MediaFile{ID: "img1", Filename: "cat.png", Size: 3, MimeType: "image/png"},
			nil,
		)

		rr := httptest.NewRecorder()
		newRouter(store, 1024).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/media/img1", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
		assert.Equal(t, "inline; filename=cat.png", rr.Header().Get("Content-Disposition"))
		assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	})

	t.Run("html is downloaded, never rendered", func(t *testing.T) {
		store := new(MockStore)
		store.On("DownloadFile", "page1").Return(
			io.NopCloser(strings.NewReader("<script>alert(1)</script>")),
			&dbmongo.MediaFile{ID: "page1", Filename: "x.html", Size: 25, MimeType: "text/html"},
			nil,
		)

		rr := httptest.NewRecorder()
		newRouter(store, 1024).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/media/page1", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "application/octet-stream", rr.Header().Get("Content-Type"))
		assert.Equal(t, "attachment; filename=x.html", rr.Header().Get("Content-Disposition"))
		assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
		assert.Contains(t, rr.Header().Get("Content-Security-Policy"), "sandbox")
	})

	t.Run("not found", func(t *testing.T) {
		store := new(MockStore)
		store.On("DownloadFile", "nope").Return(nil, nil, common.ErrNotFound)

		rr := httptest.NewRecorder()
		newRouter(store, 1024).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/media/nope", nil))

		assert.Equal(t, http.StatusNotFound, rr.Code)
		var body common.ErrorResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, "File not found", body.Error)
	})
}

func TestServePolicy(t *testing.T) {
	tests := []struct {
		stored      string
		ctype       string
		disposition string
	}{
		{"image/jpeg", "image/jpeg", "inline"},
		{"video/mp4", "video/mp4", "inline"},
		{"audio/ogg; codecs=opus", "audio/ogg", "inline"},
		{"image/svg+xml", "application/octet-stream", "attachment"},
		{"text/html; charset=utf-8", "application/octet-stream", "attachment"},
		{"application/javascript", "application/octet-stream", "attachment"},
		{"application/pdf", "application/octet-stream", "attachment"},
		{"not a type", "application/octet-stream", "attachment"},
	}
	for _, tt := range tests {
		ctype, disposition := servePolicy(tt.stored)
		assert.Equal(t, tt.ctype, ctype, tt.stored)
		assert.Equal(t, tt.disposition, disposition, tt.stored)
	}
}

func TestContentType(t *testing.T) {
	tests := []struct {
		file     dbmongo.MediaFile
		expected string
	}{
		{dbmongo.MediaFile{Filename: "a.bin", MimeType: "application/pdf"}, "application/pdf"},
		{dbmongo.MediaFile{Filename: "a.JPG"}, "image/jpeg"},
		{dbmongo.MediaFile{Filename: "a.webm"}, "video/webm"},
		{dbmongo.MediaFile{Filename: "a"}, "application/octet-stream"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, contentType(&tt.file), tt.file.Filename)
	}
}

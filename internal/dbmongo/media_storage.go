package dbmongo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"slackclone/internal/common"
)

type MediaStorage struct {
	gridFS *gridfs.Bucket
}

func NewMediaStorage(mongoClient *MongoClient) *MediaStorage {
	return &MediaStorage{
		gridFS: mongoClient.GridFS,
	}
}

// MediaFile describes a stored attachment.
type MediaFile struct {
	ID         string          `json:"id"` // GridFS ObjectID, hex
	Filename   string          `json:"filename"`
	Size       int64           `json:"size"`
	FileType   common.FileType `json:"fileType"`
	MimeType   string          `json:"mimeType"`
	UploadedBy string          `json:"uploadedBy,omitempty"`
	UploadedAt time.Time       `json:"uploadedAt"`
}

func (ms *MediaStorage) UploadFile(ctx context.Context, filename, mimeType, uploaderID string, content io.Reader) (*MediaFile, error) {
	fileType := common.DetectFileType(mimeType)
	uploadedAt := time.Now().UTC()

	metadata := bson.M{
		"file_type":   fileType.String(),
		"mime_type":   mimeType,
		"uploaded_by": uploaderID,
		"uploaded_at": uploadedAt,
	}

	opts := options.GridFSUpload().SetMetadata(metadata)
	stream, err := ms.gridFS.OpenUploadStream(filename, opts)
	if err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = stream.SetWriteDeadline(deadline)
	}

	size, err := io.Copy(stream, content)
	if err != nil {
		_ = stream.Abort()
		return nil, fmt.Errorf("file copy failed: %w", err)
	}
	// chunks are only committed on Close
	if err := stream.Close(); err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}

	return &MediaFile{
		ID:         stream.FileID.(primitive.ObjectID).Hex(),
		Filename:   filename,
		Size:       size,
		FileType:   fileType,
		MimeType:   mimeType,
		UploadedBy: uploaderID,
		UploadedAt: uploadedAt,
	}, nil
}

// DownloadFile opens the attachment for reading. Unknown or malformed ids
// are reported as common.ErrNotFound. The caller closes the reader.
func (ms *MediaStorage) DownloadFile(ctx context.Context, fileID string) (io.ReadCloser, *MediaFile, error) {
	objectID, err := primitive.ObjectIDFromHex(fileID)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid file ID %q: %w", fileID, common.ErrNotFound)
	}

	stream, err := ms.gridFS.OpenDownloadStream(objectID)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return nil, nil, fmt.Errorf("file %s: %w", fileID, common.ErrNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("download failed: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = stream.SetReadDeadline(deadline)
	}

	var metadata bson.M
	fileInfo := stream.GetFile()
	if fileInfo.Metadata != nil {
		if err := bson.Unmarshal(fileInfo.Metadata, &metadata); err != nil {
			stream.Close()
			return nil, nil, fmt.Errorf("bad metadata for %s: %w", fileID, err)
		}
	}

	return stream, mediaFileFromMetadata(fileID, fileInfo.Name, fileInfo.Length, fileInfo.UploadDate, metadata), nil
}

func (ms *MediaStorage) DeleteFile(ctx context.Context, fileID string) error {
	objectID, err := primitive.ObjectIDFromHex(fileID)
	if err != nil {
		return fmt.Errorf("invalid file ID %q: %w", fileID, common.ErrNotFound)
	}
	if err := ms.gridFS.Delete(objectID); err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return fmt.Errorf("file %s: %w", fileID, common.ErrNotFound)
		}
		return fmt.Errorf("delete failed: %w", err)
	}
	return nil
}

func mediaFileFromMetadata(id, name string, length int64, uploaded time.Time, metadata bson.M) *MediaFile {
	fileType := common.FileType(getStringFromMap(metadata, "file_type"))
	if !fileType.IsValid() {
		fileType = common.FileTypeFile
	}
	return &MediaFile{
		ID:         id,
		Filename:   name,
		Size:       length,
		FileType:   fileType,
		MimeType:   getStringFromMap(metadata, "mime_type"),
		UploadedBy: getStringFromMap(metadata, "uploaded_by"),
		UploadedAt: uploaded,
	}
}

func getStringFromMap(m bson.M, key string) string {
	if m == nil {
		return ""
	}
	if val, ok := m[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

package common

import "strings"

// FileType classifies an uploaded attachment by its MIME type.
type FileType string

const (
	FileTypeImage FileType = "image"
	FileTypeVideo FileType = "video"
	FileTypeAudio FileType = "audio"
	FileTypeFile  FileType = "file"
)

func (ft FileType) String() string {
	return string(ft)
}

func (ft FileType) IsValid() bool {
	switch ft {
	case FileTypeImage, FileTypeVideo, FileTypeAudio, FileTypeFile:
		return true
	}
	return false
}

// DetectFileType maps a MIME type to a FileType. Anything unrecognised is a
// plain file.
func DetectFileType(mimeType string) FileType {
	lowerMimeType := strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case strings.HasPrefix(lowerMimeType, "image/"):
		return FileTypeImage
	case strings.HasPrefix(lowerMimeType, "video/"):
		return FileTypeVideo
	case strings.HasPrefix(lowerMimeType, "audio/"):
		return FileTypeAudio
	default:
		return FileTypeFile
	}
}

package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/models"
)

// Upload limits.
const (
	MaxMediaBytes    int64 = 64 << 20
	MaxTemplateBytes int64 = 5 << 20
)

var (
	// ErrUploadTooLarge indicates the payload exceeded the configured limit.
	ErrUploadTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrUploadEmpty indicates a zero-length upload.
	ErrUploadEmpty = errors.New("file is empty")
	// ErrUploadScanFailed indicates validation of an archive failed.
	ErrUploadScanFailed = errors.New("file scanning failed")
)

// FileStorage abstracts upload destinations.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// FileRemover is implemented by storages that can delete a file by the URL Upload returned.
type FileRemover interface {
	Remove(ctx context.Context, url string) error
}

// inspectedFile is an upload whose content type has been sniffed.
type inspectedFile struct {
	Name string
	Mime string
	Data []byte
}

func inspectUpload(file dto.MediaFile, maxSize int64) (inspectedFile, error) {
	if len(file.Data) == 0 {
		return inspectedFile{}, ErrUploadEmpty
	}
	if int64(len(file.Data)) > maxSize {
		return inspectedFile{}, ErrUploadTooLarge
	}

	detected := mimetype.Detect(file.Data)
	inspected := inspectedFile{
		Name: sanitizeFileName(file.Name),
		Mime: strings.ToLower(detected.String()),
		Data: file.Data,
	}

	if detected.Is("application/zip") || strings.Contains(inspected.Mime, "openxmlformats") {
		if err := scanArchive(file.Data, maxSize); err != nil {
			return inspectedFile{}, err
		}
	}
	return inspected, nil
}

// classifyMedia maps a lesson upload to the modality it fills.
func classifyMedia(file inspectedFile) (string, error) {
	switch {
	case strings.HasPrefix(file.Mime, "video/"):
		return models.ContentTypeVideo, nil
	case strings.HasPrefix(file.Mime, "application/pdf"):
		return models.ContentTypePDF, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMedia, file.Mime)
	}
}

// classifyTemplate maps an uploaded certificate template to its file type.
func classifyTemplate(file inspectedFile) (string, error) {
	ext := strings.ToLower(filepath.Ext(file.Name))
	switch {
	case strings.Contains(file.Mime, "wordprocessingml") || (strings.HasPrefix(file.Mime, "application/zip") && ext == ".docx"):
		return models.TemplateFileDOCX, nil
	case strings.HasPrefix(file.Mime, "text/html"):
		return models.TemplateFileHTML, nil
	case strings.HasPrefix(file.Mime, "text/plain"):
		if ext == ".html" || ext == ".htm" {
			return models.TemplateFileHTML, nil
		}
		return models.TemplateFilePlain, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrTemplateUnsupported, file.Mime)
	}
}

func scanArchive(payload []byte, maxSize int64) error {
	reader, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return ErrUploadScanFailed
	}
	var totalUncompressed uint64
	for _, f := range reader.File {
		totalUncompressed += f.UncompressedSize64
		if totalUncompressed > uint64(maxSize*20) {
			return fmt.Errorf("zip archive uncompressed size too large: %w", ErrUploadScanFailed)
		}
	}
	return nil
}

func sanitizeFileName(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	base = strings.ToLower(base)
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		if r == '-' || r == '_' {
			return r
		}
		return '-'
	}, base)
	base = strings.Trim(base, "-")
	if base == "" {
		base = fmt.Sprintf("upload-%d", time.Now().Unix())
	}
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = ".bin"
	}
	return base + ext
}

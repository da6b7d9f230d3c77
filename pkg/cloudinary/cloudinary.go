package cloudinary

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Service stores lesson media and certificate artifacts on Cloudinary.
type Service struct {
	client *cloudinary.Cloudinary
	folder string
	logger zerolog.Logger
}

// New constructs a Cloudinary service instance.
func New(cfg Config, logger zerolog.Logger) (*Service, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &Service{
		client: cld,
		folder: strings.Trim(cfg.Folder, "/"),
		logger: logger.With().Str("component", "cloudinary").Logger(),
	}, nil
}

// Sub returns a service writing below a nested folder, e.g. "certificates".
func (s *Service) Sub(folder string) *Service {
	clone := *s
	clone.folder = JoinFolder(s.folder, folder)
	return &clone
}

// Upload sends the file to Cloudinary and returns a secure URL. Non-media files
// (documents, archives) are stored as raw resources so the extension survives.
func (s *Service) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	params := uploader.UploadParams{
		Folder:       s.folder,
		PublicID:     BuildPublicID(name),
		ResourceType: ResourceType(name),
	}

	result, err := s.client.Upload.Upload(ctx, reader, params)
	if err != nil {
		return "", fmt.Errorf("failed to upload asset: %w", err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("failed to upload asset: %s", result.Error.Message)
	}

	s.logger.Info().
		Str("public_id", result.PublicID).
		Str("folder", s.folder).
		Int("bytes", result.Bytes).
		Msg("file uploaded to cloudinary")

	return result.SecureURL, nil
}

// Remove destroys the asset behind a URL previously returned by Upload.
func (s *Service) Remove(ctx context.Context, assetURL string) error {
	publicID, resourceType, err := ParseAssetURL(assetURL)
	if err != nil {
		return err
	}

	result, err := s.client.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: resourceType,
	})
	if err != nil {
		return fmt.Errorf("failed to remove asset: %w", err)
	}
	if result.Error.Message != "" {
		return fmt.Errorf("failed to remove asset: %s", result.Error.Message)
	}

	s.logger.Info().Str("public_id", publicID).Str("result", result.Result).Msg("file removed from cloudinary")
	return nil
}

// ParseAssetURL extracts the public id and resource type from a delivery URL of the
// form .../<resource_type>/upload/v<version>/<public_id>.<ext>. Raw assets keep
// their extension in the public id.
func ParseAssetURL(assetURL string) (publicID, resourceType string, err error) {
	parsed, err := url.Parse(assetURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid asset url: %w", err)
	}

	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	upload := -1
	for i, segment := range segments {
		if segment == "upload" && i > 0 {
			upload = i
			break
		}
	}
	if upload < 0 || upload+1 >= len(segments) {
		return "", "", fmt.Errorf("invalid asset url: %s", assetURL)
	}

	resourceType = segments[upload-1]
	rest := segments[upload+1:]
	if len(rest) > 1 && isVersion(rest[0]) {
		rest = rest[1:]
	}
	publicID = strings.Join(rest, "/")
	if resourceType != "raw" {
		publicID = strings.TrimSuffix(publicID, path.Ext(publicID))
	}
	if publicID == "" {
		return "", "", fmt.Errorf("invalid asset url: %s", assetURL)
	}
	return publicID, resourceType, nil
}

func isVersion(segment string) bool {
	if len(segment) < 2 || segment[0] != 'v' {
		return false
	}
	for _, r := range segment[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ResourceType picks the Cloudinary resource type for a file name.
func ResourceType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".pdf":
		return "image"
	case ".mp4", ".mov", ".webm", ".mkv":
		return "video"
	case "":
		return "auto"
	default:
		return "raw"
	}
}

// BuildPublicID derives a collision-free public id from the original file name.
// Raw resources keep their extension because Cloudinary does not append one.
func BuildPublicID(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '-'
	}, base)

	base = strings.Trim(base, "-")
	if base == "" {
		base = "upload"
	}

	id := fmt.Sprintf("%s-%s", base, uuid.NewString()[:8])
	if ResourceType(name) == "raw" {
		id += ext
	}
	return id
}

// JoinFolder joins folder segments, dropping empty ones.
func JoinFolder(parts ...string) string {
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.Trim(part, "/ "); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return path.Join(cleaned...)
}

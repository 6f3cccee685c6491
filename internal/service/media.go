package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"log/slog"
	"mime"
	"net/url"
	"path"
	"strings"

	"github.com/sakif/projectshelf/internal/apperror"
	"github.com/sakif/projectshelf/internal/media"
	"github.com/sakif/projectshelf/internal/metrics"
)

// allowedExtensions lists the upload formats accepted by the relay, with the
// MIME type assumed when neither the client nor the system table knows one.
var allowedExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
}

// videoProviders maps the allowlisted video domains to their provider name.
// Subdomains (www., m., player.) match too.
var videoProviders = map[string]string{
	"youtube.com": "youtube",
	"youtu.be":    "youtube",
	"vimeo.com":   "vimeo",
}

const msgMediaUnavailable = "Media uploads are not configured on this server"

// UploadInput is one file received from a client.
type UploadInput struct {
	Filename    string
	ContentType string
	Size        int64
	Body        []byte
}

// VideoInput registers a hosted video, optionally with a thumbnail sent as a
// base64 data URI ("data:image/png;base64,...").
type VideoInput struct {
	URL       string
	Thumbnail string
}

// ExternalVideo is a registered video reference.
type ExternalVideo struct {
	URL          string       `json:"url"`
	ResourceType string       `json:"resource_type"`
	Provider     string       `json:"provider"`
	Thumbnail    *media.Asset `json:"thumbnail,omitempty"`
}

// MediaService validates media and relays it to the configured asset host.
// host is nil when no host is configured; every operation that needs it then
// fails with apperror.ErrUnavailable.
type MediaService struct {
	host    media.Host
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewMediaService(host media.Host, m *metrics.Metrics, logger *slog.Logger) *MediaService {
	return &MediaService{host: host, metrics: m, logger: logger}
}

// Upload checks the file extension, infers the MIME type from it when the
// client sent none, and relays the file.
func (s *MediaService) Upload(ctx context.Context, in UploadInput) (*media.Asset, error) {
	if s.host == nil {
		return nil, apperror.Unavailable(msgMediaUnavailable)
	}

	ext := strings.ToLower(path.Ext(in.Filename))
	fallbackType, ok := allowedExtensions[ext]
	if !ok {
		return nil, apperror.ValidationFailed("media",
			"Only images (jpg, jpeg, png, gif) and videos (mp4, mov, webm) are allowed")
	}
	if len(in.Body) == 0 {
		return nil, apperror.ValidationFailed("media", "No file uploaded")
	}

	contentType := in.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = mime.TypeByExtension(ext)
	}
	if contentType == "" {
		contentType = fallbackType
	}

	asset, err := s.relay(ctx, media.Upload{
		Filename:    in.Filename,
		ContentType: contentType,
		Size:        int64(len(in.Body)),
		Body:        bytes.NewReader(in.Body),
	})
	if err != nil {
		return nil, err
	}
	if asset.ResourceType == "" {
		asset.ResourceType = media.ResourceTypeFor(contentType)
	}
	return asset, nil
}

// RegisterExternalVideo accepts YouTube and Vimeo links only. A thumbnail,
// when given, is relayed to the asset host.
func (s *MediaService) RegisterExternalVideo(ctx context.Context, in VideoInput) (*ExternalVideo, error) {
	provider, err := videoProvider(in.URL)
	if err != nil {
		return nil, err
	}

	video := &ExternalVideo{
		URL:          strings.TrimSpace(in.URL),
		ResourceType: media.ResourceVideo,
		Provider:     provider,
	}
	if in.Thumbnail == "" {
		return video, nil
	}

	if s.host == nil {
		return nil, apperror.Unavailable(msgMediaUnavailable)
	}
	contentType, data, err := decodeDataURI(in.Thumbnail)
	if err != nil {
		return nil, err
	}
	exts, _ := mime.ExtensionsByType(contentType)
	filename := "thumbnail"
	if len(exts) > 0 {
		filename += exts[0]
	}
	if video.Thumbnail, err = s.relay(ctx, media.Upload{
		Filename:    filename,
		ContentType: contentType,
		Size:        int64(len(data)),
		Body:        bytes.NewReader(data),
	}); err != nil {
		return nil, err
	}
	return video, nil
}

// Delete removes an asset by the id the host assigned it. resourceType
// defaults to image.
func (s *MediaService) Delete(ctx context.Context, publicID, resourceType string) error {
	if s.host == nil {
		return apperror.Unavailable(msgMediaUnavailable)
	}
	publicID = strings.Trim(publicID, "/ ")
	if publicID == "" {
		return apperror.ValidationFailed("publicId", "public id is required")
	}
	switch resourceType {
	case "":
		resourceType = media.ResourceImage
	case media.ResourceImage, media.ResourceVideo, media.ResourceRaw:
	default:
		return apperror.ValidationFailed("resource_type", "resource_type must be image, video or raw")
	}

	err := s.host.Delete(ctx, publicID, resourceType)
	s.metrics.MediaOperation("delete", err)
	if err != nil {
		s.logger.Warn("media delete failed",
			slog.String("host", s.host.Name()),
			slog.String("publicID", publicID),
			slog.String("error", err.Error()),
		)
		return apperror.Upstream("Failed to delete media", err)
	}

	s.logger.Info("media deleted", slog.String("publicID", publicID))
	return nil
}

func (s *MediaService) relay(ctx context.Context, in media.Upload) (*media.Asset, error) {
	asset, err := s.host.Upload(ctx, in)
	s.metrics.MediaOperation("upload", err)
	if err != nil {
		s.logger.Warn("media upload failed",
			slog.String("host", s.host.Name()),
			slog.String("filename", in.Filename),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Upstream("Failed to upload media", err)
	}

	s.logger.Info("media uploaded",
		slog.String("host", s.host.Name()),
		slog.String("publicID", asset.PublicID),
		slog.String("resourceType", asset.ResourceType),
	)
	return asset, nil
}

func videoProvider(raw string) (string, error) {
	invalid := apperror.ValidationFailed("url", "Only YouTube and Vimeo links are supported")

	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", invalid
	}
	host := strings.ToLower(u.Hostname())
	for domain, provider := range videoProviders {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return provider, nil
		}
	}
	return "", invalid
}

// decodeDataURI parses "data:image/<type>;base64,<payload>".
func decodeDataURI(uri string) (string, []byte, error) {
	invalid := apperror.ValidationFailed("thumbnail", "thumbnail must be a base64 image data URI")

	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, invalid
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, invalid
	}
	contentType, ok := strings.CutSuffix(meta, ";base64")
	if !ok || !strings.HasPrefix(contentType, "image/") {
		return "", nil, invalid
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil || len(data) == 0 {
		return "", nil, invalid
	}
	return contentType, data, nil
}

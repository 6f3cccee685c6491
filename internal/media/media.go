// Package media relays uploaded files to an external asset host.
//
// Nothing is stored locally: every asset leaving this package is a public
// URL plus an opaque id that the same host accepts back in Delete.
package media

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/rs/xid"
)

// Resource kinds reported by hosts.
const (
	ResourceImage = "image"
	ResourceVideo = "video"
	ResourceRaw   = "raw"
)

// DefaultFolder groups uploads on the host.
const DefaultFolder = "projectshelf"

// ErrNotDeleted is returned when the host answers a delete without error but
// does not confirm the asset is gone.
var ErrNotDeleted = errors.New("media: host did not confirm deletion")

// Upload describes one file to relay.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64 // -1 when unknown
	Body        io.Reader
}

// Asset is the canonical reference to a hosted file.
type Asset struct {
	URL          string `json:"url"`
	PublicID     string `json:"public_id"`
	ResourceType string `json:"resource_type"`
}

// Host defines the operations every asset host supports.
type Host interface {
	Upload(ctx context.Context, in Upload) (*Asset, error)
	Delete(ctx context.Context, publicID, resourceType string) error
	Name() string
}

// ResourceTypeFor maps a MIME type to a resource kind.
func ResourceTypeFor(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return ResourceImage
	case strings.HasPrefix(contentType, "video/"):
		return ResourceVideo
	default:
		return ResourceRaw
	}
}

// objectKey names a new object under folder, keeping the lowercased
// extension of the original filename.
func objectKey(folder, filename string) string {
	return path.Join(folder, xid.New().String()+strings.ToLower(path.Ext(filename)))
}

// publicURL joins the public base of a bucket with an object key.
func publicURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}

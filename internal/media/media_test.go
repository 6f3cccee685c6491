package media

import (
	"context"
	"strings"
	"testing"
)

func TestResourceTypeFor(t *testing.T) {
	tests := []struct {
		contentType string
		want        string
	}{
		{"image/png", ResourceImage},
		{"image/jpeg", ResourceImage},
		{"video/mp4", ResourceVideo},
		{"video/quicktime", ResourceVideo},
		{"application/pdf", ResourceRaw},
		{"", ResourceRaw},
	}
	for _, tt := range tests {
		if got := ResourceTypeFor(tt.contentType); got != tt.want {
			t.Errorf("ResourceTypeFor(%q) = %q, want %q", tt.contentType, got, tt.want)
		}
	}
}

func TestObjectKey(t *testing.T) {
	key := objectKey("projectshelf", "Holiday Photo.JPG")

	if !strings.HasPrefix(key, "projectshelf/") {
		t.Errorf("key %q is not under the folder", key)
	}
	if !strings.HasSuffix(key, ".jpg") {
		t.Errorf("key %q does not keep the lowercased extension", key)
	}
	if strings.Contains(key, " ") {
		t.Errorf("key %q leaks the original filename", key)
	}
	if other := objectKey("projectshelf", "Holiday Photo.JPG"); other == key {
		t.Error("two uploads of the same file got the same key")
	}
}

func TestPublicURL(t *testing.T) {
	tests := []struct {
		base, key, want string
	}{
		{"https://cdn.example.com", "projectshelf/a.png", "https://cdn.example.com/projectshelf/a.png"},
		{"https://cdn.example.com/", "projectshelf/a.png", "https://cdn.example.com/projectshelf/a.png"},
		{"http://localhost:9000/media", "/x.mp4", "http://localhost:9000/media/x.mp4"},
	}
	for _, tt := range tests {
		if got := publicURL(tt.base, tt.key); got != tt.want {
			t.Errorf("publicURL(%q, %q) = %q, want %q", tt.base, tt.key, got, tt.want)
		}
	}
}

func TestNewCloudinary_RequiresCredentials(t *testing.T) {
	tests := []struct {
		name string
		cfg  CloudinaryConfig
	}{
		{"no cloud", CloudinaryConfig{APIKey: "k", APISecret: "s"}},
		{"no key", CloudinaryConfig{CloudName: "demo", APISecret: "s"}},
		{"no secret", CloudinaryConfig{CloudName: "demo", APIKey: "k"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewCloudinary(tt.cfg); err == nil {
				t.Error("NewCloudinary() should fail")
			}
		})
	}
}

func TestNewCloudinary_DefaultFolder(t *testing.T) {
	c, err := NewCloudinary(CloudinaryConfig{CloudName: "demo", APIKey: "k", APISecret: "s"})
	if err != nil {
		t.Fatalf("NewCloudinary() error = %v", err)
	}
	if c.folder != DefaultFolder {
		t.Errorf("folder = %q, want %q", c.folder, DefaultFolder)
	}
	if c.Name() != "cloudinary" {
		t.Errorf("Name() = %q", c.Name())
	}
}

func TestNewMinio(t *testing.T) {
	if _, err := NewMinio(MinioConfig{AccessKey: "a", SecretKey: "b", Bucket: "c"}); err == nil {
		t.Error("NewMinio() without endpoint should fail")
	}
	if _, err := NewMinio(MinioConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"}); err == nil {
		t.Error("NewMinio() without bucket should fail")
	}

	m, err := NewMinio(MinioConfig{
		Endpoint:  "localhost:9000",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    "media",
	})
	if err != nil {
		t.Fatalf("NewMinio() error = %v", err)
	}
	if m.publicURL != "http://localhost:9000/media" {
		t.Errorf("publicURL = %q, want the endpoint/bucket URL", m.publicURL)
	}
}

func TestNewGCS_RequiresBucket(t *testing.T) {
	if _, err := NewGCS(context.Background(), GCSConfig{}); err == nil {
		t.Error("NewGCS() without bucket should fail")
	}
}

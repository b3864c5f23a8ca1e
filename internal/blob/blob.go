package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// ErrNotFound is returned by stores that can read objects back.
var ErrNotFound = errors.New("object not found")

// ObjectRef identifies an uploaded object.
type ObjectRef struct {
	Bucket      string
	Key         string
	Size        int64
	ContentType string
	ETag        string
}

// Store is the object storage used for report artifacts.
type Store interface {
	// StreamUpload writes size bytes from r under key. A failed upload
	// leaves no object that callers should treat as valid.
	StreamUpload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (ObjectRef, error)
	// MakePublic grants anonymous read access to the object.
	MakePublic(ctx context.Context, ref ObjectRef) error
	// PublicURL returns the canonical public location of the object.
	PublicURL(ref ObjectRef) string
	Delete(ctx context.Context, key string) error
}

// joinURL appends an escaped object key to a base URL.
func joinURL(base, key string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("%s/%s", base, strings.Join(segments, "/"))
}

// drain reads r fully and verifies the declared size when one is given.
func drain(r io.Reader, size int64) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload body: %w", err)
	}
	if size >= 0 && int64(len(data)) != size {
		return nil, fmt.Errorf("short upload: got %d bytes, want %d", len(data), size)
	}
	return data, nil
}

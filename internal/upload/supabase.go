package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	storage_go "github.com/supabase-community/storage-go"
)

// SupabaseStorage talks to the storage API of a Supabase project through storage-go
type SupabaseStorage struct {
	endpoint string // {project}/storage/v1
	anonKey  string
	timeout  time.Duration
	public   *storage_go.Client
}

// NewSupabaseStorage returns nil when url or key is missing, so callers can treat storage as unconfigured.
// A zero timeout leaves uploads bounded by the caller's context only.
func NewSupabaseStorage(baseURL, anonKey string, timeout time.Duration) *SupabaseStorage {
	if baseURL == "" || anonKey == "" {
		return nil
	}
	endpoint := strings.TrimRight(baseURL, "/") + "/storage/v1"
	return &SupabaseStorage{
		endpoint: endpoint,
		anonKey:  anonKey,
		timeout:  timeout,
		public:   storage_go.NewClient(endpoint, anonKey, nil),
	}
}

func escapePath(p string) string {
	parts := strings.Split(strings.TrimLeft(p, "/"), "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

// client is built per upload: storage-go keeps request headers on the client itself
func (s *SupabaseStorage) client(contentType string) *storage_go.Client {
	return storage_go.NewClient(s.endpoint, s.anonKey, map[string]string{
		"apikey":       s.anonKey,
		"Content-Type": contentType,
		"x-upsert":     "false",
	})
}

// UploadToSignedURL sends body to the signed upload path. The request goes through the storage-go
// client rather than its UploadToSignedUrl, which pins content-type to text/plain and takes no context.
func (s *SupabaseStorage) UploadToSignedURL(ctx context.Context, bucket, objectPath, token string, body io.Reader, contentType string) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	signed := fmt.Sprintf("%s/object/upload/sign/%s/%s?%s",
		s.endpoint, url.PathEscape(bucket), escapePath(objectPath), url.Values{"token": {token}}.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, signed, body)
	if err != nil {
		return err
	}

	var out storage_go.UploadToSignedUrlResponse
	resp, err := s.client(contentType).Do(req, &out)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if resp == nil {
			return err
		}
		var se *storage_go.StorageError
		if errors.As(err, &se) && se.Message == "" {
			se.Message = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("storage responded %d: %w", resp.StatusCode, err)
	}
	return nil
}

func (s *SupabaseStorage) PublicURL(bucket, objectPath string) string {
	return s.public.GetPublicUrl(url.PathEscape(bucket), escapePath(objectPath)).SignedURL
}

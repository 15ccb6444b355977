package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/example/ec-admin-console/internal/apiclient"
	"github.com/example/ec-admin-console/internal/readmodel"
)

// MaxFileSize is the largest image the admin accepts (5 MiB)
const MaxFileSize = 5 << 20

const (
	DefaultBucket      = "interview"
	defaultContentType = "application/octet-stream"
)

var (
	ErrFileTooLarge         = errors.New("file larger than 5MB")
	ErrStorageNotConfigured = errors.New("object storage is not configured")
	ErrMissingTicket        = errors.New("signed upload ticket missing token or object path")
)

type Phase string

const (
	PhaseValidate Phase = "validate"
	PhaseSign     Phase = "sign"
	PhaseStore    Phase = "store"
)

// Error tells which step of the upload failed
type Error struct {
	Phase Phase
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("upload %s: %v", e.Phase, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// File is one image picked by the user. Body is rewound before every upload so a failed save can be retried.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.ReadSeeker
}

// FileFromPath opens path and sniffs its content type. The caller closes the returned closer.
func FileFromPath(path string) (File, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return File{}, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return File{}, nil, err
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		head := make([]byte, 512)
		n, _ := io.ReadFull(f, head)
		contentType = http.DetectContentType(head[:n])
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			f.Close()
			return File{}, nil, err
		}
	}

	return File{
		Name:        filepath.Base(path),
		ContentType: contentType,
		Size:        info.Size(),
		Body:        f,
	}, f, nil
}

// ObjectStorage accepts uploads against a signed token and resolves public URLs
type ObjectStorage interface {
	UploadToSignedURL(ctx context.Context, bucket, objectPath, token string, body io.Reader, contentType string) error
	PublicURL(bucket, objectPath string) string
}

// Uploader runs the guard, sign, store sequence
type Uploader struct {
	client  *apiclient.Client
	storage ObjectStorage
	bucket  string
}

// NewUploader accepts a nil storage; Upload then fails with ErrStorageNotConfigured
func NewUploader(client *apiclient.Client, storage ObjectStorage, bucket string) *Uploader {
	if s, ok := storage.(*SupabaseStorage); ok && s == nil {
		storage = nil
	}
	return &Uploader{client: client, storage: storage, bucket: bucket}
}

func (u *Uploader) Configured() bool {
	return u != nil && u.storage != nil
}

type signRequest struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
}

// Upload stores the file and returns its public URL, which may be "" when none can be resolved
func (u *Uploader) Upload(ctx context.Context, file File) (string, error) {
	if file.Size > MaxFileSize {
		return "", &Error{Phase: PhaseValidate, Err: ErrFileTooLarge}
	}
	if !u.Configured() {
		return "", &Error{Phase: PhaseValidate, Err: ErrStorageNotConfigured}
	}

	contentType := file.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}

	resp, err := u.client.Post(ctx, "/uploads/sign", signRequest{FileName: file.Name, ContentType: contentType})
	if err != nil {
		return "", &Error{Phase: PhaseSign, Err: err}
	}
	var ticket readmodel.UploadTicket
	if err := resp.Decode(&ticket); err != nil {
		return "", &Error{Phase: PhaseSign, Err: fmt.Errorf("%w: %w", ErrMissingTicket, err)}
	}
	if ticket.Token == "" || ticket.ObjectPath == "" {
		return "", &Error{Phase: PhaseSign, Err: ErrMissingTicket}
	}

	bucket := ticket.Bucket
	if bucket == "" {
		bucket = u.bucket
	}
	if bucket == "" {
		bucket = DefaultBucket
	}

	if _, err := file.Body.Seek(0, io.SeekStart); err != nil {
		return "", &Error{Phase: PhaseStore, Err: fmt.Errorf("rewinding %s: %w", file.Name, err)}
	}
	if err := u.storage.UploadToSignedURL(ctx, bucket, ticket.ObjectPath, ticket.Token, file.Body, contentType); err != nil {
		return "", &Error{Phase: PhaseStore, Err: err}
	}

	url := u.storage.PublicURL(bucket, ticket.ObjectPath)
	if url == "" {
		url = ticket.PublicURL
	}
	log.Printf("[Upload] Stored %s in %s (%d bytes)", ticket.ObjectPath, bucket, file.Size)
	return url, nil
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSUploader stores objects in a Cloud Storage bucket with public-read URLs.
type GCSUploader struct {
	client *gcs.Client
	bucket string
}

// NewGCSClient opens a Cloud Storage client, using credentialsFile when set
// and application default credentials otherwise.
func NewGCSClient(ctx context.Context, credentialsFile string) (*gcs.Client, error) {
	var opts []option.ClientOption
	if f := strings.TrimSpace(credentialsFile); f != "" {
		opts = append(opts, option.WithCredentialsFile(f))
	}
	return gcs.NewClient(ctx, opts...)
}

func NewGCSUploader(client *gcs.Client, bucket string) (*GCSUploader, error) {
	if client == nil {
		return nil, errors.New("storage: gcs client is required")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errors.New("storage: bucket name is required")
	}
	return &GCSUploader{client: client, bucket: bucket}, nil
}

func (u *GCSUploader) Upload(ctx context.Context, objectPath, contentType string, body io.Reader) (string, error) {
	objectPath = strings.TrimSpace(objectPath)
	if objectPath == "" {
		return "", ErrEmptyPath
	}

	w := u.client.Bucket(u.bucket).Object(objectPath).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=31536000"
	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("storage: write %s: %w", objectPath, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("storage: finalize %s: %w", objectPath, err)
	}
	return u.PublicURL(objectPath), nil
}

func (u *GCSUploader) Delete(ctx context.Context, objectPath string) error {
	err := u.client.Bucket(u.bucket).Object(objectPath).Delete(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil
	}
	return err
}

func (u *GCSUploader) PublicURL(objectPath string) string {
	return gcsPublicURL(u.bucket, objectPath)
}

func gcsPublicURL(bucket, objectPath string) string {
	segments := strings.Split(strings.TrimLeft(objectPath, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, strings.Join(segments, "/"))
}

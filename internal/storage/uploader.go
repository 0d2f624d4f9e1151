package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var ErrEmptyPath = errors.New("storage: object path is required")

// Uploader stores objects and reports their public URL.
type Uploader interface {
	Upload(ctx context.Context, objectPath, contentType string, body io.Reader) (string, error)
	Delete(ctx context.Context, objectPath string) error
	PublicURL(objectPath string) string
}

// File is one entry of a batch upload.
type File struct {
	Name        string
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// Result is the outcome of a single file in a batch.
type Result struct {
	Name string `json:"name"`
	Path string `json:"path,omitempty"`
	URL  string `json:"url,omitempty"`
	Err  error  `json:"-"`
}

// Failed reports whether the file was not stored.
func (r Result) Failed() bool {
	return r.Err != nil
}

// UploadImages uploads each file independently. A failing file is reported in
// its Result and does not stop the others.
func UploadImages(ctx context.Context, u Uploader, productID string, files []File, now func() time.Time) []Result {
	if now == nil {
		now = time.Now
	}
	results := make([]Result, 0, len(files))
	for _, f := range files {
		results = append(results, uploadOne(ctx, u, productID, f, now()))
	}
	return results
}

func uploadOne(ctx context.Context, u Uploader, productID string, f File, at time.Time) Result {
	res := Result{Name: f.Name}
	ext, err := ImageExtension(f.Name)
	if err != nil {
		res.Err = err
		return res
	}
	objectPath, err := ProductImagePath(productID, ext, at)
	if err != nil {
		res.Err = err
		return res
	}

	body, err := f.Open()
	if err != nil {
		res.Err = err
		return res
	}
	defer body.Close()

	contentType := f.ContentType
	if contentType == "" {
		contentType = ContentTypeFor(ext)
	}
	url, err := u.Upload(ctx, objectPath, contentType, body)
	if err != nil {
		res.Err = err
		return res
	}
	res.Path = objectPath
	res.URL = url
	return res
}

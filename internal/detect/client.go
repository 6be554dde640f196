// Package detect calls a remote edge-detection service.
//
// The service contract is a single multipart POST: one file field carrying
// the image bytes, answered with the processed image as the response body.
package detect

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/ironsheep/edgeview/internal/imagefile"
)

const (
	// DefaultField is the multipart field name the service reads.
	DefaultField = "image"

	// DefaultMaxResponseBytes caps the size of a returned image.
	DefaultMaxResponseBytes = 64 << 20
)

var (
	// ErrNoFile is returned when Detect is called without a file.
	ErrNoFile = errors.New("no file selected")

	// ErrEmptyResponse is returned when the service answers 2xx with no body.
	ErrEmptyResponse = errors.New("edge service returned an empty body")

	// ErrResponseTooLarge is returned when the body exceeds the size limit.
	ErrResponseTooLarge = errors.New("edge service response too large")
)

// StatusError reports a non-2xx answer from the service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("edge service failed with status: %d", e.StatusCode)
	}
	return fmt.Sprintf("edge service failed with status: %d: %s", e.StatusCode, e.Body)
}

// Result is the processed image returned by the service.
type Result struct {
	Data        []byte
	ContentType string
}

// Client posts images to one edge-detection endpoint.
type Client struct {
	url      string
	field    string
	maxBytes int64
	http     *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithField overrides the multipart field name.
func WithField(name string) Option {
	return func(c *Client) {
		if name != "" {
			c.field = name
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithMaxResponseBytes caps the accepted response size.
func WithMaxResponseBytes(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBytes = n
		}
	}
}

// NewClient creates a client for the service at url.
func NewClient(url string, opts ...Option) *Client {
	c := &Client{
		url:      url,
		field:    DefaultField,
		maxBytes: DefaultMaxResponseBytes,
		http:     &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL returns the endpoint this client posts to.
func (c *Client) URL() string {
	return c.url
}

// Detect sends f to the service and returns the processed image.
//
// Deadlines and cancellation are taken from ctx; the client itself sets no
// timeout. Exactly one request is made, there is no retry.
func (c *Client) Detect(ctx context.Context, f *imagefile.File) (*Result, error) {
	if f == nil {
		return nil, ErrNoFile
	}

	body, contentType, err := c.encode(f)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if int64(len(data)) > c.maxBytes {
		return nil, ErrResponseTooLarge
	}
	if len(data) == 0 {
		return nil, ErrEmptyResponse
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = http.DetectContentType(data)
	}

	return &Result{Data: data, ContentType: ct}, nil
}

// encode builds the multipart body with a single file part.
func (c *Client) encode(f *imagefile.File) (io.Reader, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, c.field, f.Name))
	header.Set("Content-Type", f.ContentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(f.Data); err != nil {
		return nil, "", fmt.Errorf("copy image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}

	return body, writer.FormDataContentType(), nil
}

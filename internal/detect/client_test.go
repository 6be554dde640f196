package detect

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ironsheep/edgeview/internal/imagefile"
)

func testFile() *imagefile.File {
	return &imagefile.File{
		Name:        "cat.png",
		Data:        []byte("\x89PNG\r\n\x1a\nfake-image-bytes"),
		ContentType: "image/png",
		Format:      "png",
	}
}

func TestDetect_PostsMultipartFile(t *testing.T) {
	f := testFile()
	var calls int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Method != http.MethodPost {
			t.Errorf("Method: got %s, want POST", r.Method)
		}
		if r.URL.RawQuery != "" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}

		file, header, err := r.FormFile("image")
		if err != nil {
			t.Errorf("FormFile(image): %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		defer file.Close()

		got, _ := io.ReadAll(file)
		if !bytes.Equal(got, f.Data) {
			t.Error("uploaded bytes differ from file data")
		}
		if header.Filename != "cat.png" {
			t.Errorf("Filename: got %s, want cat.png", header.Filename)
		}
		if ct := header.Header.Get("Content-Type"); ct != "image/png" {
			t.Errorf("part Content-Type: got %s, want image/png", ct)
		}
		if r.MultipartForm != nil && len(r.MultipartForm.File) != 1 {
			t.Errorf("expected a single file field, got %d", len(r.MultipartForm.File))
		}

		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("edges"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	res, err := c.Detect(context.Background(), f)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("expected exactly one request, got %d", calls)
	}
	if string(res.Data) != "edges" {
		t.Errorf("Data: got %q, want edges", res.Data)
	}
	if res.ContentType != "image/jpeg" {
		t.Errorf("ContentType: got %s, want image/jpeg", res.ContentType)
	}
}

func TestDetect_CustomField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, _, err := r.FormFile("file"); err != nil {
			http.Error(w, "missing file field", http.StatusBadRequest)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithField("file"))
	if _, err := c.Detect(context.Background(), testFile()); err != nil {
		t.Fatalf("Detect with custom field failed: %v", err)
	}
}

func TestDetect_NilFile(t *testing.T) {
	c := NewClient("http://127.0.0.1:1")
	_, err := c.Detect(context.Background(), nil)
	if !errors.Is(err, ErrNoFile) {
		t.Errorf("expected ErrNoFile, got %v", err)
	}
}

func TestDetect_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Detect(context.Background(), testFile())

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode: got %d, want 500", statusErr.StatusCode)
	}
	if statusErr.Body != "boom" {
		t.Errorf("Body: got %q, want boom", statusErr.Body)
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("error text should mention status: %s", err)
	}
}

func TestDetect_EmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Detect(context.Background(), testFile())
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestDetect_ResponseTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bytes.Repeat([]byte("x"), 100))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, WithMaxResponseBytes(10)).Detect(context.Background(), testFile())
	if !errors.Is(err, ErrResponseTooLarge) {
		t.Errorf("expected ErrResponseTooLarge, got %v", err)
	}
}

func TestDetect_SniffsMissingContentType(t *testing.T) {
	png := []byte("\x89PNG\x0D\x0A\x1A\x0Arest")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = nil
		w.Write(png)
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL).Detect(context.Background(), testFile())
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if res.ContentType != "image/png" {
		t.Errorf("ContentType: got %s, want image/png", res.ContentType)
	}
}

func TestDetect_ContextCancel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewClient(srv.URL).Detect(ctx, testFile())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestDetect_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url).Detect(context.Background(), testFile())
	if err == nil {
		t.Fatal("expected an error for a closed server")
	}
}

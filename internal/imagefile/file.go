package imagefile

import (
	"bytes"
	"fmt"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// AcceptedExtensions lists the extensions offered by the file picker.
var AcceptedExtensions = []string{".png", ".jpg", ".jpeg"}

// File is a user-selected image held in memory until it is replaced.
type File struct {
	// Name is the base file name as chosen by the user.
	Name string `json:"name"`

	// Data is the file content, byte for byte.
	Data []byte `json:"-"`

	// ContentType is the MIME type sent with the upload part.
	// Derived from the extension first, then from content sniffing.
	ContentType string `json:"content_type"`

	// Format is "png", "jpeg", "gif" or "unknown".
	Format string `json:"format"`

	// Width and Height are the displayed pixel dimensions, zero if the
	// data could not be decoded.
	Width  int `json:"width"`
	Height int `json:"height"`

	// Decoded reports whether the data parsed as an image.
	Decoded bool `json:"decoded"`
}

// Size returns the file size in bytes.
func (f *File) Size() int {
	return len(f.Data)
}

// Accepts reports whether name passes the picker's extension filter.
// The check is case-insensitive.
func Accepts(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, accepted := range AcceptedExtensions {
		if ext == accepted {
			return true
		}
	}
	return false
}

// Open reads the file at path into memory.
//
// Returns an error only when the file cannot be read. Content that is not a
// valid image is still returned, with Decoded set to false.
func Open(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return FromBytes(filepath.Base(path), data), nil
}

// FromBytes wraps data received under name. It never fails.
func FromBytes(name string, data []byte) *File {
	f := &File{
		Name: name,
		Data: data,
	}

	f.Format = formatFromName(name)
	f.ContentType = contentTypeFor(f.Format, data)

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err == nil {
		b := img.Bounds()
		f.Width = b.Dx()
		f.Height = b.Dy()
		f.Decoded = true
	}

	if f.Format == "unknown" {
		f.Format = formatFromContentType(f.ContentType)
	}

	return f
}

func formatFromName(name string) string {
	format, err := imaging.FormatFromFilename(name)
	if err != nil {
		return "unknown"
	}
	switch format {
	case imaging.PNG:
		return "png"
	case imaging.JPEG:
		return "jpeg"
	case imaging.GIF:
		return "gif"
	}
	return "unknown"
}

func formatFromContentType(contentType string) string {
	switch contentType {
	case "image/png":
		return "png"
	case "image/jpeg":
		return "jpeg"
	case "image/gif":
		return "gif"
	}
	return "unknown"
}

func contentTypeFor(format string, data []byte) string {
	switch format {
	case "png":
		return "image/png"
	case "jpeg":
		return "image/jpeg"
	case "gif":
		return "image/gif"
	}
	return http.DetectContentType(data)
}

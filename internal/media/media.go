// Package media loads and validates question images before they are
// attached to model calls.
package media

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

const (
	// MaxImages is the most images accepted in a single request.
	MaxImages = 8

	// DefaultMaxBytes caps the size of a single image.
	DefaultMaxBytes = 10 << 20

	sniffLen = 512
)

var (
	ErrTooLarge        = errors.New("image exceeds size limit")
	ErrUnsupportedType = errors.New("unsupported image type")
)

// allowedTypes are the MIME types the vision APIs accept.
var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// Image is one question image held in memory for the duration of a request.
type Image struct {
	// Name is the original filename. It is a display key only: not
	// guaranteed unique and never used for path or security decisions.
	Name string
	MIME string
	Data []byte
}

// DataURI encodes the image as a base64 data URI for inline API payloads.
func (img Image) DataURI() string {
	return "data:" + img.MIME + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// Base64 returns the raw base64 encoding without the data URI prefix.
func (img Image) Base64() string {
	return base64.StdEncoding.EncodeToString(img.Data)
}

// Load reads an image from disk. The stored name is the path's base name.
func Load(path string) (Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return Image{}, fmt.Errorf("opening image: %w", err)
	}
	defer f.Close()
	return FromReader(filepath.Base(path), f, DefaultMaxBytes)
}

// FromReader reads at most maxBytes from r and validates the content type.
// maxBytes <= 0 uses DefaultMaxBytes.
func FromReader(name string, r io.Reader, maxBytes int64) (Image, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return Image{}, fmt.Errorf("reading image %s: %w", name, err)
	}
	if int64(len(data)) > maxBytes {
		return Image{}, fmt.Errorf("%s: %w (limit %d bytes)", name, ErrTooLarge, maxBytes)
	}

	mime := detectMIME(data)
	if !allowedTypes[mime] {
		return Image{}, fmt.Errorf("%s: %w (%s)", name, ErrUnsupportedType, mime)
	}

	return Image{Name: name, MIME: mime, Data: data}, nil
}

// Names returns the filenames of imgs in order.
func Names(imgs []Image) []string {
	names := make([]string, len(imgs))
	for i, img := range imgs {
		names[i] = img.Name
	}
	return names
}

func detectMIME(data []byte) string {
	if len(data) > sniffLen {
		data = data[:sniffLen]
	}
	return http.DetectContentType(data)
}

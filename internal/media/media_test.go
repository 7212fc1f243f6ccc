package media

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}

func TestFromReader(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		maxBytes int64
		wantMIME string
		wantErr  error
	}{
		{
			name:     "png accepted",
			data:     pngBytes,
			wantMIME: "image/png",
		},
		{
			name:     "gif accepted",
			data:     append([]byte("GIF89a"), make([]byte, 10)...),
			wantMIME: "image/gif",
		},
		{
			name:    "plain text rejected",
			data:    []byte("just some text"),
			wantErr: ErrUnsupportedType,
		},
		{
			name:     "oversized rejected",
			data:     append(append([]byte{}, pngBytes...), make([]byte, 64)...),
			maxBytes: 16,
			wantErr:  ErrTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := FromReader("test.bin", bytes.NewReader(tt.data), tt.maxBytes)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if img.MIME != tt.wantMIME {
				t.Errorf("MIME = %q, want %q", img.MIME, tt.wantMIME)
			}
			if img.Name != "test.bin" {
				t.Errorf("Name = %q, want test.bin", img.Name)
			}
		})
	}
}

func TestDataURI(t *testing.T) {
	img := Image{Name: "q.png", MIME: "image/png", Data: []byte{1, 2, 3}}

	uri := img.DataURI()
	if !strings.HasPrefix(uri, "data:image/png;base64,") {
		t.Errorf("DataURI() = %q, want data:image/png;base64, prefix", uri)
	}
	if !strings.HasSuffix(uri, img.Base64()) {
		t.Error("DataURI() payload does not match Base64()")
	}
}

func TestNames(t *testing.T) {
	imgs := []Image{{Name: "a.png"}, {Name: "b.png"}}
	got := Names(imgs)
	if len(got) != 2 || got[0] != "a.png" || got[1] != "b.png" {
		t.Errorf("Names() = %v", got)
	}
}

// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package snapshot

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

func testImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 2, color.NRGBA{R: 255, G: 128, A: 255})
	return img
}

func TestFormatOf(t *testing.T) {
	tests := []struct {
		path string
		want Format
		err  bool
	}{
		{"frame.png", PNG, false},
		{"FRAME.PNG", PNG, false},
		{"out/frame.jpg", JPEG, false},
		{"frame.bmp", BMP, false},
		{"frame.tif", TIFF, false},
		{"frame.tiff", TIFF, false},
		{"frame.gif", "", true},
		{"frame", "", true},
	}
	for _, tt := range tests {
		got, err := FormatOf(tt.path)
		if tt.err {
			if !errors.Is(err, ErrUnsupportedFormat) {
				t.Errorf("FormatOf(%q) error = %v, want ErrUnsupportedFormat", tt.path, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("FormatOf(%q) = %q, %v; want %q", tt.path, got, err, tt.want)
		}
	}
}

func TestEncodeLossless(t *testing.T) {
	decoders := map[Format]func(*bytes.Reader) (image.Image, error){
		PNG:  func(r *bytes.Reader) (image.Image, error) { return png.Decode(r) },
		BMP:  func(r *bytes.Reader) (image.Image, error) { return bmp.Decode(r) },
		TIFF: func(r *bytes.Reader) (image.Image, error) { return tiff.Decode(r) },
	}
	src := testImage()
	for f, decode := range decoders {
		t.Run(string(f), func(t *testing.T) {
			var buf bytes.Buffer
			if err := Encode(&buf, src, f); err != nil {
				t.Fatalf("Encode: %v", err)
			}
			img, err := decode(bytes.NewReader(buf.Bytes()))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if img.Bounds() != src.Bounds() {
				t.Fatalf("bounds = %v, want %v", img.Bounds(), src.Bounds())
			}
			r, g, b, a := img.At(1, 2).RGBA()
			if r>>8 != 255 || g>>8 != 128 || b>>8 != 0 || a>>8 != 255 {
				t.Errorf("pixel = (%d, %d, %d, %d), want (255, 128, 0, 255)", r>>8, g>>8, b>>8, a>>8)
			}
		})
	}
}

func TestEncodeUnknown(t *testing.T) {
	err := Encode(&bytes.Buffer{}, testImage(), "webp")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Encode error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "frame.jpg")
	if err := Save(path, testImage()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() == 0 {
		t.Errorf("%s is empty", path)
	}

	if err := Save(filepath.Join(dir, "frame.gif"), testImage()); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Save gif error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "frame.gif")); !os.IsNotExist(err) {
		t.Errorf("unsupported format still created a file")
	}
}

package common

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
)

// go test -run ^TestDecodeTexture$ ./common -count 1
func TestDecodeTexture(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	img.Set(2, 1, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "albedo.png")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	tex, err := LoadTexture(path)
	if err != nil {
		t.Fatalf("LoadTexture failed: %v", err)
	}
	if tex.Width != 3 || tex.Height != 2 {
		t.Fatalf("Expected 3x2, got %dx%d", tex.Width, tex.Height)
	}
	last := tex.Pixels[len(tex.Pixels)-4:]
	if !bytes.Equal(last, []byte{10, 20, 30, 255}) {
		t.Errorf("Expected last texel (10,20,30,255), got %v", last)
	}
	if err := tex.Validate(); err != nil {
		t.Errorf("Expected a valid texture, got %v", err)
	}
}

// go test -run ^TestDecodeBMPTexture$ ./common -count 1
func TestDecodeBMPTexture(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 200, G: 100, B: 50, A: 255})
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}

	tex, err := DecodeTexture(&buf)
	if err != nil {
		t.Fatalf("DecodeTexture failed: %v", err)
	}
	if tex.Width != 2 || tex.Height != 2 {
		t.Fatalf("Expected 2x2, got %dx%d", tex.Width, tex.Height)
	}
	if !bytes.Equal(tex.Pixels[:4], []byte{200, 100, 50, 255}) {
		t.Errorf("Expected first texel (200,100,50,255), got %v", tex.Pixels[:4])
	}
}

// go test -run ^TestTextureValidate$ ./common -count 1
func TestTextureValidate(t *testing.T) {
	if err := (&Texture{}).Validate(); !errors.Is(err, ErrEmptyTexture) {
		t.Errorf("Expected ErrEmptyTexture, got %v", err)
	}
	if err := (&Texture{Width: 2, Height: 2, Pixels: make([]byte, 4)}).Validate(); err == nil {
		t.Error("Expected a size mismatch error")
	}
	if err := SolidTexture(255, 255, 255, 255).Validate(); err != nil {
		t.Errorf("Expected a valid solid texture, got %v", err)
	}
	if _, err := LoadTexture(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Error("Expected an error for a missing file")
	}
}

// go test -run ^TestCeilDivAndCoalesce$ ./common -count 1
func TestCeilDivAndCoalesce(t *testing.T) {
	cases := []struct{ n, d, want uint32 }{{0, 8, 0}, {1, 8, 1}, {8, 8, 1}, {9, 8, 2}, {1920, 8, 240}, {130, 64, 3}}
	for _, tc := range cases {
		if got := CeilDiv(tc.n, tc.d); got != tc.want {
			t.Errorf("CeilDiv(%d, %d): expected %d, got %d", tc.n, tc.d, tc.want, got)
		}
	}
	if got := Coalesce("", "json", "console"); got != "json" {
		t.Errorf("Expected json, got %q", got)
	}
}

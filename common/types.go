// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrEmptyTexture is returned when a texture has no pixels.
var ErrEmptyTexture = errors.New("texture has no pixels")

// Texture holds RGBA8 pixel data pending GPU upload.
type Texture struct {
	// Pixels is the byte slice representing the actual pixel data for the texture. It is in RGBA format, with 4 bytes per pixel, row-major.
	Pixels []byte
	// Width is the width of the texture in pixels.
	Width uint32
	// Height is the height of the texture in pixels.
	Height uint32
}

// SolidTexture returns a 1x1 texture of a single color.
//
// Parameters:
//   - r, g, b, a: the color channels
//
// Returns:
//   - *Texture: the 1x1 texture
func SolidTexture(r, g, b, a uint8) *Texture {
	return &Texture{Pixels: []byte{r, g, b, a}, Width: 1, Height: 1}
}

// Validate checks that the pixel slice covers the extent.
//
// Returns:
//   - error: ErrEmptyTexture or a size mismatch error
func (t *Texture) Validate() error {
	if t == nil || t.Width == 0 || t.Height == 0 {
		return ErrEmptyTexture
	}
	if want := int(t.Width) * int(t.Height) * 4; len(t.Pixels) < want {
		return fmt.Errorf("texture %dx%d needs %d bytes, got %d", t.Width, t.Height, want, len(t.Pixels))
	}
	return nil
}

// DecodeTexture decodes a PNG, JPEG, BMP, TIFF or WebP stream into RGBA pixel data.
// Reference: https://pkg.go.dev/image
//
// Parameters:
//   - r: the encoded image
//
// Returns:
//   - *Texture: the decoded texture
//   - error: error if decoding fails
func DecodeTexture(r io.Reader) (*Texture, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)

	return &Texture{
		Pixels: rgba.Pix,
		Width:  uint32(bounds.Dx()),
		Height: uint32(bounds.Dy()),
	}, nil
}

// LoadTexture decodes an image file from disk.
//
// Parameters:
//   - path: the file path
//
// Returns:
//   - *Texture: the decoded texture
//   - error: error if the file cannot be opened or decoded
func LoadTexture(path string) (*Texture, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open texture file %s: %w", path, err)
	}
	defer file.Close()

	tex, err := DecodeTexture(file)
	if err != nil {
		return nil, fmt.Errorf("texture file %s: %w", path, err)
	}
	return tex, nil
}

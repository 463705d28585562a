// Package imaging decodes texture images into raw RGBA pixel data.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"

	"golang.org/x/image/bmp"
)

// ErrUnsupportedImage is returned when the image format cannot be identified
// or is not handled by any decoder.
var ErrUnsupportedImage = errors.New("unsupported image format")

// Image is a decoded image as tightly-packed 8-bit RGBA rows, top-down.
type Image struct {
	Width  int
	Height int
	Pixels []uint8
}

// Decode decodes PNG, JPEG, BMP or TGA data into an Image.
// mimeType, when non-empty, selects the decoder; otherwise the format is
// sniffed from the leading bytes, falling back to TGA (which has no magic).
func Decode(data []byte, mimeType string) (*Image, error) {
	switch mimeType {
	case "image/png":
		return decodeStd(data, png.Decode)
	case "image/jpeg":
		return decodeStd(data, jpeg.Decode)
	case "image/bmp":
		return decodeStd(data, bmp.Decode)
	case "image/tga", "image/x-tga", "image/x-targa":
		return DecodeTGA(data)
	case "":
		return sniff(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedImage, mimeType)
	}
}

func sniff(data []byte) (*Image, error) {
	switch {
	case len(data) >= 8 && bytes.Equal(data[:8], []byte("\x89PNG\r\n\x1a\n")):
		return decodeStd(data, png.Decode)
	case len(data) >= 2 && data[0] == 0xFF && data[1] == 0xD8:
		return decodeStd(data, jpeg.Decode)
	case len(data) >= 2 && data[0] == 'B' && data[1] == 'M':
		return decodeStd(data, bmp.Decode)
	default:
		return DecodeTGA(data)
	}
}

func decodeStd(data []byte, decode func(r io.Reader) (image.Image, error)) (*Image, error) {
	img, err := decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return fromImage(img), nil
}

// fromImage converts any image.Image to tightly-packed RGBA.
func fromImage(img image.Image) *Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	out := &Image{
		Width:  w,
		Height: h,
		Pixels: make([]uint8, w*h*4),
	}

	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r16, g16, b16, a16 := img.At(x, y).RGBA()
			out.Pixels[i] = uint8(r16 >> 8)
			out.Pixels[i+1] = uint8(g16 >> 8)
			out.Pixels[i+2] = uint8(b16 >> 8)
			out.Pixels[i+3] = uint8(a16 >> 8)
			i += 4
		}
	}
	return out
}

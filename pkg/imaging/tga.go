package imaging

import "fmt"

// TGA image type constants.
const (
	tgaTypeUncompressed = 2  // Uncompressed true-color
	tgaTypeRLE          = 10 // RLE compressed true-color
)

// DecodeTGA decodes a TGA image.
// Supports uncompressed true-color (type 2) and RLE compressed (type 10)
// files at 24 or 32 bits per pixel.
func DecodeTGA(data []byte) (*Image, error) {
	if len(data) < 18 {
		return nil, fmt.Errorf("%w: TGA data too short", ErrUnsupportedImage)
	}

	// TGA header
	idLength := int(data[0])
	colorMapType := data[1]
	imageType := data[2]
	// colorMapSpec: bytes 3-7, imageSpec: bytes 8-17
	width := int(data[12]) | int(data[13])<<8
	height := int(data[14]) | int(data[15])<<8
	bpp := int(data[16])
	descriptor := data[17]

	if colorMapType != 0 {
		return nil, fmt.Errorf("%w: color-mapped TGA", ErrUnsupportedImage)
	}
	if imageType != tgaTypeUncompressed && imageType != tgaTypeRLE {
		return nil, fmt.Errorf("%w: TGA type %d", ErrUnsupportedImage, imageType)
	}
	if bpp != 24 && bpp != 32 {
		return nil, fmt.Errorf("%w: TGA bit depth %d", ErrUnsupportedImage, bpp)
	}

	offset := 18 + idLength
	if offset > len(data) {
		return nil, fmt.Errorf("%w: TGA data truncated", ErrUnsupportedImage)
	}
	pixelData := data[offset:]

	img := &Image{
		Width:  width,
		Height: height,
		Pixels: make([]uint8, width*height*4),
	}
	bytesPerPixel := bpp / 8

	// Bit 5 of the descriptor selects top-to-bottom row order.
	topToBottom := (descriptor & 0x20) != 0

	if imageType == tgaTypeUncompressed {
		if len(pixelData) < width*height*bytesPerPixel {
			return nil, fmt.Errorf("%w: TGA pixel data truncated", ErrUnsupportedImage)
		}

		for y := 0; y < height; y++ {
			destY := y
			if !topToBottom {
				destY = height - 1 - y
			}
			for x := 0; x < width; x++ {
				i := (y*width + x) * bytesPerPixel
				a := uint8(255)
				if bytesPerPixel == 4 {
					a = pixelData[i+3]
				}
				// TGA stores BGR
				img.set(x, destY, pixelData[i+2], pixelData[i+1], pixelData[i], a)
			}
		}
		return img, nil
	}

	decodeTGARLE(img, pixelData, width, height, bytesPerPixel, topToBottom)
	return img, nil
}

// decodeTGARLE decodes RLE-compressed TGA pixel data.
func decodeTGARLE(img *Image, pixelData []byte, width, height, bytesPerPixel int, topToBottom bool) {
	pixelCount := width * height
	pixelIdx := 0
	dataIdx := 0

	for pixelIdx < pixelCount && dataIdx < len(pixelData) {
		packet := pixelData[dataIdx]
		dataIdx++
		count := int(packet&0x7F) + 1

		if packet&0x80 != 0 {
			// RLE packet - repeat single pixel
			if dataIdx+bytesPerPixel > len(pixelData) {
				break
			}
			b := pixelData[dataIdx]
			g := pixelData[dataIdx+1]
			r := pixelData[dataIdx+2]
			a := uint8(255)
			if bytesPerPixel == 4 {
				a = pixelData[dataIdx+3]
			}
			dataIdx += bytesPerPixel

			for i := 0; i < count && pixelIdx < pixelCount; i++ {
				x := pixelIdx % width
				y := pixelIdx / width
				destY := y
				if !topToBottom {
					destY = height - 1 - y
				}
				img.set(x, destY, r, g, b, a)
				pixelIdx++
			}
		} else {
			// Raw packet - read count pixels
			for i := 0; i < count && pixelIdx < pixelCount; i++ {
				if dataIdx+bytesPerPixel > len(pixelData) {
					return
				}
				b := pixelData[dataIdx]
				g := pixelData[dataIdx+1]
				r := pixelData[dataIdx+2]
				a := uint8(255)
				if bytesPerPixel == 4 {
					a = pixelData[dataIdx+3]
				}
				dataIdx += bytesPerPixel

				x := pixelIdx % width
				y := pixelIdx / width
				destY := y
				if !topToBottom {
					destY = height - 1 - y
				}
				img.set(x, destY, r, g, b, a)
				pixelIdx++
			}
		}
	}
}

func (img *Image) set(x, y int, r, g, b, a uint8) {
	i := (y*img.Width + x) * 4
	img.Pixels[i] = r
	img.Pixels[i+1] = g
	img.Pixels[i+2] = b
	img.Pixels[i+3] = a
}

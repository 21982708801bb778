package palette

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// The palette is the 8x8x8 RGB cube: three bits per channel, NumColors
// entries, laid out as r<<6 | g<<3 | b.

// EncodeImage scales an image to ImageDim x ImageDim, quantizes each pixel to
// the color cube, and returns the pixel-token serialization: exactly ImageLen
// tokens, row-major.
func EncodeImage(img image.Image) string {
	dst := image.NewRGBA(image.Rect(0, 0, ImageDim, ImageDim))
	draw.CatmullRom.Scale(dst, dst.Rect, img, img.Bounds(), draw.Over, nil)

	buf := make([]byte, 0, ImageLen*len(PixelToken(0)))
	for y := 0; y < ImageDim; y++ {
		for x := 0; x < ImageDim; x++ {
			r, g, b, _ := dst.At(x, y).RGBA()
			index := int(r>>13)<<6 | int(g>>13)<<3 | int(b>>13)
			buf = append(buf, PixelToken(index)...)
		}
	}

	return string(buf)
}

// DecodeImage reconstructs an ImageDim x ImageDim image from a pixel-token
// serialization. The input must be exactly ImageLen well-formed tokens;
// anything else is an error.
func DecodeImage(s string) (image.Image, error) {
	indices, err := ParseTokens(s)
	if err != nil {
		return nil, err
	}

	if len(indices) != ImageLen {
		return nil, fmt.Errorf("image is %d tokens, expected %d", len(indices), ImageLen)
	}

	img := image.NewRGBA(image.Rect(0, 0, ImageDim, ImageDim))
	for i, index := range indices {
		img.Set(i%ImageDim, i/ImageDim, cubeColor(index))
	}

	return img, nil
}

// ParseTokens splits a pixel-token string into color indices, validating each
// token's shape and range.
func ParseTokens(s string) ([]int, error) {
	const width = 5 // len("[000]")

	if len(s)%width != 0 {
		return nil, fmt.Errorf("pixel string length %d is not a multiple of %d", len(s), width)
	}

	indices := make([]int, 0, len(s)/width)
	for i := 0; i < len(s); i += width {
		token := s[i : i+width]
		if token[0] != '[' || token[4] != ']' {
			return nil, fmt.Errorf("malformed pixel token %q at offset %d", token, i)
		}

		var index int
		for _, c := range []byte(token[1:4]) {
			if c < '0' || c > '9' {
				return nil, fmt.Errorf("malformed pixel token %q at offset %d", token, i)
			}

			index = index*10 + int(c-'0')
		}

		if index >= NumColors {
			return nil, fmt.Errorf("pixel token %q out of palette range", token)
		}

		indices = append(indices, index)
	}

	return indices, nil
}

// cubeColor maps a palette index back to the center of its quantization
// bucket, so encode and decode agree on the top three bits of each channel.
func cubeColor(index int) color.RGBA {
	level := func(v int) uint8 {
		return uint8(v<<5 | 0x10)
	}

	return color.RGBA{
		R: level(index >> 6 & 0x7),
		G: level(index >> 3 & 0x7),
		B: level(index & 0x7),
		A: 0xff,
	}
}

package imgconv

import (
	"fmt"
	"image"
	"image/color"
)

// ToNRGBA converts any image m to an *image.NRGBA image.
// Any Image may be converted, but images that are not image.NRGBA might be converted lossily.
func ToNRGBA(m image.Image) *image.NRGBA {
	if img, ok := m.(*image.NRGBA); ok {
		return img
	}

	img := image.NewNRGBA(m.Bounds())

	for y := m.Bounds().Min.Y; y < m.Bounds().Max.Y; y++ {
		for x := m.Bounds().Min.X; x < m.Bounds().Max.X; x++ {
			img.SetNRGBA(x, y, color.NRGBAModel.Convert(m.At(x, y)).(color.NRGBA))
		}
	}

	return img
}

// ToPixels flattens m into a row-major buffer with channels bytes per
// pixel. With 3 channels the alpha channel is dropped.
func ToPixels(m image.Image, channels int) ([]byte, error) {
	if channels != 3 && channels != 4 {
		return nil, fmt.Errorf("unsupported channel count %d", channels)
	}

	img := ToNRGBA(m)
	w, h := img.Rect.Dx(), img.Rect.Dy()
	pix := make([]byte, 0, w*h*channels)

	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		if channels == 4 {
			pix = append(pix, row...)
			continue
		}
		for x := 0; x < len(row); x += 4 {
			pix = append(pix, row[x], row[x+1], row[x+2])
		}
	}

	return pix, nil
}

// FromPixels builds an *image.NRGBA from a row-major buffer with channels
// bytes per pixel. With 3 channels every pixel is opaque.
func FromPixels(pix []byte, width, height, channels int) (*image.NRGBA, error) {
	if channels != 3 && channels != 4 {
		return nil, fmt.Errorf("unsupported channel count %d", channels)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid image size %dx%d", width, height)
	}
	if len(pix) != width*height*channels {
		return nil, fmt.Errorf("pixel buffer is %d bytes, %dx%dx%d needs %d", len(pix), width, height, channels, width*height*channels)
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	if channels == 4 {
		copy(img.Pix, pix)
		return img, nil
	}

	for src, dst := 0, 0; src < len(pix); src, dst = src+3, dst+4 {
		img.Pix[dst] = pix[src]
		img.Pix[dst+1] = pix[src+1]
		img.Pix[dst+2] = pix[src+2]
		img.Pix[dst+3] = 255
	}

	return img, nil
}

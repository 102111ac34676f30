package qoi

import (
	"image"
	"image/color"
	"io"

	"github.com/LukiDS/qoistream/imgconv"
)

type decoder struct {
	h     Header
	data  []byte
	off   int
	index cache
	prev  color.NRGBA
	run   int
	out   []byte
}

func newDecoder(h Header, data []byte) *decoder {
	return &decoder{
		h:    h,
		data: data,
		off:  qoiHeaderSize,
		prev: color.NRGBA{0, 0, 0, 255},
	}
}

// Unmarshal decodes a complete stream into its header and a flat pixel
// buffer of h.Width*h.Height*h.Channels bytes. Bytes after the last pixel
// are ignored. A 3-channel stream may still carry alpha through RGBA or
// Diff chunks; it is tracked for the deltas and left out of the output.
func Unmarshal(data []byte) (Header, []byte, error) {
	h, err := DecodeHeader(data)
	if err != nil {
		return Header{}, nil, err
	}

	d := newDecoder(h, data)
	d.out = make([]byte, 0, outCap(h, len(data)))

	for pxPos, pxLen := 0, h.Pixels(); pxPos < pxLen; pxPos++ {
		px, err := d.next()
		if err != nil {
			return Header{}, nil, err
		}
		d.out = append(d.out, px.R, px.G, px.B)
		if h.Channels == 4 {
			d.out = append(d.out, px.A)
		}
	}

	return h, d.out, nil
}

// outCap bounds the initial output capacity by what the chunk bytes can
// cover: no chunk yields more than qoiMaxRunSize pixels.
func outCap(h Header, dataLen int) int {
	n := h.Len()
	if m := (dataLen - qoiHeaderSize) * qoiMaxRunSize * int(h.Channels); m < n {
		n = m
	}
	return n
}

// next returns the next pixel. While a run is pending the previous pixel
// is repeated and the cache is left alone.
func (d *decoder) next() (color.NRGBA, error) {
	if d.run > 0 {
		d.run--
		return d.prev, nil
	}

	c, n, err := parseChunk(d.data, d.off)
	if err != nil {
		return color.NRGBA{}, err
	}
	d.off += n

	px := d.prev

	switch c.Kind {
	case ChunkRGB:
		px.R, px.G, px.B = c.R, c.G, c.B

	case ChunkRGBA:
		px = color.NRGBA{c.R, c.G, c.B, c.A}

	case ChunkIndex:
		d.prev = d.index.at(c.Index)
		return d.prev, nil

	case ChunkDiff:
		px.R += c.DR - diffBias
		px.G += c.DG - diffBias
		px.B += c.DB - diffBias
		px.A += c.DA - diffBias

	case ChunkLuma:
		vg := c.DG - lumaBiasG
		px.R += vg + c.DR - lumaBiasRB
		px.G += vg
		px.B += vg + c.DB - lumaBiasRB

	case ChunkRun:
		d.run = int(c.Run) - 1
		return d.prev, nil

	default:
		return color.NRGBA{}, newFormatError(ErrInvalidChunkTag, d.off-n, "unhandled chunk kind %v", c.Kind)
	}

	d.index.store(px)
	d.prev = px
	return px, nil
}

// DecodeConfig returns the dimensions and color model of a stream
// without decoding its pixels.
func DecodeConfig(r io.Reader) (image.Config, error) {
	buf := make([]byte, qoiHeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return image.Config{}, newFormatError(ErrMalformedHeader, 0, "reading header: %v", err)
	}

	h, err := DecodeHeader(buf)
	if err != nil {
		return image.Config{}, err
	}

	return image.Config{
		ColorModel: color.NRGBAModel,
		Width:      int(h.Width),
		Height:     int(h.Height),
	}, nil
}

// Decode reads a stream from r and returns it as an *image.NRGBA.
func Decode(r io.Reader) (image.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	h, pix, err := Unmarshal(data)
	if err != nil {
		return nil, err
	}

	m, err := imgconv.FromPixels(pix, int(h.Width), int(h.Height), int(h.Channels))
	if err != nil {
		return nil, err
	}

	return m, nil
}

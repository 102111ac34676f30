package qoi

import (
	"image"
	"image/color"
	"io"

	"github.com/LukiDS/qoistream/imgconv"
)

// Options are the encoding parameters for Encode.
// A nil *Options means 4 channels and colorspace 0; a zero Channels
// means 4.
type Options struct {
	Channels   uint8
	Colorspace uint8
}

type encoder struct {
	h     Header
	pix   []byte
	index cache
	prev  color.NRGBA
	run   int
	pos   int
	sink  func(Chunk)
}

func newEncoder(h Header, pix []byte, sink func(Chunk)) (*encoder, error) {
	if err := h.validate(ErrInvalidInput); err != nil {
		return nil, err
	}
	if len(pix) != h.Len() {
		return nil, newFormatError(ErrInvalidInput, len(pix), "pixel buffer is %d bytes, %dx%dx%d needs %d",
			len(pix), h.Width, h.Height, h.Channels, h.Len())
	}

	return &encoder{
		h:    h,
		pix:  pix,
		prev: color.NRGBA{0, 0, 0, 255},
		sink: sink,
	}, nil
}

// Marshal encodes the flat pixel buffer pix, laid out row by row with
// h.Channels bytes per pixel, into a complete stream.
func Marshal(h Header, pix []byte) ([]byte, error) {
	var out []byte

	e, err := newEncoder(h, pix, func(c Chunk) {
		out = appendChunk(out, c)
	})
	if err != nil {
		return nil, err
	}

	out = h.appendTo(make([]byte, 0, qoiHeaderSize+h.Pixels()))
	if err := e.encode(); err != nil {
		return nil, err
	}

	return out, nil
}

// EncodeChunks returns the chunk sequence Marshal would write after the
// header for the same input.
func EncodeChunks(h Header, pix []byte) ([]Chunk, error) {
	var chunks []Chunk

	e, err := newEncoder(h, pix, func(c Chunk) {
		chunks = append(chunks, c)
	})
	if err != nil {
		return nil, err
	}
	if err := e.encode(); err != nil {
		return nil, err
	}

	return chunks, nil
}

// Encode writes the Image m to w as a stream. Images that are not
// image.NRGBA are converted first and may lose precision.
func Encode(w io.Writer, m image.Image, o *Options) error {
	h := Header{Channels: qoiDefaultChannel, Colorspace: qoiDefaultColorSpace}
	if o != nil {
		if o.Channels != 0 {
			h.Channels = o.Channels
		}
		h.Colorspace = o.Colorspace
	}

	mw, mh := m.Bounds().Dx(), m.Bounds().Dy()
	if mw <= 0 || mh <= 0 || mw*mh > qoiMaxPixels {
		return newFormatError(ErrInvalidInput, 0, "invalid image size %dx%d", mw, mh)
	}
	h.Width = uint32(mw)
	h.Height = uint32(mh)

	pix, err := imgconv.ToPixels(m, int(h.Channels))
	if err != nil {
		return newFormatError(ErrInvalidInput, 0, "%v", err)
	}

	data, err := Marshal(h, pix)
	if err != nil {
		return err
	}

	_, err = w.Write(data)
	return err
}

func (e *encoder) encode() error {
	pxLen := e.h.Pixels()

	for e.pos = 0; e.pos < pxLen; e.pos++ {
		if err := e.step(e.pixelAt(e.pos), e.pos == pxLen-1); err != nil {
			return err
		}
	}

	return nil
}

func (e *encoder) pixelAt(pos int) color.NRGBA {
	off := pos * int(e.h.Channels)
	px := color.NRGBA{e.pix[off], e.pix[off+1], e.pix[off+2], 255}
	if e.h.Channels == 4 {
		px.A = e.pix[off+3]
	}
	return px
}

// step classifies a single pixel. Runs are flushed lazily: only when the
// run is full, the image ends, or a different pixel arrives.
func (e *encoder) step(px color.NRGBA, last bool) error {
	if e.pos == 0 {
		if e.h.Channels == 4 {
			return e.commit(px, rgbaChunk(px.R, px.G, px.B, px.A))
		}
		return e.commit(px, rgbChunk(px.R, px.G, px.B))
	}

	if px == e.prev {
		e.run++
		if e.run == qoiMaxRunSize || last {
			return e.flushRun()
		}
		return nil
	}

	if e.run > 0 {
		if err := e.flushRun(); err != nil {
			return err
		}
	}

	return e.commit(px, e.classify(px))
}

func (e *encoder) classify(px color.NRGBA) Chunk {
	if slot, ok := e.index.lookup(px); ok {
		return indexChunk(slot)
	}

	vr := int8(px.R - e.prev.R)
	vg := int8(px.G - e.prev.G)
	vb := int8(px.B - e.prev.B)
	va := int8(px.A - e.prev.A)

	if inRange(vr, diffMin, diffMax) && inRange(vg, diffMin, diffMax) &&
		inRange(vb, diffMin, diffMax) && inRange(va, diffMin, diffMax) {
		return diffChunk(vr, vg, vb, va)
	}

	if va != 0 {
		return rgbaChunk(px.R, px.G, px.B, px.A)
	}

	vgR := vr - vg
	vgB := vb - vg
	if inRange(vg, lumaMinG, lumaMaxG) && inRange(vgR, lumaMinRB, lumaMaxRB) && inRange(vgB, lumaMinRB, lumaMaxRB) {
		return lumaChunk(vg, vgR, vgB)
	}

	return rgbChunk(px.R, px.G, px.B)
}

// commit emits c for px and records px in the cache and as the previous pixel.
func (e *encoder) commit(px color.NRGBA, c Chunk) error {
	if err := e.emit(c); err != nil {
		return err
	}
	e.index.store(px)
	e.prev = px
	return nil
}

func (e *encoder) flushRun() error {
	c := runChunk(e.run)
	e.run = 0
	return e.emit(c)
}

func (e *encoder) emit(c Chunk) error {
	if err := c.validate(); err != nil {
		return newFormatError(ErrInvariantViolation, e.pos*int(e.h.Channels), "pixel %d: %v", e.pos, err)
	}
	e.sink(c)
	return nil
}

func inRange(v, lo, hi int8) bool {
	return v >= lo && v <= hi
}

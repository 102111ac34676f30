// Package qoi implements a lossless encoder and decoder for flat 8-bit
// RGB/RGBA pixel buffers using the "qoif" chunk stream format.
//
// A stream is a fixed 14 byte header followed by a sequence of chunks.
// Every pixel is classified as a run of the previous pixel, a reference
// into a 64 slot cache of recently seen pixels, a small difference to the
// previous pixel, a green-relative "luma" difference, or a literal.
package qoi

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
)

const (
	/*
		2GB is the max file size that this implementation can safely handle.
		We guard against anything larger than that, assuming the worst case with 5 bytes per pixel,
		rounded down to a nice clean value.

		400 million pixels ought to be enough for anybody.
	*/
	qoiMaxPixels = 400_000_000
	qoiMagic     = "qoif"

	qoiDefaultChannel    uint8 = 4
	qoiDefaultColorSpace uint8 = 0

	qoiHeaderSize = 14 //size in bytes
	qoiCacheSize  = 64
	qoiMaxRunSize = 62
)

const (
	opINDEX uint8 = 0b00000000
	opDIFF  uint8 = 0b01000000
	opLUMA  uint8 = 0b10000000
	opRUN   uint8 = 0b11000000
	opRGB   uint8 = 0b11111110
	opRGBA  uint8 = 0b11111111
)

const (
	maskOP uint8 = 0b11000000
	mask6  uint8 = 0b00111111
	mask4  uint8 = 0b00001111
	mask3  uint8 = 0b00000111
)

// Field biases. Each equals half of the unsigned range of its field.
const (
	diffBias    = 4
	lumaBiasG   = 32
	lumaBiasRB  = 8
	runBias     = 1
	diffMin     = -diffBias
	diffMax     = diffBias - 1
	lumaMinG    = -lumaBiasG
	lumaMaxG    = lumaBiasG - 1
	lumaMinRB   = -lumaBiasRB
	lumaMaxRB   = lumaBiasRB - 1
	diffPadBits = 2
)

func init() {
	image.RegisterFormat("qoi", qoiMagic, Decode, DecodeConfig)
}

// Header describes the image carried by a stream.
// Colorspace is passed through untouched.
type Header struct {
	Width      uint32
	Height     uint32
	Channels   uint8
	Colorspace uint8
}

// Pixels returns the number of pixels described by h.
func (h Header) Pixels() int {
	return int(h.Width) * int(h.Height)
}

// Len returns the length in bytes of the flat pixel buffer described by h.
func (h Header) Len() int {
	return h.Pixels() * int(h.Channels)
}

// validate checks the dimensions and channel count of h, reporting
// failures as kind.
func (h Header) validate(kind error) error {
	if h.Width == 0 || h.Height == 0 {
		return newFormatError(kind, 4, "image size invalid: %dx%d", h.Width, h.Height)
	}
	if uint64(h.Width)*uint64(h.Height) > qoiMaxPixels {
		return newFormatError(kind, 4, "image size too large: %dx%d", h.Width, h.Height)
	}
	if h.Channels != 3 && h.Channels != 4 {
		return newFormatError(kind, 12, "unsupported channel count %d", h.Channels)
	}
	return nil
}

// MarshalBinary returns the 14 byte wire form of h.
func (h Header) MarshalBinary() ([]byte, error) {
	return h.appendTo(make([]byte, 0, qoiHeaderSize)), nil
}

func (h Header) appendTo(dst []byte) []byte {
	dst = append(dst, qoiMagic...)
	dst = binary.BigEndian.AppendUint32(dst, h.Width)
	dst = binary.BigEndian.AppendUint32(dst, h.Height)
	return append(dst, h.Channels, h.Colorspace)
}

// DecodeHeader parses and validates the header at the start of data.
func DecodeHeader(data []byte) (Header, error) {
	if len(data) < qoiHeaderSize {
		return Header{}, newFormatError(ErrMalformedHeader, len(data), "header needs %d bytes, got %d", qoiHeaderSize, len(data))
	}
	if !bytes.Equal(data[:4], []byte(qoiMagic)) {
		return Header{}, newFormatError(ErrMalformedHeader, 0, "image not valid qoi file: magic %q", data[:4])
	}

	h := Header{
		Width:      binary.BigEndian.Uint32(data[4:8]),
		Height:     binary.BigEndian.Uint32(data[8:12]),
		Channels:   data[12],
		Colorspace: data[13],
	}
	if err := h.validate(ErrMalformedHeader); err != nil {
		return Header{}, err
	}

	return h, nil
}

func hash(c color.NRGBA) uint8 {
	return (3*c.R + 5*c.G + 7*c.B + 11*c.A) % qoiCacheSize
}

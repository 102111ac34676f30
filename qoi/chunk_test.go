package qoi

import (
	"bytes"
	"errors"
	"testing"
)

func TestAppendChunk(t *testing.T) {
	tests := []struct {
		name         string
		chunk        Chunk
		expectError  bool
		expectedData []byte
	}{
		{name: "rgb", chunk: rgbChunk(1, 2, 3), expectedData: []byte{0xFE, 1, 2, 3}},
		{name: "rgba", chunk: rgbaChunk(1, 2, 3, 4), expectedData: []byte{0xFF, 1, 2, 3, 4}},
		{name: "index", chunk: indexChunk(63), expectedData: []byte{0b00111111}},
		{name: "diff", chunk: diffChunk(-4, 3, 0, -1), expectedData: []byte{0b01000111, 0b10001100}},
		{name: "luma", chunk: lumaChunk(-32, 7, -8), expectedData: []byte{0b10000000, 0b11110000}},
		{name: "shortest run", chunk: runChunk(1), expectedData: []byte{0b11000000}},
		{name: "longest run", chunk: runChunk(62), expectedData: []byte{0b11111101}},

		{name: "empty run", chunk: runChunk(0), expectError: true},
		{name: "overlong run", chunk: runChunk(63), expectError: true},
		{name: "index out of range", chunk: Chunk{Kind: ChunkIndex, Index: 64}, expectError: true},
		{name: "diff field too wide", chunk: Chunk{Kind: ChunkDiff, DR: 8}, expectError: true},
		{name: "luma green too wide", chunk: Chunk{Kind: ChunkLuma, DG: 64}, expectError: true},
		{name: "luma red too wide", chunk: Chunk{Kind: ChunkLuma, DR: 16}, expectError: true},
		{name: "unknown kind", chunk: Chunk{}, expectError: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			data, err := AppendChunk(nil, test.chunk)
			if test.expectError {
				if !errors.Is(err, ErrInvariantViolation) {
					t.Fatalf("AppendChunk(%+v) error = %v, expected ErrInvariantViolation", test.chunk, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("AppendChunk(%+v): %v", test.chunk, err)
			}

			if !bytes.Equal(data, test.expectedData) {
				t.Errorf("AppendChunk(%+v) = %08b, expected %08b", test.chunk, data, test.expectedData)
			}
			if len(data) != test.chunk.Kind.Size() {
				t.Errorf("%v chunk is %d bytes, Size() = %d", test.chunk.Kind, len(data), test.chunk.Kind.Size())
			}

			parsed, n, err := parseChunk(data, 0)
			if err != nil {
				t.Fatalf("parseChunk: %v", err)
			}
			if n != len(data) || parsed != test.chunk {
				t.Errorf("parseChunk() = (%+v, %d), expected (%+v, %d)", parsed, n, test.chunk, len(data))
			}
		})
	}
}

func TestParseChunkTagPrecedence(t *testing.T) {
	// 0xFE and 0xFF carry the run tag bits but are literals.
	for b := 0; b < 256; b++ {
		c, _, err := parseChunk([]byte{byte(b), 0, 0, 0, 0}, 0)
		if err != nil {
			t.Fatalf("parseChunk(%#02x): %v", b, err)
		}

		switch {
		case b == 0xFE && c.Kind != ChunkRGB,
			b == 0xFF && c.Kind != ChunkRGBA,
			b >= 0xC0 && b < 0xFE && (c.Kind != ChunkRun || int(c.Run) != b-0xC0+1):
			t.Errorf("parseChunk(%#02x) = %+v", b, c)
		}
	}
}

func TestParseChunkTruncated(t *testing.T) {
	for _, data := range [][]byte{
		{},
		{opRGB, 1, 2},
		{opRGBA, 1, 2, 3},
		{opDIFF},
		{opLUMA},
	} {
		if _, _, err := parseChunk(data, 0); !errors.Is(err, ErrTruncatedStream) {
			t.Errorf("parseChunk(%v) error = %v, expected ErrTruncatedStream", data, err)
		}
	}
}

func TestChunkKindString(t *testing.T) {
	if ChunkLuma.String() != "luma" {
		t.Errorf("ChunkLuma.String() = %q", ChunkLuma.String())
	}
	if ChunkKind(42).String() != "ChunkKind(42)" {
		t.Errorf("ChunkKind(42).String() = %q", ChunkKind(42).String())
	}
}

func TestCountChunks(t *testing.T) {
	h := Header{Width: 5, Height: 1, Channels: 4}
	pix := []byte{
		10, 20, 30, 255,
		10, 20, 30, 255,
		10, 20, 30, 255,
		11, 21, 31, 255,
		10, 20, 30, 255,
	}

	data, err := Marshal(h, pix)
	if err != nil {
		t.Fatal(err)
	}

	s, err := CountChunks(data)
	if err != nil {
		t.Fatalf("CountChunks: %v", err)
	}

	expected := map[ChunkKind]int{ChunkRGBA: 1, ChunkRun: 1, ChunkDiff: 1, ChunkIndex: 1}
	for k := ChunkRGB; k <= ChunkRun; k++ {
		if s.Count(k) != expected[k] {
			t.Errorf("Count(%v) = %d, expected %d", k, s.Count(k), expected[k])
		}
	}
	if s.Total() != 4 {
		t.Errorf("Total() = %d, expected 4", s.Total())
	}
	if s.Bytes != len(data)-qoiHeaderSize {
		t.Errorf("Bytes = %d, expected %d", s.Bytes, len(data)-qoiHeaderSize)
	}
	if s.Header != h {
		t.Errorf("Header = %+v, expected %+v", s.Header, h)
	}
}

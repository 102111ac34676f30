package qoi

import "fmt"

// ChunkKind identifies one of the six chunk encodings.
type ChunkKind uint8

const (
	ChunkRGB ChunkKind = iota + 1
	ChunkRGBA
	ChunkIndex
	ChunkDiff
	ChunkLuma
	ChunkRun
)

var chunkKindNames = [...]string{
	ChunkRGB:   "rgb",
	ChunkRGBA:  "rgba",
	ChunkIndex: "index",
	ChunkDiff:  "diff",
	ChunkLuma:  "luma",
	ChunkRun:   "run",
}

func (k ChunkKind) String() string {
	if k == 0 || int(k) >= len(chunkKindNames) {
		return fmt.Sprintf("ChunkKind(%d)", uint8(k))
	}
	return chunkKindNames[k]
}

// Size returns the encoded size in bytes of a chunk of kind k, or 0 for an
// unknown kind.
func (k ChunkKind) Size() int {
	switch k {
	case ChunkRGB:
		return 4
	case ChunkRGBA:
		return 5
	case ChunkIndex, ChunkRun:
		return 1
	case ChunkDiff, ChunkLuma:
		return 2
	}
	return 0
}

// Chunk is a single encoded unit. Only the fields belonging to Kind are
// meaningful:
//
//	ChunkRGB    R, G, B
//	ChunkRGBA   R, G, B, A
//	ChunkIndex  Index (0..63)
//	ChunkDiff   DR, DG, DB, DA: channel deltas biased by 4 (0..7)
//	ChunkLuma   DG: green delta biased by 32 (0..63);
//	            DR, DB: red/blue delta minus green delta, biased by 8 (0..15)
//	ChunkRun    Run: number of repeats of the previous pixel (1..62)
type Chunk struct {
	Kind ChunkKind

	R, G, B, A uint8

	Index uint8

	DR, DG, DB, DA uint8

	Run uint8
}

func rgbChunk(r, g, b uint8) Chunk {
	return Chunk{Kind: ChunkRGB, R: r, G: g, B: b}
}

func rgbaChunk(r, g, b, a uint8) Chunk {
	return Chunk{Kind: ChunkRGBA, R: r, G: g, B: b, A: a}
}

func indexChunk(slot uint8) Chunk {
	return Chunk{Kind: ChunkIndex, Index: slot}
}

func diffChunk(dr, dg, db, da int8) Chunk {
	return Chunk{
		Kind: ChunkDiff,
		DR:   uint8(dr + diffBias),
		DG:   uint8(dg + diffBias),
		DB:   uint8(db + diffBias),
		DA:   uint8(da + diffBias),
	}
}

func lumaChunk(dg, drdg, dbdg int8) Chunk {
	return Chunk{
		Kind: ChunkLuma,
		DG:   uint8(dg + lumaBiasG),
		DR:   uint8(drdg + lumaBiasRB),
		DB:   uint8(dbdg + lumaBiasRB),
	}
}

func runChunk(n int) Chunk {
	return Chunk{Kind: ChunkRun, Run: uint8(n)}
}

// validate reports fields that do not fit their wire width.
func (c Chunk) validate() error {
	switch c.Kind {
	case ChunkRGB, ChunkRGBA:
		return nil
	case ChunkIndex:
		if c.Index > mask6 {
			return fmt.Errorf("index slot %d out of range", c.Index)
		}
	case ChunkDiff:
		if c.DR > mask3 || c.DG > mask3 || c.DB > mask3 || c.DA > mask3 {
			return fmt.Errorf("diff fields (%d,%d,%d,%d) exceed 3 bits", c.DR, c.DG, c.DB, c.DA)
		}
	case ChunkLuma:
		if c.DG > mask6 || c.DR > mask4 || c.DB > mask4 {
			return fmt.Errorf("luma fields (%d,%d,%d) exceed 6/4/4 bits", c.DG, c.DR, c.DB)
		}
	case ChunkRun:
		if c.Run < 1 || c.Run > qoiMaxRunSize {
			return fmt.Errorf("run length %d outside 1..%d", c.Run, qoiMaxRunSize)
		}
	default:
		return fmt.Errorf("unknown chunk kind %v", c.Kind)
	}
	return nil
}

// AppendChunk appends the wire form of c to dst. It fails with
// ErrInvariantViolation if a field of c does not fit its declared width.
func AppendChunk(dst []byte, c Chunk) ([]byte, error) {
	if err := c.validate(); err != nil {
		return dst, newFormatError(ErrInvariantViolation, len(dst), "%v", err)
	}
	return appendChunk(dst, c), nil
}

// appendChunk appends c to dst without checking its fields.
func appendChunk(dst []byte, c Chunk) []byte {
	switch c.Kind {
	case ChunkRGB:
		return append(dst, opRGB, c.R, c.G, c.B)
	case ChunkRGBA:
		return append(dst, opRGBA, c.R, c.G, c.B, c.A)
	case ChunkIndex:
		return append(dst, opINDEX|c.Index)
	case ChunkDiff:
		return append(dst,
			opDIFF|c.DR<<3|c.DG,
			c.DB<<5|c.DA<<diffPadBits,
		)
	case ChunkLuma:
		return append(dst,
			opLUMA|c.DG,
			c.DR<<4|c.DB,
		)
	case ChunkRun:
		return append(dst, opRUN|(c.Run-runBias))
	}
	return dst
}

// parseChunk reads the chunk starting at data[off] and returns it together
// with its encoded size.
func parseChunk(data []byte, off int) (Chunk, int, error) {
	if off >= len(data) {
		return Chunk{}, 0, newFormatError(ErrTruncatedStream, off, "missing chunk")
	}

	b1 := data[off]
	var c Chunk

	switch {
	case b1 == opRGB:
		c.Kind = ChunkRGB
	case b1 == opRGBA:
		c.Kind = ChunkRGBA
	case b1&maskOP == opINDEX:
		c.Kind = ChunkIndex
	case b1&maskOP == opDIFF:
		c.Kind = ChunkDiff
	case b1&maskOP == opLUMA:
		c.Kind = ChunkLuma
	case b1&maskOP == opRUN:
		c.Kind = ChunkRun
	default:
		return Chunk{}, 0, newFormatError(ErrInvalidChunkTag, off, "tag %#08b", b1)
	}

	size := c.Kind.Size()
	if off+size > len(data) {
		return Chunk{}, 0, newFormatError(ErrTruncatedStream, off, "%v chunk needs %d bytes, %d left", c.Kind, size, len(data)-off)
	}
	p := data[off : off+size]

	switch c.Kind {
	case ChunkRGB:
		c.R, c.G, c.B = p[1], p[2], p[3]
	case ChunkRGBA:
		c.R, c.G, c.B, c.A = p[1], p[2], p[3], p[4]
	case ChunkIndex:
		c.Index = p[0] & mask6
	case ChunkDiff:
		c.DR = (p[0] >> 3) & mask3
		c.DG = p[0] & mask3
		c.DB = (p[1] >> 5) & mask3
		c.DA = (p[1] >> diffPadBits) & mask3
	case ChunkLuma:
		c.DG = p[0] & mask6
		c.DR = (p[1] >> 4) & mask4
		c.DB = p[1] & mask4
	case ChunkRun:
		c.Run = (p[0] & mask6) + runBias
	}

	return c, size, nil
}

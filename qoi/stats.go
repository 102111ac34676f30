package qoi

// Stats is a histogram of the chunks in a stream.
type Stats struct {
	Header Header
	Chunks [ChunkRun + 1]int // indexed by ChunkKind
	Bytes  int               // chunk bytes, excluding the header
}

// Count returns the number of chunks of kind k.
func (s Stats) Count(k ChunkKind) int {
	if int(k) >= len(s.Chunks) {
		return 0
	}
	return s.Chunks[k]
}

// Total returns the number of chunks.
func (s Stats) Total() int {
	n := 0
	for _, c := range s.Chunks {
		n += c
	}
	return n
}

// CountChunks walks the chunk sequence of a stream without reconstructing
// pixels and reports how often each chunk kind occurs.
func CountChunks(data []byte) (Stats, error) {
	h, err := DecodeHeader(data)
	if err != nil {
		return Stats{}, err
	}

	s := Stats{Header: h}
	off := qoiHeaderSize

	for covered, pxLen := 0, h.Pixels(); covered < pxLen; {
		c, n, err := parseChunk(data, off)
		if err != nil {
			return Stats{}, err
		}
		off += n
		s.Chunks[c.Kind]++

		if c.Kind == ChunkRun {
			covered += int(c.Run)
		} else {
			covered++
		}
	}

	s.Bytes = off - qoiHeaderSize
	return s, nil
}

// Package storage persists encoded streams on disk.
//
// Files may be wrapped in a zstd or xz container, chosen by extension, and
// may carry a BLAKE3 sidecar ("<path>.b3") holding the hex digest of the
// uncompressed stream.
package storage

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
	"github.com/zeebo/blake3"
)

// SidecarExt is appended to a stream path to name its digest file.
const SidecarExt = ".b3"

var (
	// ErrChecksumMismatch indicates a stream whose digest differs from its sidecar.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrNoChecksum indicates a stream without a sidecar.
	ErrNoChecksum = errors.New("no checksum sidecar")
	// ErrUnsupportedCompression indicates an unknown compression name.
	ErrUnsupportedCompression = errors.New("unsupported compression")
)

// Injectable for tests.
var (
	osCreateTemp = os.CreateTemp
	osRename     = os.Rename
)

// Compression is the container format wrapped around a stream.
type Compression int

const (
	None Compression = iota
	Zstd
	XZ
)

func (c Compression) String() string {
	switch c {
	case Zstd:
		return "zstd"
	case XZ:
		return "xz"
	default:
		return "none"
	}
}

// ParseCompression maps none, zstd or xz to a Compression.
func ParseCompression(name string) (Compression, error) {
	switch strings.ToLower(name) {
	case "none", "":
		return None, nil
	case "zstd", "zst":
		return Zstd, nil
	case "xz":
		return XZ, nil
	}
	return None, fmt.Errorf("%w: %s", ErrUnsupportedCompression, name)
}

// CompressionFromPath picks the container from the file extension.
func CompressionFromPath(path string) Compression {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zst":
		return Zstd
	case ".xz":
		return XZ
	}
	return None
}

// Options control WriteFile.
type Options struct {
	Compression Compression
	Checksum    bool
}

// Result describes a written file.
type Result struct {
	Path       string
	Size       int    // uncompressed stream size
	StoredSize int    // bytes on disk
	Digest     string // hex BLAKE3-256 of the uncompressed stream, if requested
}

// Digest returns the hex BLAKE3-256 digest of data.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// WriteFile compresses data and atomically writes it to path. With
// opts.Checksum a sidecar is written next to it.
func WriteFile(path string, data []byte, opts Options) (*Result, error) {
	stored, err := compress(data, opts.Compression)
	if err != nil {
		return nil, err
	}

	if err := writeAtomic(path, stored); err != nil {
		return nil, err
	}

	res := &Result{Path: path, Size: len(data), StoredSize: len(stored)}
	if opts.Checksum {
		res.Digest = Digest(data)
		if err := writeAtomic(path+SidecarExt, []byte(res.Digest+"\n")); err != nil {
			return nil, err
		}
	}

	return res, nil
}

// ReadFile reads path, removes its container and, if a sidecar exists,
// verifies the digest.
func ReadFile(path string) ([]byte, error) {
	data, err := readStream(path)
	if err != nil {
		return nil, err
	}

	want, err := readSidecar(path)
	if errors.Is(err, ErrNoChecksum) {
		return data, nil
	}
	if err != nil {
		return nil, err
	}

	if got := Digest(data); got != want {
		return nil, fmt.Errorf("%w: %s: got %s, want %s", ErrChecksumMismatch, path, got, want)
	}

	return data, nil
}

// Verify checks path against its sidecar and returns the digest. It fails
// with ErrNoChecksum if there is no sidecar.
func Verify(path string) (string, error) {
	want, err := readSidecar(path)
	if err != nil {
		return "", err
	}

	data, err := readStream(path)
	if err != nil {
		return "", err
	}

	got := Digest(data)
	if got != want {
		return got, fmt.Errorf("%w: %s: got %s, want %s", ErrChecksumMismatch, path, got, want)
	}

	return got, nil
}

func readStream(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	data, err := decompress(raw, CompressionFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress %s: %w", path, err)
	}

	return data, nil
}

func readSidecar(path string) (string, error) {
	b, err := os.ReadFile(path + SidecarExt)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrNoChecksum, path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read checksum: %w", err)
	}

	return strings.TrimSpace(string(b)), nil
}

func compress(data []byte, c Compression) ([]byte, error) {
	switch c {
	case None:
		return data, nil

	case Zstd:
		enc, err := zstd.NewWriter(nil,
			zstd.WithEncoderConcurrency(1),
			zstd.WithEncoderLevel(zstd.SpeedBetterCompression),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd writer: %w", err)
		}
		defer enc.Close()
		return enc.EncodeAll(data, nil), nil

	case XZ:
		var buf bytes.Buffer
		w, err := xz.NewWriter(&buf)
		if err != nil {
			return nil, fmt.Errorf("failed to create xz writer: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("failed to write xz data: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("failed to close xz writer: %w", err)
		}
		return buf.Bytes(), nil
	}

	return nil, fmt.Errorf("%w: %v", ErrUnsupportedCompression, c)
}

func decompress(data []byte, c Compression) ([]byte, error) {
	switch c {
	case None:
		return data, nil

	case Zstd:
		dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		defer dec.Close()
		return dec.DecodeAll(data, nil)

	case XZ:
		r, err := xz.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to create xz reader: %w", err)
		}
		return io.ReadAll(r)
	}

	return nil, fmt.Errorf("%w: %v", ErrUnsupportedCompression, c)
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := osCreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := osRename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename into %s: %w", path, err)
	}

	return nil
}

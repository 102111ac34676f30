// Command qoiconv converts images to and from qoif streams.
package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/dustin/go-humanize"

	"github.com/LukiDS/qoistream/imgconv"
	"github.com/LukiDS/qoistream/internal/logging"
	"github.com/LukiDS/qoistream/internal/storage"
	"github.com/LukiDS/qoistream/qoi"
)

const version = "0.2.0"

// CLI defines the command-line interface for qoiconv.
type CLI struct {
	LogLevel  string `name:"log-level" default:"info" env:"QOICONV_LOG_LEVEL" enum:"debug,info,warn,error" help:"Log level (debug, info, warn, error)"`
	LogFormat string `name:"log-format" default:"text" env:"QOICONV_LOG_FORMAT" enum:"json,text" help:"Log format (json, text)"`

	Encode  EncodeCmd  `cmd:"" help:"Encode a PNG, JPEG or GIF image as a qoif stream"`
	Decode  DecodeCmd  `cmd:"" help:"Decode a qoif stream to PNG"`
	Info    InfoCmd    `cmd:"" help:"Show header and chunk statistics of a stream"`
	Verify  VerifyCmd  `cmd:"" help:"Check a stream against its BLAKE3 sidecar and decode it"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

// Env carries per-invocation state into command Run methods.
type Env struct {
	Ctx    context.Context
	Stdout io.Writer
}

// EncodeCmd encodes an image file.
type EncodeCmd struct {
	Input      string `arg:"" help:"Source image" type:"existingfile"`
	Out        string `short:"o" help:"Output path (default: input with .qoi extension)" type:"path"`
	Channels   uint8  `default:"4" help:"Channels to store (3 drops alpha, 4 keeps it)"`
	Colorspace uint8  `default:"0" help:"Colorspace byte written to the header"`
	Compress   string `default:"auto" enum:"auto,none,zstd,xz" help:"Container compression (auto picks by output extension)"`
	Checksum   bool   `help:"Write a BLAKE3 sidecar next to the output"`
}

func (c *EncodeCmd) Run(env *Env) error {
	if c.Channels != 3 && c.Channels != 4 {
		return fmt.Errorf("channels must be 3 or 4, got %d", c.Channels)
	}

	out := c.Out
	if out == "" {
		out = strings.TrimSuffix(c.Input, filepath.Ext(c.Input)) + ".qoi"
	}

	compression := storage.CompressionFromPath(out)
	if c.Compress != "auto" {
		var err error
		if compression, err = storage.ParseCompression(c.Compress); err != nil {
			return err
		}
	}

	in, err := os.Open(c.Input)
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	defer in.Close()

	img, format, err := image.Decode(in)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", c.Input, err)
	}
	logging.LoggerFromContext(env.Ctx).Debug("source decoded", "path", c.Input, "format", format, "bounds", img.Bounds().String())

	pix, err := imgconv.ToPixels(img, int(c.Channels))
	if err != nil {
		return err
	}
	h := qoi.Header{
		Width:      uint32(img.Bounds().Dx()),
		Height:     uint32(img.Bounds().Dy()),
		Channels:   c.Channels,
		Colorspace: c.Colorspace,
	}

	start := time.Now()
	data, err := qoi.Marshal(h, pix)
	if err != nil {
		return fmt.Errorf("failed to encode: %w", err)
	}
	elapsed := time.Since(start)

	stats, err := qoi.CountChunks(data)
	if err != nil {
		return fmt.Errorf("failed to inspect encoded stream: %w", err)
	}

	res, err := storage.WriteFile(out, data, storage.Options{Compression: compression, Checksum: c.Checksum})
	if err != nil {
		return err
	}

	logging.Conversion(env.Ctx, "encode", out, elapsed,
		"width", h.Width,
		"height", h.Height,
		"channels", h.Channels,
		"bytes", res.Size,
		"stored_bytes", res.StoredSize,
		"compression", compression.String(),
	)

	fmt.Fprintf(env.Stdout, "Encoded %s (%dx%d, %d channels) -> %s\n", c.Input, h.Width, h.Height, h.Channels, out)
	fmt.Fprintf(env.Stdout, "  Raw:    %s\n", humanize.Bytes(uint64(len(pix))))
	fmt.Fprintf(env.Stdout, "  Stream: %s (%.1f%%)\n", humanize.Bytes(uint64(res.Size)), ratio(res.Size, len(pix)))
	if compression != storage.None {
		fmt.Fprintf(env.Stdout, "  Stored: %s (%s)\n", humanize.Bytes(uint64(res.StoredSize)), compression)
	}
	if res.Digest != "" {
		fmt.Fprintf(env.Stdout, "  BLAKE3: %s\n", res.Digest)
	}
	printStats(env.Stdout, stats)
	return nil
}

// DecodeCmd decodes a stream to PNG.
type DecodeCmd struct {
	Input string `arg:"" help:"Stream to decode (.qoi, .qoi.zst, .qoi.xz)" type:"existingfile"`
	Out   string `short:"o" help:"Output PNG path (default: input with .png extension)" type:"path"`
}

func (c *DecodeCmd) Run(env *Env) error {
	out := c.Out
	if out == "" {
		out = streamBase(c.Input) + ".png"
	}

	data, err := storage.ReadFile(c.Input)
	if err != nil {
		return err
	}

	start := time.Now()
	h, pix, err := qoi.Unmarshal(data)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", c.Input, err)
	}
	elapsed := time.Since(start)

	img, err := imgconv.FromPixels(pix, int(h.Width), int(h.Height), int(h.Channels))
	if err != nil {
		return err
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to write png: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close output: %w", err)
	}

	logging.Conversion(env.Ctx, "decode", c.Input, elapsed,
		"width", h.Width,
		"height", h.Height,
		"channels", h.Channels,
	)

	fmt.Fprintf(env.Stdout, "Decoded %s (%dx%d, %d channels) -> %s\n", c.Input, h.Width, h.Height, h.Channels, out)
	return nil
}

// InfoCmd prints the header and chunk statistics of a stream.
type InfoCmd struct {
	Input string `arg:"" help:"Stream to inspect" type:"existingfile"`
}

func (c *InfoCmd) Run(env *Env) error {
	data, err := storage.ReadFile(c.Input)
	if err != nil {
		return err
	}

	stats, err := qoi.CountChunks(data)
	if err != nil {
		return fmt.Errorf("failed to inspect %s: %w", c.Input, err)
	}

	h := stats.Header
	fmt.Fprintf(env.Stdout, "File:       %s\n", c.Input)
	fmt.Fprintf(env.Stdout, "Size:       %dx%d\n", h.Width, h.Height)
	fmt.Fprintf(env.Stdout, "Channels:   %d\n", h.Channels)
	fmt.Fprintf(env.Stdout, "Colorspace: %d\n", h.Colorspace)
	fmt.Fprintf(env.Stdout, "Stream:     %s (%.1f%% of raw)\n", humanize.Bytes(uint64(len(data))), ratio(len(data), h.Len()))
	printStats(env.Stdout, stats)
	return nil
}

// VerifyCmd checks the sidecar digest and decodes the stream.
type VerifyCmd struct {
	Input string `arg:"" help:"Stream to verify" type:"existingfile"`
}

func (c *VerifyCmd) Run(env *Env) error {
	digest, err := storage.Verify(c.Input)
	switch {
	case errors.Is(err, storage.ErrNoChecksum):
		logging.LoggerFromContext(env.Ctx).Warn("no checksum sidecar", "path", c.Input)
		fmt.Fprintf(env.Stdout, "BLAKE3: no sidecar\n")
	case err != nil:
		return err
	default:
		fmt.Fprintf(env.Stdout, "BLAKE3: OK %s\n", digest)
	}

	data, err := storage.ReadFile(c.Input)
	if err != nil {
		return err
	}
	h, _, err := qoi.Unmarshal(data)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", c.Input, err)
	}

	fmt.Fprintf(env.Stdout, "Decode: OK %dx%d, %d channels\n", h.Width, h.Height, h.Channels)
	return nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(env *Env) error {
	fmt.Fprintf(env.Stdout, "qoiconv version %s\n", version)
	return nil
}

func printStats(w io.Writer, s qoi.Stats) {
	fmt.Fprintf(w, "  Chunks:  %d\n", s.Total())
	for k := qoi.ChunkRGB; k <= qoi.ChunkRun; k++ {
		fmt.Fprintf(w, "    %-6s %d\n", k.String()+":", s.Count(k))
	}
}

// streamBase strips the container and stream extensions from path.
func streamBase(path string) string {
	if storage.CompressionFromPath(path) != storage.None {
		path = strings.TrimSuffix(path, filepath.Ext(path))
	}
	return strings.TrimSuffix(path, filepath.Ext(path))
}

func ratio(n, of int) float64 {
	if of == 0 {
		return 0
	}
	return float64(n) / float64(of) * 100
}

func run(args []string, stdout io.Writer) error {
	var cli CLI
	env := &Env{Ctx: context.Background(), Stdout: stdout}

	parser, err := kong.New(&cli,
		kong.Name("qoiconv"),
		kong.Description("Lossless qoif image stream converter"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Bind(env),
	)
	if err != nil {
		return err
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(cli.LogLevel)
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(cli.LogFormat)
	if err != nil {
		return err
	}
	logging.InitLogger(os.Stderr, level, format)
	logging.Debug("logger initialized", "level", cli.LogLevel, "format", cli.LogFormat, "command", kctx.Command())

	env.Ctx = logging.WithRunID(env.Ctx, logging.NewRunID())
	return kctx.Run()
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		logging.Error("qoiconv failed", "error", err)
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

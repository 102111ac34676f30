package main

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LukiDS/qoistream/internal/storage"
)

func createTestPNG(t *testing.T, dir string) (string, *image.NRGBA) {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, 40, 30))
	for y := 0; y < 30; y++ {
		for x := 0; x < 40; x++ {
			a := uint8(255)
			if x > 30 {
				a = uint8(y * 8)
			}
			img.SetNRGBA(x, y, color.NRGBA{uint8(x * 6), uint8(y * 8), uint8(x ^ y), a})
		}
	}

	path := filepath.Join(dir, "src.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	return path, img
}

func readPNG(t *testing.T, path string) image.Image {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	img, err := png.Decode(f)
	require.NoError(t, err)
	return img
}

func requireSameImage(t *testing.T, expected, actual image.Image) {
	t.Helper()

	require.Equal(t, expected.Bounds(), actual.Bounds())
	b := expected.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			require.Equal(t,
				color.NRGBAModel.Convert(expected.At(x, y)),
				color.NRGBAModel.Convert(actual.At(x, y)),
				"pixel (%d,%d)", x, y)
		}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, name := range []string{"out.qoi", "out.qoi.zst", "out.qoi.xz"} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			src, img := createTestPNG(t, dir)
			stream := filepath.Join(dir, name)
			dst := filepath.Join(dir, "back.png")

			var out bytes.Buffer
			require.NoError(t, run([]string{"encode", src, "-o", stream, "--checksum"}, &out))
			require.Contains(t, out.String(), "Encoded")
			require.FileExists(t, stream+storage.SidecarExt)

			out.Reset()
			require.NoError(t, run([]string{"decode", stream, "-o", dst}, &out))
			require.Contains(t, out.String(), "40x30")

			requireSameImage(t, img, readPNG(t, dst))
		})
	}
}

func TestEncodeThreeChannels(t *testing.T) {
	dir := t.TempDir()
	src, _ := createTestPNG(t, dir)
	stream := filepath.Join(dir, "rgb.qoi")

	var out bytes.Buffer
	require.NoError(t, run([]string{"encode", src, "-o", stream, "--channels", "3", "--colorspace", "1"}, &out))

	out.Reset()
	require.NoError(t, run([]string{"info", stream}, &out))
	require.Contains(t, out.String(), "Channels:   3")
	require.Contains(t, out.String(), "Colorspace: 1")

	out.Reset()
	dst := filepath.Join(dir, "rgb.png")
	require.NoError(t, run([]string{"decode", stream, "-o", dst}, &out))

	back := readPNG(t, dst)
	_, _, _, a := back.At(35, 1).RGBA()
	require.Equal(t, uint32(0xffff), a, "alpha should be opaque without an alpha channel")
}

func TestEncodeRejectsBadChannels(t *testing.T) {
	dir := t.TempDir()
	src, _ := createTestPNG(t, dir)

	err := run([]string{"encode", src, "--channels", "2"}, &bytes.Buffer{})
	require.Error(t, err)
}

func TestVerify(t *testing.T) {
	dir := t.TempDir()
	src, _ := createTestPNG(t, dir)
	stream := filepath.Join(dir, "v.qoi")

	require.NoError(t, run([]string{"encode", src, "-o", stream, "--checksum"}, &bytes.Buffer{}))

	var out bytes.Buffer
	require.NoError(t, run([]string{"verify", stream}, &out))
	require.Contains(t, out.String(), "BLAKE3: OK")
	require.Contains(t, out.String(), "Decode: OK 40x30")

	data, err := os.ReadFile(stream)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xff
	require.NoError(t, os.WriteFile(stream, data, 0o644))

	err = run([]string{"verify", stream}, &bytes.Buffer{})
	require.ErrorIs(t, err, storage.ErrChecksumMismatch)
}

func TestVerifyWithoutSidecar(t *testing.T) {
	dir := t.TempDir()
	src, _ := createTestPNG(t, dir)
	stream := filepath.Join(dir, "plain.qoi")

	require.NoError(t, run([]string{"encode", src, "-o", stream}, &bytes.Buffer{}))

	var out bytes.Buffer
	require.NoError(t, run([]string{"verify", stream}, &out))
	require.Contains(t, out.String(), "no sidecar")
}

func TestDecodeRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.qoi")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a stream"), 0o644))

	err := run([]string{"decode", path}, &bytes.Buffer{})
	require.Error(t, err)
}

func TestVersion(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"version"}, &out))
	require.Contains(t, out.String(), version)
}

func TestStreamBase(t *testing.T) {
	require.Equal(t, "a", streamBase("a.qoi"))
	require.Equal(t, "dir/a", streamBase("dir/a.qoi.zst"))
	require.Equal(t, "a", streamBase("a.qoi.xz"))
}

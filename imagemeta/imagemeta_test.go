package imagemeta

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func pngBytes(t testing.TB, w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDetectPNG(t *testing.T) {
	info := Detect(pngBytes(t, 7, 5), "x.png")
	require.Equal(t, Info{ContentType: "image/png", Format: "png", Width: 7, Height: 5}, info)
}

// jpegWithLargeSegments returns a JPEG whose frame header is preceded by n maximum-size APP2 segments.
func jpegWithLargeSegments(t testing.TB, w, h, n int) []byte {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h)), nil))
	data := buf.Bytes()

	out := append([]byte{}, data[:2]...) // SOI
	for i := 0; i < n; i++ {
		seg := make([]byte, 0xFFFF-2)
		copy(seg, "ICC_PROFILE\x00")
		out = append(out, 0xFF, 0xE2, 0xFF, 0xFF)
		out = append(out, seg...)
	}
	return append(out, data[2:]...)
}

func TestDecodeJPEGLargeSegments(t *testing.T) {
	data := jpegWithLargeSegments(t, 40, 30, 2)
	require.Greater(t, len(data), 2*SniffLen)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, 40, cfg.Width)

	// the header alone only tells the format
	info := Detect(data[:SniffLen], "photo.jpg")
	require.Equal(t, "jpeg", info.Format)
	require.Zero(t, info.Width)

	info, err = Decode(bytes.NewReader(data), "photo.jpg")
	require.NoError(t, err)
	require.Equal(t, Info{ContentType: "image/jpeg", Format: "jpeg", Width: 40, Height: 30}, info)
}

func TestSniffer(t *testing.T) {
	data := jpegWithLargeSegments(t, 40, 30, 2)
	sn := NewSniffer("photo.jpg")
	// small writes, as from a network stream
	for r := bytes.NewReader(data); r.Len() > 0; {
		buf := make([]byte, 4096)
		n, _ := r.Read(buf)
		m, err := sn.Write(buf[:n])
		require.NoError(t, err)
		require.Equal(t, n, m)
	}
	require.Equal(t, Info{ContentType: "image/jpeg", Format: "jpeg", Width: 40, Height: 30}, sn.Info())
	require.NoError(t, sn.Close())

	sn = NewSniffer("x.png")
	_, err := sn.Write(pngBytes(t, 7, 5))
	require.NoError(t, err)
	require.Equal(t, Info{ContentType: "image/png", Format: "png", Width: 7, Height: 5}, sn.Info())

	// nothing written
	sn = NewSniffer("doc.pdf")
	require.Equal(t, "application/pdf", sn.Info().ContentType)
}

func TestDecodeSVG(t *testing.T) {
	const svg = `<?xml version="1.0"?><svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 24 16"><rect/></svg>`
	info, err := Decode(strings.NewReader(svg), "icon.svg")
	require.NoError(t, err)
	require.Equal(t, "svg", info.Format)
	require.Equal(t, "image/svg+xml", info.ContentType)
	require.Equal(t, 24, info.Width)
	require.Equal(t, 16, info.Height)

	info = Detect([]byte(`<svg width="10px" height="12.4"></svg>`), "noext")
	require.Equal(t, "svg", info.Format)
	require.Equal(t, 10, info.Width)
	require.Equal(t, 12, info.Height)
}

func TestDecodeUnknown(t *testing.T) {
	info, err := Decode(strings.NewReader("%PDF-1.4 ..."), "doc.pdf")
	require.Equal(t, ErrUnknownFormat, err)
	require.Equal(t, "application/pdf", info.ContentType)

	// avif has no decoder, but the format is known from the name
	info, err = Decode(strings.NewReader("....ftypavif"), "pic.avif")
	require.NoError(t, err)
	require.Equal(t, "avif", info.Format)
	require.Zero(t, info.Width)
}

func TestIsImage(t *testing.T) {
	require.True(t, IsImage("a.JPG"))
	require.True(t, IsImage("a.svg"))
	require.False(t, IsImage("a.pdf"))
	require.False(t, IsImage("noext"))
}

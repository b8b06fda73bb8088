// Package imagemeta detects the format and dimensions of materialized assets.
package imagemeta

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// SniffLen is the number of leading bytes used to detect the format and, for most images,
// the dimensions of an asset.
const SniffLen = 64 * 1024

var ErrUnknownFormat = errors.New("imagemeta: unknown format")

// Info describes an asset.
type Info struct {
	ContentType string
	Format      string
	Width       int
	Height      int
}

var imageExts = map[string]string{
	".jpg":  "jpeg",
	".jpeg": "jpeg",
	".png":  "png",
	".webp": "webp",
	".avif": "avif",
	".gif":  "gif",
	".svg":  "svg",
	".bmp":  "bmp",
	".tif":  "tiff",
	".tiff": "tiff",
}

// IsImage reports if the file name has an image extension.
func IsImage(name string) bool {
	_, ok := imageExts[strings.ToLower(path.Ext(name))]
	return ok
}

// Detect inspects the header of the asset. Name is used as a hint when the content is ambiguous.
// Unknown formats are not an error: only ContentType is set for them.
func Detect(head []byte, name string) Info {
	ext := strings.ToLower(path.Ext(name))
	info := Info{ContentType: contentType(head, ext)}

	if cfg, format, err := image.DecodeConfig(bytes.NewReader(head)); err == nil {
		info.Format = format
		info.Width, info.Height = cfg.Width, cfg.Height
		return info
	}
	if ext == ".svg" || strings.HasPrefix(info.ContentType, "image/svg") || looksLikeSVG(head) {
		info.Format = "svg"
		info.ContentType = "image/svg+xml"
		info.Width, info.Height, _ = svgSize(head)
		return info
	}
	info.Format = imageExts[ext]
	return info
}

// Decode detects the format and dimensions of the asset read from r.
//
// Dimensions of raster images whose size header is not within the first SniffLen bytes
// (for example, JPEGs with large EXIF or ICC segments) are decoded from the rest of the stream.
func Decode(r io.Reader, name string) (Info, error) {
	br := bufio.NewReaderSize(r, SniffLen)
	head, err := br.Peek(SniffLen)
	if err != nil && err != io.EOF {
		return Info{}, err
	}
	info := Detect(head, name)
	if info.Format == "" {
		return info, ErrUnknownFormat
	}
	if info.Width == 0 && info.Height == 0 && info.Format != "svg" && len(head) == SniffLen {
		if cfg, format, err := image.DecodeConfig(br); err == nil {
			info.Format = format
			info.Width, info.Height = cfg.Width, cfg.Height
		}
	}
	return info, nil
}

func contentType(head []byte, ext string) string {
	ct := http.DetectContentType(head)
	if ct != "application/octet-stream" && !strings.HasPrefix(ct, "text/plain") {
		return ct
	}
	if v := mime.TypeByExtension(ext); v != "" {
		return v
	}
	return ct
}

func looksLikeSVG(head []byte) bool {
	n := len(head)
	if n > 1024 {
		n = 1024
	}
	return bytes.Contains(head[:n], []byte("<svg"))
}

// svgSize reads width and height of the root svg element, falling back to the view box.
func svgSize(head []byte) (w, h int, _ error) {
	dec := xml.NewDecoder(bytes.NewReader(head))
	dec.Strict = false
	for {
		tok, err := dec.Token()
		if err != nil {
			return 0, 0, err
		}
		el, ok := tok.(xml.StartElement)
		if !ok || el.Name.Local != "svg" {
			continue
		}
		var vb string
		for _, a := range el.Attr {
			switch a.Name.Local {
			case "width":
				w = svgLength(a.Value)
			case "height":
				h = svgLength(a.Value)
			case "viewBox":
				vb = a.Value
			}
		}
		if (w == 0 || h == 0) && vb != "" {
			f := strings.FieldsFunc(vb, func(r rune) bool { return r == ' ' || r == ',' })
			if len(f) == 4 {
				w, h = svgLength(f[2]), svgLength(f[3])
			}
		}
		return w, h, nil
	}
}

func svgLength(s string) int {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "px")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0
	}
	return int(v + 0.5)
}

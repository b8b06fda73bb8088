package imagemeta

import (
	"bufio"
	"image"
	"io"
)

// Sniffer detects the format and dimensions of the content written to it.
//
// It keeps the first SniffLen bytes for format detection, and decodes the image header from the
// whole stream, so dimensions are found even when they are located far from the start.
// Info or Close must be called to release resources.
type Sniffer struct {
	name string
	head []byte

	pw   *io.PipeWriter
	done chan struct{}

	cfg    image.Config
	format string
	err    error
}

// NewSniffer creates a sniffer for an asset with a given file name.
func NewSniffer(name string) *Sniffer {
	return &Sniffer{name: name}
}

func (s *Sniffer) start() {
	pr, pw := io.Pipe()
	s.pw = pw
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		s.cfg, s.format, s.err = image.DecodeConfig(bufio.NewReader(pr))
		_, _ = io.Copy(io.Discard, pr)
	}()
}

func (s *Sniffer) Write(p []byte) (int, error) {
	if s.done == nil {
		s.start()
	}
	if n := SniffLen - len(s.head); n > 0 {
		if len(p) < n {
			n = len(p)
		}
		s.head = append(s.head, p[:n]...)
	}
	if s.pw != nil {
		if _, err := s.pw.Write(p); err != nil {
			s.pw = nil
		}
	}
	return len(p), nil
}

// Close stops decoding. It is safe to call multiple times.
func (s *Sniffer) Close() error {
	if s.pw != nil {
		s.pw.Close()
		s.pw = nil
	}
	if s.done != nil {
		<-s.done
	}
	return nil
}

// Info returns the detected format and dimensions of the content written so far, and closes the sniffer.
func (s *Sniffer) Info() Info {
	s.Close()
	info := Detect(s.head, s.name)
	if info.Width == 0 && info.Height == 0 && info.Format != "svg" && s.done != nil && s.err == nil {
		info.Format = s.format
		info.Width, info.Height = s.cfg.Width, s.cfg.Height
	}
	return info
}

package csvparser

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Encoding names a source character encoding.
type Encoding string

const (
	UTF8   Encoding = "utf-8"
	CP1252 Encoding = "cp1252"
)

// ParseEncoding maps an encoding name to an Encoding. An empty name is UTF-8.
func ParseEncoding(name string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return UTF8, nil
	case "cp1252", "windows-1252":
		return CP1252, nil
	default:
		return "", fmt.Errorf("unsupported encoding %q", name)
	}
}

func (e Encoding) decoder() *encoding.Decoder {
	if e == CP1252 {
		return charmap.Windows1252.NewDecoder()
	}
	// Strips a leading BOM and replaces invalid sequences with U+FFFD.
	return unicode.UTF8BOM.NewDecoder()
}

// newSourceReader wraps r so that it yields clean UTF-8 with no BOM and no
// null bytes. Undecodable bytes are replaced, never reported.
func newSourceReader(r io.Reader, enc Encoding) io.Reader {
	return newNullStripper(transform.NewReader(r, enc.decoder()))
}

// nullStripper wraps a reader and strips null bytes from the stream.
// encoding/csv treats them as data and tool exports occasionally carry them.
type nullStripper struct {
	r io.Reader
}

func newNullStripper(r io.Reader) io.Reader {
	return &nullStripper{r: r}
}

func (ns *nullStripper) Read(p []byte) (int, error) {
	for {
		n, err := ns.r.Read(p)
		if n > 0 && bytes.IndexByte(p[:n], 0) >= 0 {
			w := 0
			for _, b := range p[:n] {
				if b != 0 {
					p[w] = b
					w++
				}
			}
			n = w
		}
		// A chunk made only of nulls must not look like a zero-length read.
		if n > 0 || err != nil {
			return n, err
		}
	}
}

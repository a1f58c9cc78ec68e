// Package rawheader contains the ASCII header that precedes a raw event
// stream.
//
// The header is a sequence of lines starting with '%', each carrying a
// "key value" pair; the first byte that does not start a header line is the
// first byte of the binary stream.
package rawheader

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/evtkit/goevtlib/pkg/geometry"
)

const headerMaxLineLength = 1024

// Header is the ASCII header of a raw event stream.
type Header struct {
	// value of the "evt" line, e.g. "2.0".
	Version string

	// format name from the "format" line, e.g. "EVT2".
	Format string

	// sensor resolution, from the "geometry" line or from the
	// width/height attributes of the "format" line.
	Geometry *geometry.Geometry

	// sensor serial number.
	Serial string

	// additional keys, preserved verbatim.
	Extra map[string]string
}

func readHeaderLine(br *bufio.Reader) (string, error) {
	for i := 1; i <= headerMaxLineLength; i++ {
		byts, err := br.Peek(i)
		if err != nil {
			// a header line terminated by the end of the stream is legal
			if errors.Is(err, io.EOF) && len(byts) > 0 {
				br.Discard(len(byts)) //nolint:errcheck
				return strings.TrimRight(string(byts), "\r\n"), nil
			}
			return "", err
		}

		if byts[len(byts)-1] == '\n' {
			br.Discard(len(byts)) //nolint:errcheck
			return strings.TrimRight(string(byts), "\r\n"), nil
		}
	}

	return "", fmt.Errorf("header line exceeds %d bytes", headerMaxLineLength)
}

func parseGeometry(v string) (*geometry.Geometry, error) {
	ws, hs, ok := strings.Cut(v, "x")
	if !ok {
		return nil, fmt.Errorf("invalid geometry: %q", v)
	}

	w, err := strconv.Atoi(ws)
	if err != nil {
		return nil, fmt.Errorf("invalid geometry: %q", v)
	}

	h, err := strconv.Atoi(hs)
	if err != nil {
		return nil, fmt.Errorf("invalid geometry: %q", v)
	}

	return geometry.New(w, h)
}

func (h *Header) parseFormat(v string) error {
	parts := strings.Split(v, ";")
	h.Format = parts[0]
	if h.Format == "" {
		return fmt.Errorf("invalid format: %q", v)
	}

	var width, height int

	for _, attr := range parts[1:] {
		key, val, ok := strings.Cut(attr, "=")
		if !ok {
			return fmt.Errorf("invalid format attribute: %q", attr)
		}

		switch key {
		case "width":
			n, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("invalid format width: %q", val)
			}
			width = n

		case "height":
			n, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("invalid format height: %q", val)
			}
			height = n
		}
	}

	if width != 0 || height != 0 {
		g, err := geometry.New(width, height)
		if err != nil {
			return err
		}
		h.Geometry = g
	}

	return nil
}

// Unmarshal reads the header from br.
//
// It consumes header lines only: the reader is left positioned on the first
// byte of the binary stream. A stream without any header line is legal and
// produces an empty Header.
func (h *Header) Unmarshal(br *bufio.Reader) error {
	for {
		byts, err := br.Peek(1)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if byts[0] != '%' {
			return nil
		}

		line, err := readHeaderLine(br)
		if err != nil {
			return err
		}

		line = strings.TrimSpace(strings.TrimPrefix(line, "%"))
		if line == "" {
			continue
		}

		key, value, _ := strings.Cut(line, " ")
		value = strings.TrimSpace(value)

		switch key {
		case "evt":
			h.Version = value

		case "format":
			err = h.parseFormat(value)
			if err != nil {
				return err
			}

		case "geometry":
			var g *geometry.Geometry
			g, err = parseGeometry(value)
			if err != nil {
				return err
			}
			if h.Geometry != nil &&
				(h.Geometry.Width() != g.Width() || h.Geometry.Height() != g.Height()) {
				return fmt.Errorf("geometry %s does not match format attributes %s", g, h.Geometry)
			}
			h.Geometry = g

		case "serial":
			h.Serial = value

		default:
			if h.Extra == nil {
				h.Extra = make(map[string]string)
			}
			h.Extra[key] = value
		}
	}
}

// Marshal writes the header.
func (h Header) Marshal() []byte {
	var sb strings.Builder

	if h.Version != "" {
		sb.WriteString("% evt " + h.Version + "\n")
	}
	if h.Format != "" {
		line := "% format " + h.Format
		if h.Geometry != nil {
			line += ";height=" + strconv.Itoa(h.Geometry.Height()) +
				";width=" + strconv.Itoa(h.Geometry.Width())
		}
		sb.WriteString(line + "\n")
	}
	if h.Geometry != nil {
		sb.WriteString("% geometry " + h.Geometry.String() + "\n")
	}
	if h.Serial != "" {
		sb.WriteString("% serial " + h.Serial + "\n")
	}

	keys := make([]string, 0, len(h.Extra))
	for key := range h.Extra {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		sb.WriteString("% " + key + " " + h.Extra[key] + "\n")
	}

	return []byte(sb.String())
}

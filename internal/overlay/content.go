package overlay

import (
	"bytes"
	"math"
	"strconv"
	"strings"
	"unicode/utf16"

	"golang.org/x/text/encoding/charmap"
)

// Resource names used in every overlay page.
const (
	fontText   = "F1"
	fontSymbol = "F2"
)

// contentStream builds a page or form XObject content stream one operator
// per line.
type contentStream struct {
	buf bytes.Buffer
}

func (c *contentStream) op(operator string, operands ...string) {
	for _, o := range operands {
		c.buf.WriteString(o)
		c.buf.WriteByte(' ')
	}
	c.buf.WriteString(operator)
	c.buf.WriteByte('\n')
}

func (c *contentStream) saveState()    { c.op("q") }
func (c *contentStream) restoreState() { c.op("Q") }
func (c *contentStream) beginText()    { c.op("BT") }
func (c *contentStream) endText()      { c.op("ET") }

func (c *contentStream) setFillRGB(r, g, b float64) {
	c.op("rg", formatNumber(r), formatNumber(g), formatNumber(b))
}

func (c *contentStream) setFont(name string, size float64) {
	c.op("Tf", "/"+name, formatNumber(size))
}

// setTextMatrix moves the text origin to the absolute position (x, y).
func (c *contentStream) setTextMatrix(x, y float64) {
	c.op("Tm", "1", "0", "0", "1", formatNumber(x), formatNumber(y))
}

func (c *contentStream) showText(encoded []byte) {
	c.op("Tj", literalString(string(encoded)))
}

func (c *contentStream) transform(a, b, cc, d, e, f float64) {
	c.op("cm", formatNumber(a), formatNumber(b), formatNumber(cc), formatNumber(d), formatNumber(e), formatNumber(f))
}

func (c *contentStream) drawXObject(name string) {
	c.op("Do", "/"+name)
}

// clipRect intersects the clipping path with the rectangle without painting.
func (c *contentStream) clipRect(x, y, w, h float64) {
	c.op("re", formatNumber(x), formatNumber(y), formatNumber(w), formatNumber(h))
	c.op("W")
	c.op("n")
}

func (c *contentStream) bytes() []byte {
	return c.buf.Bytes()
}

// formatNumber prints v with at most four decimals and no exponent.
func formatNumber(v float64) string {
	r := math.Round(v*1e4) / 1e4
	if r == 0 {
		return "0"
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}

// literalString wraps raw bytes in parentheses, escaping the characters
// that would end the string or be altered by end-of-line normalisation.
func literalString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('(')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\', '(', ')':
			b.WriteByte('\\')
			b.WriteByte(c)
		case '\r':
			b.WriteString(`\r`)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte(')')
	return b.String()
}

// encodeWinAnsi converts text to the single byte encoding declared for the
// Helvetica font. Runes the encoding lacks become '?'.
func encodeWinAnsi(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r < 0x80 {
			out = append(out, byte(r))
			continue
		}
		if b, ok := charmap.Windows1252.EncodeRune(r); ok {
			out = append(out, b)
			continue
		}
		out = append(out, '?')
	}
	return out
}

// textString encodes s as a PDF text string: plain bytes when s is ASCII,
// UTF-16BE with a byte order mark otherwise.
func textString(s string) string {
	ascii := true
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return s
	}

	units := utf16.Encode([]rune(s))
	buf := make([]byte, 0, 2+2*len(units))
	buf = append(buf, 0xfe, 0xff)
	for _, u := range units {
		buf = append(buf, byte(u>>8), byte(u))
	}
	return string(buf)
}

package receipt

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// ESC/POS control bytes.
const (
	esc = 0x1B
	gs  = 0x1D
	lf  = 0x0A
)

// Align is a text alignment.
type Align byte

const (
	AlignLeft Align = iota
	AlignCenter
	AlignRight
)

// Character sizes for Size.
const (
	SizeNormal byte = 0x00
	SizeTall   byte = 0x01
	SizeWide   byte = 0x10
	SizeDouble byte = 0x11
)

// codePage860 is the ESC t selector for PC860 (Portuguese).
const codePage860 = 3

// Document accumulates an ESC/POS byte stream. Text is encoded as PC860 so
// accented Portuguese prints correctly; unsupported runes become '?'.
type Document struct {
	buf   bytes.Buffer
	width int
	enc   *encoding.Encoder
}

// NewDocument starts a document for a paper width in characters (32 for
// 58mm, 48 for 80mm).
func NewDocument(width int) *Document {
	if width <= 0 {
		width = 48
	}
	d := &Document{width: width, enc: encoding.ReplaceUnsupported(charmap.CodePage860.NewEncoder())}
	return d.Init()
}

// Width is the line width in characters.
func (d *Document) Width() int { return d.width }

// Init resets the printer and selects the code page.
func (d *Document) Init() *Document {
	d.buf.Write([]byte{esc, '@', esc, 't', codePage860})
	return d
}

func (d *Document) Align(a Align) *Document {
	d.buf.Write([]byte{esc, 'a', byte(a)})
	return d
}

func (d *Document) Bold(on bool) *Document {
	var n byte
	if on {
		n = 1
	}
	d.buf.Write([]byte{esc, 'E', n})
	return d
}

func (d *Document) Size(size byte) *Document {
	d.buf.Write([]byte{gs, '!', size})
	return d
}

// Text writes s and ends the line.
func (d *Document) Text(s string) *Document {
	d.write(s)
	d.buf.WriteByte(lf)
	return d
}

// Feed advances n lines.
func (d *Document) Feed(n int) *Document {
	for i := 0; i < n; i++ {
		d.buf.WriteByte(lf)
	}
	return d
}

// Separator fills a line with ch.
func (d *Document) Separator(ch rune) *Document {
	return d.Text(strings.Repeat(string(ch), d.width))
}

// KeyValue writes key on the left and value on the right of one line.
func (d *Document) KeyValue(key, value string) *Document {
	return d.Text(spread(key, value, d.width))
}

// Item writes the product name, then a second line with quantity, unit
// price and line total.
func (d *Document) Item(name, qty, unit, total string) *Document {
	d.Text(truncate(name, d.width))
	return d.Text(spread("  "+qty+" x "+unit, total, d.width))
}

// Cut feeds past the tear bar and cuts the paper.
func (d *Document) Cut() *Document {
	d.Feed(3)
	d.buf.Write([]byte{gs, 'V', 0x01})
	return d
}

// Bytes returns the stream built so far.
func (d *Document) Bytes() []byte {
	return d.buf.Bytes()
}

func (d *Document) write(s string) {
	out, err := d.enc.String(s)
	if err != nil {
		out = s
	}
	d.buf.WriteString(out)
}

func spread(left, right string, width int) string {
	gap := width - utf8.RuneCountInString(left) - utf8.RuneCountInString(right)
	if gap < 1 {
		left = truncate(left, width-utf8.RuneCountInString(right)-1)
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

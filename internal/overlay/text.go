package overlay

import (
	"math"
	"unicode/utf8"

	"github.com/omofolarin/fill-pdf/internal/model"
)

const (
	defaultFontSize  = 12.0
	minFontSize      = 12.0
	reducedFontScale = 0.9
	charWidthFactor  = 0.5
	lineHeightFactor = 1.2
	baselineFactor   = 0.2
)

// Strategy identifies which fitting attempt produced a text layout.
type Strategy int

const (
	StrategySingleLine Strategy = iota
	StrategyReducedSingleLine
	StrategyWrapped
	StrategyUnfit
)

func (s Strategy) String() string {
	switch s {
	case StrategySingleLine:
		return "single-line"
	case StrategyReducedSingleLine:
		return "reduced-single-line"
	case StrategyWrapped:
		return "wrapped"
	default:
		return "unfit"
	}
}

// box is a field rectangle in page space (bottom-left origin).
type box struct {
	X, Y, Width, Height float64
}

type textLine struct {
	Text string
	X, Y float64
}

// textLayout is the outcome of fitting one text value into a box. Lines are
// listed top to bottom with absolute baseline positions.
type textLayout struct {
	Strategy Strategy
	FontSize float64
	Lines    []textLine
}

// baseFontSize applies the default and the floor to a requested size.
func baseFontSize(requested float64) float64 {
	if requested <= 0 {
		requested = defaultFontSize
	}
	return math.Max(requested, minFontSize)
}

func textWidth(s string, size float64) float64 {
	return float64(utf8.RuneCountInString(s)) * size * charWidthFactor
}

func horizontalOffset(align model.Alignment, boxWidth, textWidth float64) float64 {
	switch align {
	case model.AlignCenter:
		return (boxWidth - textWidth) / 2
	case model.AlignRight:
		return boxWidth - textWidth
	}
	return 0
}

// lineOffset places a single line vertically. Boxes no taller than one line
// keep the line on the bottom edge.
func lineOffset(valign model.VerticalAlignment, boxHeight, size float64) float64 {
	if boxHeight <= size*lineHeightFactor {
		return 0
	}
	switch valign {
	case model.VAlignMiddle:
		return (boxHeight - size) / 2
	case model.VAlignBottom:
		return boxHeight - size
	case model.VAlignBaseline:
		return boxHeight - size*baselineFactor
	}
	return 0
}

func blockOffset(valign model.VerticalAlignment, boxHeight, blockHeight float64) float64 {
	if boxHeight <= blockHeight {
		return 0
	}
	switch valign {
	case model.VAlignMiddle:
		return (boxHeight - blockHeight) / 2
	case model.VAlignBottom, model.VAlignBaseline:
		return boxHeight - blockHeight
	}
	return 0
}

// layoutText picks the first strategy that fits text into b.
func layoutText(text string, b box, align model.Alignment, valign model.VerticalAlignment, requested float64) textLayout {
	base := baseFontSize(requested)

	if w := textWidth(text, base); w <= b.Width {
		return textLayout{
			Strategy: StrategySingleLine,
			FontSize: base,
			Lines: []textLine{{
				Text: text,
				X:    b.X + horizontalOffset(align, b.Width, w),
				Y:    b.Y + lineOffset(valign, b.Height, base),
			}},
		}
	}

	reduced := base * reducedFontScale
	if w := textWidth(text, reduced); w <= b.Width {
		return textLayout{
			Strategy: StrategyReducedSingleLine,
			FontSize: reduced,
			Lines: []textLine{{
				Text: text,
				X:    b.X + horizontalOffset(align, b.Width, w),
				Y:    b.Y + lineOffset(valign, b.Height, reduced),
			}},
		}
	}

	if lines, ok := wrapText(text, b.Width, b.Height, base); ok {
		lineHeight := base * lineHeightFactor
		bottom := b.Y + blockOffset(valign, b.Height, float64(len(lines))*lineHeight)
		out := make([]textLine, len(lines))
		for i, l := range lines {
			out[i] = textLine{
				Text: l,
				X:    b.X + horizontalOffset(align, b.Width, textWidth(l, base)),
				Y:    bottom + float64(len(lines)-1-i)*lineHeight,
			}
		}
		return textLayout{Strategy: StrategyWrapped, FontSize: base, Lines: out}
	}

	return textLayout{
		Strategy: StrategyUnfit,
		FontSize: base,
		Lines:    []textLine{{Text: text, X: b.X, Y: b.Y}},
	}
}

// wrapText splits text into fixed-width chunks of runes. It reports false
// when the text does not fit in the line budget of the box.
func wrapText(text string, width, height, size float64) ([]string, bool) {
	perLine := int(math.Floor(width / (size * charWidthFactor)))
	if perLine <= 0 {
		return nil, false
	}
	maxLines := int(math.Floor(height / (size * lineHeightFactor)))

	var lines []string
	rest := []rune(text)
	for len(rest) > 0 && len(lines) < maxLines {
		n := min(perLine, len(rest))
		lines = append(lines, string(rest[:n]))
		rest = rest[n:]
	}
	if len(rest) > 0 {
		return nil, false
	}
	return lines, true
}

// textOf returns the printable form of text-like values.
func textOf(v model.FieldValue) (string, bool) {
	switch v := v.(type) {
	case model.Text:
		return string(v), true
	case model.Number:
		return v.String(), true
	case model.Date:
		return string(v), true
	case model.Dropdown:
		return string(v), true
	}
	return "", false
}

// drawText writes the layout into cs. With cutoff the glyphs are clipped to
// the field box.
func drawText(cs *contentStream, layout textLayout, b box, overflow model.TextOverflow) {
	if overflow == model.OverflowCutoff {
		cs.saveState()
		cs.clipRect(b.X, b.Y, b.Width, b.Height)
	}

	cs.beginText()
	cs.setFillRGB(0, 0, 0)
	cs.setFont(fontText, layout.FontSize)
	for _, l := range layout.Lines {
		cs.setTextMatrix(l.X, l.Y)
		cs.showText(encodeWinAnsi(l.Text))
	}
	cs.endText()

	if overflow == model.OverflowCutoff {
		cs.restoreState()
	}
}

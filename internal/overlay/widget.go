package overlay

import (
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/omofolarin/fill-pdf/internal/model"
)

// Button field flags (PDF 32000-1, table 226).
const (
	flagNoToggleToOff = 1 << 14
	flagRadio         = 1 << 15

	annotFlagPrint = 4

	stateOn  = "Yes"
	stateOff = "Off"

	glyphCheck  = "4" // ZapfDingbats check mark
	glyphCircle = "l" // ZapfDingbats filled circle
	glyphSize   = 14.0
)

type buttonKind int

const (
	checkboxButton buttonKind = iota
	radioButton
)

// widget describes a built button field and its two appearance streams.
type widget struct {
	Field types.IndirectRef
	On    types.IndirectRef
	Off   types.IndirectRef
	State string
	Rect  box
}

// selected returns the appearance stream matching the current state.
func (w widget) selected() types.IndirectRef {
	if w.State == stateOn {
		return w.On
	}
	return w.Off
}

// buildButton allocates and stores a merged field/widget dictionary for a
// checkbox or radio button together with its on and off appearances.
func (a *Assembler) buildButton(field model.FieldData, page *pageState, kind buttonKind, on bool) widget {
	w := widget{
		Field: a.alloc.alloc(),
		On:    a.alloc.alloc(),
		Off:   a.alloc.alloc(),
		State: stateOff,
		Rect:  toPageBox(field, page.geometry),
	}
	if on {
		w.State = stateOn
	}

	glyph := glyphCheck
	if kind == radioButton {
		glyph = glyphCircle
	}

	var onContent contentStream
	onContent.beginText()
	onContent.setFont(fontSymbol, glyphSize)
	onContent.showText([]byte(glyph))
	onContent.endText()

	bbox := types.Array{
		types.Integer(0), types.Integer(0),
		types.Float(w.Rect.Width), types.Float(w.Rect.Height),
	}
	a.doc.putStream(w.On, types.Dict{
		"Type":    types.Name("XObject"),
		"Subtype": types.Name("Form"),
		"BBox":    bbox,
		"Resources": types.Dict{
			"Font": types.Dict{fontSymbol: a.symbolFont},
		},
	}, onContent.bytes())
	a.doc.putStream(w.Off, types.Dict{
		"Type":    types.Name("XObject"),
		"Subtype": types.Name("Form"),
		"BBox":    bbox,
	}, nil)

	dict := types.Dict{
		"Type":    types.Name("Annot"),
		"Subtype": types.Name("Widget"),
		"FT":      types.Name("Btn"),
		"T":       types.StringLiteral(textString(field.FieldID)),
		"Rect": types.Array{
			types.Float(w.Rect.X), types.Float(w.Rect.Y),
			types.Float(w.Rect.X + w.Rect.Width), types.Float(w.Rect.Y + w.Rect.Height),
		},
		"P":  page.ref,
		"F":  types.Integer(annotFlagPrint),
		"AS": types.Name(w.State),
		"V":  types.Name(w.State),
		"AP": types.Dict{
			"N": types.Dict{
				stateOn:  w.On,
				stateOff: w.Off,
			},
		},
	}
	if kind == radioButton {
		dict["Ff"] = types.Integer(flagRadio | flagNoToggleToOff)
	}
	a.doc.put(w.Field, dict)

	return w
}

// paintAppearance draws the selected appearance into the page content so the
// mark survives when the widget annotations are removed by flattening.
func (a *Assembler) paintAppearance(cs *contentStream, page *pageState, w widget) {
	if w.State != stateOn {
		return
	}
	ref := w.selected()
	name := "Ap" + strconv.Itoa(int(ref.ObjectNumber))
	page.xobjects[name] = ref

	cs.saveState()
	cs.transform(1, 0, 0, 1, w.Rect.X, w.Rect.Y)
	cs.drawXObject(name)
	cs.restoreState()
}

// Package overlay renders field values into a standalone PDF whose pages hold
// only the marks implied by the data. The result is composited onto the
// template by a merge backend.
package overlay

import (
	"fmt"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/omofolarin/fill-pdf/internal/model"
	fillerrors "github.com/omofolarin/fill-pdf/internal/pdf/errors"
)

// Options tune a render session.
type Options struct {
	// PaintWidgetAppearances also draws the selected checkbox and radio
	// appearance into the page content. Used when the output is flattened.
	PaintWidgetAppearances bool
}

// Result is the output of one render session.
type Result struct {
	PDF      []byte
	Metadata *model.ProcessingMetadata
	// PageMap holds the template page index of every overlay page.
	PageMap []int
}

// Assembler builds overlay documents. Each call to Render starts a fresh
// session, so one Assembler may be reused but not shared between goroutines.
type Assembler struct {
	opts Options

	alloc  *allocator
	doc    *document
	meta   *model.ProcessingMetadata
	images map[string]embeddedImage

	textFont   types.IndirectRef
	symbolFont types.IndirectRef
	pageTree   types.IndirectRef
	pages      []types.IndirectRef
	fields     []types.IndirectRef
}

// NewAssembler returns an assembler using opts for every session.
func NewAssembler(opts Options) *Assembler {
	return &Assembler{opts: opts}
}

// Render is a shortcut for NewAssembler(opts).Render(fields, pages).
func Render(fields []model.FieldData, pages []model.PageGeometry, opts Options) (*Result, error) {
	return NewAssembler(opts).Render(fields, pages)
}

type pageState struct {
	geometry model.PageGeometry
	ref      types.IndirectRef
	content  types.IndirectRef
	annots   types.Array
	xobjects map[string]types.IndirectRef
}

func (a *Assembler) reset() {
	a.alloc = newAllocator()
	a.doc = newDocument()
	a.meta = model.NewProcessingMetadata()
	a.images = make(map[string]embeddedImage)
	a.pages = nil
	a.fields = nil

	a.textFont = a.alloc.alloc()
	a.symbolFont = a.alloc.alloc()
	a.pageTree = a.alloc.alloc()
}

// Render builds the overlay for fields against the template geometry. Only
// template pages with at least one field get an overlay page. Per-field
// problems are recorded in the returned metadata; an error is returned only
// when the document itself cannot be produced.
func (a *Assembler) Render(fields []model.FieldData, pages []model.PageGeometry) (*Result, error) {
	a.reset()

	byPage := make(map[int][]model.FieldData)
	for _, f := range fields {
		byPage[f.Page] = append(byPage[f.Page], f)
	}
	indexes := make([]int, 0, len(byPage))
	for p := range byPage {
		indexes = append(indexes, p)
	}
	sort.Ints(indexes)

	for _, idx := range indexes {
		pageFields := byPage[idx]
		if idx < 0 || idx >= len(pages) {
			a.meta.Warn(fillerrors.MissingPage(idx, len(pageFields)))
			a.meta.Skipped(len(pageFields))
			continue
		}
		a.renderPage(pages[idx], idx, pageFields)
	}

	a.putFonts()

	kids := make(types.Array, len(a.pages))
	for i, p := range a.pages {
		kids[i] = p
	}
	a.doc.put(a.pageTree, types.Dict{
		"Type":  types.Name("Pages"),
		"Kids":  kids,
		"Count": types.Integer(len(a.pages)),
	})

	catalog := a.alloc.alloc()
	root := types.Dict{
		"Type":  types.Name("Catalog"),
		"Pages": a.pageTree,
	}
	if len(a.fields) > 0 {
		refs := make(types.Array, len(a.fields))
		for i, f := range a.fields {
			refs[i] = f
		}
		root["AcroForm"] = types.Dict{"Fields": refs}
	}
	a.doc.put(catalog, root)

	out, err := a.doc.bytes(catalog, a.alloc.allocated())
	if err != nil {
		return nil, fmt.Errorf("serialize overlay: %w", err)
	}

	return &Result{
		PDF:      out,
		Metadata: a.meta,
		PageMap:  a.meta.PageMap(),
	}, nil
}

func (a *Assembler) renderPage(geom model.PageGeometry, idx int, fields []model.FieldData) {
	a.meta.AddPage(model.PageMetadata{
		PageNumber:  idx,
		Width:       geom.Width,
		Height:      geom.Height,
		FieldsCount: len(fields),
	})

	page := &pageState{
		geometry: geom,
		content:  a.alloc.alloc(),
		ref:      a.alloc.alloc(),
		annots:   types.Array{},
		xobjects: make(map[string]types.IndirectRef),
	}
	var cs contentStream

	for _, f := range fields {
		a.renderField(&cs, page, f)
	}

	a.doc.putStream(page.content, types.Dict{}, cs.bytes())

	resources := types.Dict{
		"Font": types.Dict{
			fontText:   a.textFont,
			fontSymbol: a.symbolFont,
		},
	}
	if len(page.xobjects) > 0 {
		xobj := types.Dict{}
		for name, ref := range page.xobjects {
			xobj[name] = ref
		}
		resources["XObject"] = xobj
	}

	dict := types.Dict{
		"Type":   types.Name("Page"),
		"Parent": a.pageTree,
		"MediaBox": types.Array{
			types.Integer(0), types.Integer(0),
			types.Float(geom.Width), types.Float(geom.Height),
		},
		"Contents":  page.content,
		"Resources": resources,
	}
	if len(page.annots) > 0 {
		dict["Annots"] = page.annots
	}
	a.doc.put(page.ref, dict)
	a.pages = append(a.pages, page.ref)
}

func (a *Assembler) renderField(cs *contentStream, page *pageState, f model.FieldData) {
	if text, ok := textOf(f.Value); ok {
		if text != "" {
			b := toPageBox(f, page.geometry)
			layout := layoutText(text, b, f.Alignment, f.VerticalAlignment, f.FontSize)
			drawText(cs, layout, b, f.TextOverflow)
		}
		a.meta.Processed()
		return
	}

	switch v := f.Value.(type) {
	case model.Checkbox:
		a.addButton(cs, page, f, checkboxButton, bool(v))
	case model.Radio:
		a.addButton(cs, page, f, radioButton, true)
	case model.Image, model.Signature:
		a.renderImage(cs, page, f)
	default:
		a.meta.Warn(fmt.Errorf("field %s has no renderable value", f.FieldID))
		a.meta.Skipped(1)
	}
}

func (a *Assembler) addButton(cs *contentStream, page *pageState, f model.FieldData, kind buttonKind, on bool) {
	w := a.buildButton(f, page, kind, on)
	page.annots = append(page.annots, w.Field)
	a.fields = append(a.fields, w.Field)
	if a.opts.PaintWidgetAppearances {
		a.paintAppearance(cs, page, w)
	}
	a.meta.Processed()
}

func (a *Assembler) renderImage(cs *contentStream, page *pageState, f model.FieldData) {
	src, _ := model.ImageSourceOf(f.Value)

	var inline model.InlineImage
	switch s := src.(type) {
	case model.InlineImage:
		inline = s
	case model.RemoteImage:
		a.meta.Warn(fillerrors.UnresolvedRemoteImage(f.FieldID, s.URL.URL))
		a.meta.Skipped(1)
		return
	default:
		a.meta.Fail(fillerrors.ImageDecode(f.FieldID, fmt.Errorf("no image source")))
		a.meta.Skipped(1)
		return
	}

	data, err := inline.Bytes()
	if err != nil {
		a.meta.Fail(fillerrors.ImageDecode(f.FieldID, err))
		a.meta.Skipped(1)
		return
	}

	img, err := a.embedImage(f.FieldID, data)
	if err != nil {
		a.meta.Fail(fillerrors.ImageEmbed(f.FieldID, err))
		a.meta.Skipped(1)
		return
	}

	page.xobjects[img.Name()] = img.Ref
	mode := f.FitMode
	if mode == "" {
		mode = model.FitContain
	}
	drawImage(cs, img, toPageBox(f, page.geometry), mode)
	a.meta.Processed()
}

func (a *Assembler) putFonts() {
	a.doc.put(a.textFont, types.Dict{
		"Type":     types.Name("Font"),
		"Subtype":  types.Name("Type1"),
		"BaseFont": types.Name("Helvetica"),
		"Encoding": types.Name("WinAnsiEncoding"),
	})
	a.doc.put(a.symbolFont, types.Dict{
		"Type":     types.Name("Font"),
		"Subtype":  types.Name("Type1"),
		"BaseFont": types.Name("ZapfDingbats"),
	})
}

// toPageBox converts a top-left origin field rectangle to page space.
func toPageBox(f model.FieldData, page model.PageGeometry) box {
	return box{
		X:      f.X,
		Y:      page.Height - f.Y - f.Height,
		Width:  f.Width,
		Height: f.Height,
	}
}

// Package geometry reads the page count and page sizes of a template.
package geometry

import (
	"bytes"
	"fmt"
	"log"
	"os"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	fillmodel "github.com/omofolarin/fill-pdf/internal/model"
)

// maxParentDepth bounds the walk up the page tree for inherited MediaBoxes.
const maxParentDepth = 10

// Extract returns one PageGeometry per template page, in page order. Pages
// without a usable MediaBox get the default A4 size. pdfcpu is tried first;
// documents it cannot read are parsed again with ledongthuc/pdf.
func Extract(data []byte) ([]fillmodel.PageGeometry, error) {
	pages, err := extractPdfcpu(data)
	if err == nil {
		return pages, nil
	}
	log.Printf("[geometry] pdfcpu could not read template, falling back: %v", err)

	pages, fallbackErr := extractLedongthuc(data)
	if fallbackErr != nil {
		return nil, fmt.Errorf("failed to read template pages: %w (fallback: %v)", err, fallbackErr)
	}
	return pages, nil
}

// ExtractFile is Extract for a file on disk.
func ExtractFile(path string) ([]fillmodel.PageGeometry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Extract(data)
}

func defaultPage(i int) fillmodel.PageGeometry {
	return fillmodel.PageGeometry{
		Index:  i,
		Width:  fillmodel.DefaultPageWidth,
		Height: fillmodel.DefaultPageHeight,
	}
}

func extractPdfcpu(data []byte) ([]fillmodel.PageGeometry, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF context: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("failed to ensure page count: %w", err)
	}

	pages := make([]fillmodel.PageGeometry, ctx.PageCount)
	for i := range pages {
		pages[i] = defaultPage(i)

		_, _, inh, err := ctx.PageDict(i+1, true)
		if err != nil || inh == nil || inh.MediaBox == nil {
			continue
		}
		if w, h := inh.MediaBox.Width(), inh.MediaBox.Height(); w > 0 && h > 0 {
			pages[i].Width = w
			pages[i].Height = h
		}
	}
	return pages, nil
}

func extractLedongthuc(data []byte) (pages []fillmodel.PageGeometry, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while parsing template: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	n := r.NumPage()
	pages = make([]fillmodel.PageGeometry, n)
	for i := range pages {
		pages[i] = defaultPage(i)
		if w, h, ok := mediaBoxSize(r.Page(i + 1).V); ok {
			pages[i].Width = w
			pages[i].Height = h
		}
	}
	return pages, nil
}

// mediaBoxSize finds the MediaBox of a page dictionary, following Parent
// links for inherited values.
func mediaBoxSize(page pdf.Value) (float64, float64, bool) {
	current := page
	for i := 0; i <= maxParentDepth && !current.IsNull(); i++ {
		box := current.Key("MediaBox")
		if box.Kind() == pdf.Array && box.Len() == 4 {
			w := box.Index(2).Float64() - box.Index(0).Float64()
			h := box.Index(3).Float64() - box.Index(1).Float64()
			if w > 0 && h > 0 {
				return w, h, true
			}
		}
		current = current.Key("Parent")
	}
	return 0, 0, false
}

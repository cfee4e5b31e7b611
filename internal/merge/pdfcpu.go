package merge

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// stampDescription places an overlay page at its natural size on the
// bottom-left corner of the target page.
const stampDescription = "scalefactor:1 abs, position:bl, rotation:0"

// PdfcpuBackend stamps overlay pages onto the template in process.
type PdfcpuBackend struct {
	conf *model.Configuration
}

func NewPdfcpuBackend() *PdfcpuBackend {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PdfcpuBackend{conf: conf}
}

func (b *PdfcpuBackend) Name() string { return BackendPdfcpu }

// Stamps are drawn as page content; annotations are not carried over.
func (b *PdfcpuBackend) PreservesWidgets() bool { return false }

func (b *PdfcpuBackend) Check(context.Context) error { return nil }

func (b *PdfcpuBackend) Merge(ctx context.Context, req Request) ([]byte, error) {
	plan, err := Plan(req.TemplatePages, req.PageMap)
	if err != nil {
		return nil, err
	}

	ws, err := newWorkspace(req)
	if err != nil {
		return nil, err
	}
	defer ws.Close()

	if err := copyFile(ws.template(), ws.output()); err != nil {
		return nil, err
	}

	for page, k := range plan {
		if k < 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		wm, err := api.PDFWatermark(ws.overlay()+":"+strconv.Itoa(k+1), stampDescription, true, false, types.POINTS)
		if err != nil {
			return nil, fmt.Errorf("failed to prepare stamp for page %d: %w", page+1, err)
		}
		if err := api.AddWatermarksFile(ws.output(), "", []string{strconv.Itoa(page + 1)}, wm, b.conf); err != nil {
			return nil, fmt.Errorf("failed to stamp page %d: %w", page+1, err)
		}
	}

	if req.Flatten {
		if err := b.flatten(ws.output()); err != nil {
			return nil, err
		}
	}
	return ws.readOutput()
}

// flatten drops the interactive form and every page annotation.
func (b *PdfcpuBackend) flatten(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	pdfCtx, err := api.ReadContext(f, b.conf)
	f.Close()
	if err != nil {
		return fmt.Errorf("failed to read merged document: %w", err)
	}
	if err := pdfCtx.EnsurePageCount(); err != nil {
		return fmt.Errorf("failed to ensure page count: %w", err)
	}

	rootDict, err := pdfCtx.Catalog()
	if err != nil {
		return fmt.Errorf("failed to read catalog: %w", err)
	}
	rootDict.Delete("AcroForm")

	for p := 1; p <= pdfCtx.PageCount; p++ {
		pageDict, _, _, err := pdfCtx.PageDict(p, false)
		if err != nil {
			return fmt.Errorf("failed to read page %d: %w", p, err)
		}
		pageDict.Delete("Annots")
	}

	if err := api.WriteContextFile(pdfCtx, path); err != nil {
		return fmt.Errorf("failed to write flattened document: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o600)
}

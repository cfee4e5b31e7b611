// Package merge composites a rendered overlay onto its template. Backends
// run in process (pdfcpu) or shell out to python3 with PyPDF2 or to bun with
// pdf-lib.
package merge

import (
	"context"
	"fmt"
)

// Backend names accepted by New.
const (
	BackendPython = "python"
	BackendBun    = "bun"
	BackendPdfcpu = "pdfcpu"
)

// Request carries both documents and the page correspondence between them.
type Request struct {
	Template []byte
	Overlay  []byte
	// TemplatePages is the page count of Template.
	TemplatePages int
	// PageMap holds, for every overlay page k, the template page index it
	// is composited onto.
	PageMap []int
	// Flatten removes the interactive form and all page annotations.
	Flatten bool
}

// Backend composites an overlay onto a template.
type Backend interface {
	Name() string
	// Check verifies runtime dependencies before any work is done.
	Check(ctx context.Context) error
	// PreservesWidgets reports whether overlay annotations survive an
	// unflattened merge.
	PreservesWidgets() bool
	Merge(ctx context.Context, req Request) ([]byte, error)
}

// Options configure New.
type Options struct {
	Backend string
	// BunScript overrides the bundled pdf-lib script.
	BunScript string
	Prompter  Prompter
	Runner    Runner
}

// New returns the backend named by opts.Backend.
func New(opts Options) (Backend, error) {
	if opts.Runner == nil {
		opts.Runner = ExecRunner{}
	}
	if opts.Prompter == nil {
		opts.Prompter = SurveyPrompter{}
	}

	switch opts.Backend {
	case "", BackendPython:
		return NewPythonBackend(opts.Runner, opts.Prompter), nil
	case BackendBun:
		return NewBunBackend(opts.Runner, opts.BunScript), nil
	case BackendPdfcpu:
		return NewPdfcpuBackend(), nil
	}
	return nil, fmt.Errorf("unknown merge backend %q (valid: python, bun, pdfcpu)", opts.Backend)
}

// Plan inverts a page map: the result has one entry per template page
// holding the overlay page index to composite onto it, or -1.
func Plan(templatePages int, pageMap []int) ([]int, error) {
	plan := make([]int, templatePages)
	for i := range plan {
		plan[i] = -1
	}
	for k, idx := range pageMap {
		if idx < 0 || idx >= templatePages {
			return nil, fmt.Errorf("overlay page %d targets template page %d, template has %d pages", k, idx, templatePages)
		}
		if plan[idx] != -1 {
			return nil, fmt.Errorf("template page %d is targeted by overlay pages %d and %d", idx, plan[idx], k)
		}
		plan[idx] = k
	}
	return plan, nil
}

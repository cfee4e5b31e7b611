// Package fill runs a complete fill job: it acquires the template, resolves
// remote images, renders the overlay and hands both documents to a merge
// backend.
package fill

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/omofolarin/fill-pdf/internal/cache"
	"github.com/omofolarin/fill-pdf/internal/fetch"
	"github.com/omofolarin/fill-pdf/internal/geometry"
	"github.com/omofolarin/fill-pdf/internal/merge"
	"github.com/omofolarin/fill-pdf/internal/model"
	"github.com/omofolarin/fill-pdf/internal/overlay"
	fillerrors "github.com/omofolarin/fill-pdf/internal/pdf/errors"
)

// DefaultMergeTimeout bounds a merge when the caller sets none.
const DefaultMergeTimeout = 2 * time.Minute

// Config wires the collaborators of a Service.
type Config struct {
	Backend merge.Backend
	// Fetcher defaults to a client with fetch.DefaultTimeout.
	Fetcher *fetch.Client
	// Cache is optional. Without it remote templates are always fetched.
	Cache        *cache.TemplateCache
	MergeTimeout time.Duration
}

// Service runs fill jobs. It is safe for sequential reuse.
type Service struct {
	backend      merge.Backend
	fetcher      *fetch.Client
	cache        *cache.TemplateCache
	mergeTimeout time.Duration
}

// NewService creates a service from cfg.
func NewService(cfg Config) (*Service, error) {
	if cfg.Backend == nil {
		return nil, fmt.Errorf("merge backend is required")
	}
	if cfg.Fetcher == nil {
		cfg.Fetcher = fetch.NewClient(0)
	}
	if cfg.MergeTimeout <= 0 {
		cfg.MergeTimeout = DefaultMergeTimeout
	}
	return &Service{
		backend:      cfg.Backend,
		fetcher:      cfg.Fetcher,
		cache:        cfg.Cache,
		mergeTimeout: cfg.MergeTimeout,
	}, nil
}

// Request describes one fill job.
type Request struct {
	// Template is a path, an http(s) URL or a JSON request descriptor.
	Template string
	Fields   []model.FieldData
	// Flatten removes interactive fields from the output.
	Flatten bool
	// TextOverflow applies to fields without their own setting.
	TextOverflow model.TextOverflow
	UseCache     bool
	RefreshCache bool
}

// Result is a finished job.
type Result struct {
	PDF       []byte
	Metadata  *model.ProcessingMetadata
	Pages     []model.PageGeometry
	FromCache bool
}

// Fill runs the job. Field problems end up in the result metadata; an error
// is returned only when the template cannot be obtained or the merge fails.
func (s *Service) Fill(ctx context.Context, req Request) (*Result, error) {
	if err := s.backend.Check(ctx); err != nil {
		return nil, fillerrors.Compositing(s.backend.Name(), err)
	}

	tmpl, err := s.loadTemplate(ctx, req.Template, req.UseCache, req.RefreshCache)
	if err != nil {
		return nil, err
	}

	pages, err := geometry.Extract(tmpl.data)
	if err != nil {
		return nil, fillerrors.TemplateAcquisition(req.Template, err)
	}
	log.Printf("[fill] Template has %d page(s)", len(pages))

	fields := make([]model.FieldData, len(req.Fields))
	copy(fields, req.Fields)
	overflow := req.TextOverflow
	if overflow == "" {
		overflow = model.OverflowVisible
	}
	model.ApplyTextOverflow(fields, overflow)

	fields, imageWarnings := s.fetcher.ResolveImages(ctx, fields)

	rendered, err := overlay.Render(fields, pages, overlay.Options{
		PaintWidgetAppearances: req.Flatten || !s.backend.PreservesWidgets(),
	})
	if err != nil {
		return nil, fillerrors.Compositing("overlay", err)
	}

	meta := rendered.Metadata
	var early []string
	for _, w := range append(tmpl.warnings, imageWarnings...) {
		early = append(early, w.Error())
	}
	meta.Warnings = append(early, meta.Warnings...)
	if meta.Warnings == nil {
		meta.Warnings = []string{}
	}

	mergeCtx, cancel := context.WithTimeout(ctx, s.mergeTimeout)
	defer cancel()
	merged, err := s.backend.Merge(mergeCtx, merge.Request{
		Template:      tmpl.data,
		Overlay:       rendered.PDF,
		TemplatePages: len(pages),
		PageMap:       rendered.PageMap,
		Flatten:       req.Flatten,
	})
	if err != nil {
		return nil, fillerrors.Compositing(s.backend.Name(), err)
	}

	return &Result{
		PDF:       merged,
		Metadata:  meta,
		Pages:     pages,
		FromCache: tmpl.fromCache,
	}, nil
}

// PageInfo returns the page geometry of a template.
func (s *Service) PageInfo(ctx context.Context, template string, useCache bool) ([]model.PageGeometry, error) {
	tmpl, err := s.loadTemplate(ctx, template, useCache, false)
	if err != nil {
		return nil, err
	}
	pages, err := geometry.Extract(tmpl.data)
	if err != nil {
		return nil, fillerrors.TemplateAcquisition(template, err)
	}
	return pages, nil
}

// ClearCache empties the template cache, if one is configured.
func (s *Service) ClearCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Clear(ctx)
}

// WriteOutputs stores the filled document and, when metadataPath is set, the
// metadata as indented JSON.
func WriteOutputs(res *Result, outputPath, metadataPath string) error {
	if err := os.WriteFile(outputPath, res.PDF, 0o644); err != nil {
		return fmt.Errorf("failed to write output %s: %w", outputPath, err)
	}
	if metadataPath == "" {
		return nil
	}

	data, err := json.MarshalIndent(res.Metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := os.WriteFile(metadataPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata %s: %w", metadataPath, err)
	}
	return nil
}

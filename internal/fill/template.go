package fill

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/omofolarin/fill-pdf/internal/cache"
	"github.com/omofolarin/fill-pdf/internal/fetch"
	fillerrors "github.com/omofolarin/fill-pdf/internal/pdf/errors"
)

// templateResult is the outcome of acquiring template bytes.
type templateResult struct {
	data      []byte
	fromCache bool
	warnings  []error
}

// loadTemplate reads a local template or downloads a remote one, going
// through the cache when useCache is set.
func (s *Service) loadTemplate(ctx context.Context, raw string, useCache, refresh bool) (*templateResult, error) {
	src, err := fetch.ParseSource(raw)
	if err != nil {
		return nil, fillerrors.TemplateAcquisition(raw, err)
	}

	if !src.IsRemote() {
		data, err := os.ReadFile(src.Path)
		if err != nil {
			return nil, fillerrors.TemplateAcquisition(src.Path, err)
		}
		return &templateResult{data: data}, nil
	}

	if !useCache || s.cache == nil {
		log.Printf("[fill] Fetching template from %s", src)
		resp, err := s.fetcher.Fetch(ctx, *src.URL)
		if err != nil {
			return nil, fillerrors.TemplateAcquisition(src.String(), err)
		}
		return &templateResult{data: resp.Body}, nil
	}

	key := cache.GenerateKey(src.Raw)
	res := &templateResult{}

	if refresh {
		log.Printf("[fill] Forcing cache refresh for %s", src)
		return s.fetchAndStore(ctx, src, key, res)
	}

	entry, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		log.Printf("[fill] cache read failed, fetching: %v", err)
		res.warnings = append(res.warnings, fmt.Errorf("template cache unavailable: %w", err))
		return s.fetchAndStore(ctx, src, key, res)
	}
	if !ok {
		log.Printf("[fill] Fetching and caching template %s", src)
		return s.fetchAndStore(ctx, src, key, res)
	}

	log.Printf("[fill] Using cached template")
	if !entry.HasValidators() {
		res.data, res.fromCache = entry.TemplateBytes, true
		return res, nil
	}

	fresh, err := s.fetcher.Validate(ctx, *src.URL, entry.ETag, entry.LastModified)
	switch {
	case err != nil:
		log.Printf("[fill] Cache validation failed, using cached version: %v", err)
		res.warnings = append(res.warnings, fillerrors.CacheValidation(err))
		res.data, res.fromCache = entry.TemplateBytes, true
		return res, nil
	case fresh:
		res.data, res.fromCache = entry.TemplateBytes, true
		return res, nil
	}

	log.Printf("[fill] Template updated, refreshing cache")
	return s.fetchAndStore(ctx, src, key, res)
}

func (s *Service) fetchAndStore(ctx context.Context, src fetch.Source, key string, res *templateResult) (*templateResult, error) {
	resp, err := s.fetcher.Fetch(ctx, *src.URL)
	if err != nil {
		return nil, fillerrors.TemplateAcquisition(src.String(), err)
	}
	if err := s.cache.Put(ctx, key, resp.Body, resp.ETag, resp.LastModified); err != nil {
		log.Printf("[fill] failed to cache template: %v", err)
		res.warnings = append(res.warnings, fmt.Errorf("failed to cache template: %w", err))
	}
	res.data = resp.Body
	return res, nil
}

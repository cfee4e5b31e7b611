package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omofolarin/fill-pdf/internal/cache"
	"github.com/omofolarin/fill-pdf/internal/config"
	"github.com/omofolarin/fill-pdf/internal/geometry"
	"github.com/omofolarin/fill-pdf/internal/merge"
	"github.com/omofolarin/fill-pdf/internal/model"
	"github.com/omofolarin/fill-pdf/internal/overlay"
)

const testVersion = "1.2.3"

func writeTemplate(t *testing.T, dir string, pages int) string {
	t.Helper()
	geo := make([]model.PageGeometry, pages)
	fields := make([]model.FieldData, pages)
	for i := range geo {
		geo[i] = model.PageGeometry{Index: i, Width: 612, Height: 792}
		fields[i] = model.FieldData{FieldID: "p", Page: i, Width: 10, Height: 10, Value: model.Text("")}
	}
	res, err := overlay.Render(fields, geo, overlay.Options{})
	require.NoError(t, err)

	path := filepath.Join(dir, "template.pdf")
	require.NoError(t, os.WriteFile(path, res.PDF, 0o644))
	return path
}

func TestPrintVersion(t *testing.T) {
	oldVersion, oldBuildTime, oldGitCommit := version, buildTime, gitCommit
	version, buildTime, gitCommit = testVersion, "2024-06-01_10:30:00", "abc123"
	defer func() { version, buildTime, gitCommit = oldVersion, oldBuildTime, oldGitCommit }()

	var buf bytes.Buffer
	printVersion(&buf)
	output := buf.String()

	for _, want := range []string{"fill-pdf", "Version: " + testVersion, "Build Time: 2024-06-01_10:30:00", "Git Commit: abc123", "Built with: go"} {
		if !strings.Contains(output, want) {
			t.Errorf("printVersion() output missing %q, got:\n%s", want, output)
		}
	}
}

func TestRun_Version(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--version"}, &stdout, &stderr)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), "Version:")
}

func TestRun_UsageErrors(t *testing.T) {
	for _, args := range [][]string{nil, {"bogus"}, {"fill", "-t", "a.pdf"}, {"fill", "--merge-backend", "gs"}} {
		var stdout, stderr bytes.Buffer
		code := run(context.Background(), args, &stdout, &stderr)
		assert.Equal(t, 2, code, "args %v", args)
		assert.Contains(t, stderr.String(), "Error:")
	}
}

func TestRun_Info(t *testing.T) {
	dir := t.TempDir()
	tmpl := writeTemplate(t, dir, 2)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"info", "-t", tmpl}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Equal(t, "Pages: 2\n  Page 0: 612 x 792 pt\n  Page 1: 612 x 792 pt\n", stdout.String())
}

func TestRun_FillWithPdfcpu(t *testing.T) {
	dir := t.TempDir()
	tmpl := writeTemplate(t, dir, 3)

	fields := []map[string]interface{}{
		{"field_id": "name", "page": 1, "x": 72, "y": 100, "width": 200, "height": 20, "field_type": "text", "value": "Jane Doe"},
		{"field_id": "agree", "page": 1, "x": 72, "y": 150, "width": 12, "height": 12, "field_type": "checkbox", "value": true},
		{"field_id": "ghost", "page": 7, "x": 0, "y": 0, "width": 10, "height": 10, "field_type": "text", "value": "x"},
	}
	data, err := json.Marshal(fields)
	require.NoError(t, err)
	dataPath := filepath.Join(dir, "fields.json")
	require.NoError(t, os.WriteFile(dataPath, data, 0o644))

	out := filepath.Join(dir, "out.pdf")
	metaPath := filepath.Join(dir, "meta.json")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"fill", "-t", tmpl, "-d", dataPath, "-o", out, "-m", metaPath, "--merge-backend", "pdfcpu",
	}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	summary := stdout.String()
	assert.Contains(t, summary, "PDF written to "+out)
	assert.Contains(t, summary, "Pages with fields: 1 of 3")
	assert.Contains(t, summary, "Fields processed: 2, skipped: 1")
	assert.Contains(t, summary, "Page 7 not found")

	pages, err := geometry.ExtractFile(out)
	require.NoError(t, err)
	assert.Len(t, pages, 3)

	raw, err := os.ReadFile(metaPath)
	require.NoError(t, err)
	var meta model.ProcessingMetadata
	require.NoError(t, json.Unmarshal(raw, &meta))
	assert.Equal(t, []int{1}, meta.PageMap())
}

func TestRun_FillFailureWritesNothing(t *testing.T) {
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "fields.json")
	require.NoError(t, os.WriteFile(dataPath, []byte("[]"), 0o644))
	out := filepath.Join(dir, "out.pdf")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"fill", "-t", filepath.Join(dir, "missing.pdf"), "-d", dataPath, "-o", out, "--merge-backend", "pdfcpu",
	}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "cannot load template")

	_, err := os.Stat(out)
	assert.True(t, os.IsNotExist(err))
}

func TestRun_CacheClear(t *testing.T) {
	dir := t.TempDir()
	store, err := cache.NewDiskStore(dir)
	require.NoError(t, err)
	c := cache.New(store, cache.DefaultTTL)
	ctx := context.Background()
	require.NoError(t, c.Put(ctx, "k", []byte("pdf"), "", ""))

	var stdout, stderr bytes.Buffer
	code := run(ctx, []string{"cache", "clear", "--cache-dir", dir}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Equal(t, "Template cache cleared\n", stdout.String())

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBuildCache(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.CacheDir = t.TempDir()

	c, closeCache, err := buildCache(cfg)
	require.NoError(t, err)
	defer closeCache()
	assert.Nil(t, c, "fill without --cache does not open a store")

	cfg.Cache = true
	c, closeCache, err = buildCache(cfg)
	require.NoError(t, err)
	defer closeCache()
	require.NotNil(t, c)
	assert.Equal(t, cfg.CacheTTLDuration(), c.TTL())

	cfg.CacheStore = config.StoreRedis
	cfg.RedisAddr = "127.0.0.1:1"
	c, closeCache, err = buildCache(cfg)
	require.NoError(t, err)
	closeCache()
	assert.NotNil(t, c)
}

func TestMergeOptions(t *testing.T) {
	tests := []struct {
		name      string
		command   string
		assumeYes bool
		want      merge.Prompter
	}{
		{"fill asks on the terminal", config.CommandFill, false, nil},
		{"fill with yes", config.CommandFill, true, merge.StaticPrompter(true)},
		{"serve never prompts", config.CommandServe, false, merge.StaticPrompter(false)},
		{"serve with yes", config.CommandServe, true, merge.StaticPrompter(true)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Command = tt.command
			cfg.AssumeYes = tt.assumeYes

			opts := mergeOptions(cfg)
			assert.Equal(t, tt.want, opts.Prompter)
			assert.Equal(t, cfg.MergeBackend, opts.Backend)
		})
	}
}

func TestSetupLogging(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.DefaultConfig()
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	setupLogging(cfg, &buf)
	log.Print("visible")
	assert.Contains(t, buf.String(), "visible")

	buf.Reset()
	cfg.Command = config.CommandServe
	setupLogging(cfg, &buf)
	log.Print("hidden")
	assert.Empty(t, buf.String(), "serve logs nothing unless debug")

	cfg.LogLevel = "debug"
	setupLogging(cfg, &buf)
	log.Print("debug line")
	assert.Contains(t, buf.String(), "debug line")
}

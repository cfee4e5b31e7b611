package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omofolarin/fill-pdf/internal/cache"
	"github.com/omofolarin/fill-pdf/internal/config"
	"github.com/omofolarin/fill-pdf/internal/fill"
	"github.com/omofolarin/fill-pdf/internal/merge"
	"github.com/omofolarin/fill-pdf/internal/model"
	"github.com/omofolarin/fill-pdf/internal/overlay"
)

type fakeBackend struct {
	got *merge.Request
}

func (f *fakeBackend) Name() string                { return "fake" }
func (f *fakeBackend) Check(context.Context) error { return nil }
func (f *fakeBackend) PreservesWidgets() bool      { return true }
func (f *fakeBackend) Merge(_ context.Context, req merge.Request) ([]byte, error) {
	f.got = &req
	return []byte("MERGED"), nil
}

// writeTemplate stores a blank PDF with the given number of A4 pages.
func writeTemplate(t *testing.T, dir string, pages int) string {
	t.Helper()
	geo := make([]model.PageGeometry, pages)
	fields := make([]model.FieldData, pages)
	for i := range geo {
		geo[i] = model.PageGeometry{Index: i, Width: 595, Height: 842}
		fields[i] = model.FieldData{FieldID: "p", Page: i, Width: 10, Height: 10, Value: model.Text("")}
	}
	res, err := overlay.Render(fields, geo, overlay.Options{})
	require.NoError(t, err)

	path := filepath.Join(dir, "template.pdf")
	require.NoError(t, os.WriteFile(path, res.PDF, 0o644))
	return path
}

func newTestServer(t *testing.T, backend merge.Backend, c *cache.TemplateCache) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Command = config.CommandServe
	cfg.WorkingDir = dir
	cfg.ServerName = "test-server"

	service, err := fill.NewService(fill.Config{Backend: backend, Cache: c})
	require.NoError(t, err)
	s, err := NewServer(cfg, service)
	require.NoError(t, err)
	return s, dir
}

func callRequest(args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func extractTextFromResult(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}
	for _, content := range result.Content {
		if textContent, ok := content.(mcp.TextContent); ok {
			return textContent.Text
		}
		if textContentPtr, ok := content.(*mcp.TextContent); ok {
			return textContentPtr.Text
		}
	}
	return ""
}

func TestNewServer(t *testing.T) {
	service, err := fill.NewService(fill.Config{Backend: &fakeBackend{}})
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.WorkingDir = t.TempDir()

	s, err := NewServer(cfg, service)
	require.NoError(t, err)
	assert.Same(t, cfg, s.config)
	assert.Same(t, service, s.service)
	assert.NotNil(t, s.mcpServer)
	assert.Equal(t, cfg.WorkingDir, s.guard.Root())

	_, err = NewServer(cfg, nil)
	assert.Error(t, err)

	cfg.WorkingDir = filepath.Join(t.TempDir(), "missing")
	_, err = NewServer(cfg, service)
	assert.Error(t, err)
}

func TestServer_HandlePDFFill(t *testing.T) {
	backend := &fakeBackend{}
	s, dir := newTestServer(t, backend, nil)
	writeTemplate(t, dir, 2)

	fields, err := json.Marshal([]map[string]interface{}{
		{"field_id": "name", "page": 1, "x": 50, "y": 700, "width": 200, "height": 20, "field_type": "text", "value": "Jane"},
		{"field_id": "late", "page": 9, "x": 0, "y": 0, "width": 10, "height": 10, "field_type": "text", "value": "x"},
	})
	require.NoError(t, err)

	result, err := s.handlePDFFill(context.Background(), callRequest(map[string]interface{}{
		"template":        "template.pdf",
		"output":          "out.pdf",
		"fields":          string(fields),
		"metadata_output": "meta.json",
		"flatten":         false,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, extractTextFromResult(result))

	text := extractTextFromResult(result)
	assert.Contains(t, text, "Successfully filled PDF: "+filepath.Join(dir, "out.pdf"))
	assert.Contains(t, text, "Template pages: 2")
	assert.Contains(t, text, "Fields processed: 1")
	assert.Contains(t, text, "Fields skipped: 1")
	assert.Contains(t, text, "Page 9")

	data, err := os.ReadFile(filepath.Join(dir, "out.pdf"))
	require.NoError(t, err)
	assert.Equal(t, []byte("MERGED"), data)

	meta, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	require.NoError(t, err)
	assert.Contains(t, string(meta), `"fieldsProcessed": 1`)

	require.NotNil(t, backend.got)
	assert.False(t, backend.got.Flatten)
	assert.Equal(t, []int{1}, backend.got.PageMap)
}

func TestServer_HandlePDFFill_FieldsFile(t *testing.T) {
	backend := &fakeBackend{}
	s, dir := newTestServer(t, backend, nil)
	writeTemplate(t, dir, 1)

	yamlFields := "- field_id: ok\n  page: 0\n  x: 10\n  y: 10\n  width: 12\n  height: 12\n  field_type: checkbox\n  value: true\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fields.yaml"), []byte(yamlFields), 0o644))

	result, err := s.handlePDFFill(context.Background(), callRequest(map[string]interface{}{
		"template":    filepath.Join(dir, "template.pdf"),
		"output":      "out.pdf",
		"fields_file": "fields.yaml",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, extractTextFromResult(result))
	assert.True(t, backend.got.Flatten, "flatten defaults to true")
}

func TestServer_HandlePDFFill_Errors(t *testing.T) {
	s, dir := newTestServer(t, &fakeBackend{}, nil)
	writeTemplate(t, dir, 1)

	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{
			name: "missing template",
			args: map[string]interface{}{"output": "out.pdf", "fields": "[]"},
			want: "template",
		},
		{
			name: "missing output",
			args: map[string]interface{}{"template": "template.pdf", "fields": "[]"},
			want: "output",
		},
		{
			name: "template outside directory",
			args: map[string]interface{}{"template": "../other.pdf", "output": "out.pdf", "fields": "[]"},
			want: "outside configured directory",
		},
		{
			name: "output outside directory",
			args: map[string]interface{}{"template": "template.pdf", "output": "/tmp/../etc/out.pdf", "fields": "[]"},
			want: "outside configured directory",
		},
		{
			name: "no field data",
			args: map[string]interface{}{"template": "template.pdf", "output": "out.pdf"},
			want: "fields",
		},
		{
			name: "invalid field json",
			args: map[string]interface{}{"template": "template.pdf", "output": "out.pdf", "fields": `[{"field_type":"slider"}]`},
			want: "invalid fields",
		},
		{
			name: "missing template file",
			args: map[string]interface{}{"template": "nope.pdf", "output": "out.pdf", "fields": "[]"},
			want: "nope.pdf",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := s.handlePDFFill(context.Background(), callRequest(tt.args))
			require.NoError(t, err)
			assert.True(t, result.IsError)
			assert.Contains(t, extractTextFromResult(result), tt.want)
		})
	}

	_, err := os.Stat(filepath.Join(dir, "out.pdf"))
	assert.True(t, os.IsNotExist(err), "no output is written for failed calls")
}

func TestServer_HandlePDFPageInfo(t *testing.T) {
	s, dir := newTestServer(t, &fakeBackend{}, nil)
	writeTemplate(t, dir, 2)

	result, err := s.handlePDFPageInfo(context.Background(), callRequest(map[string]interface{}{
		"template": "template.pdf",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, extractTextFromResult(result))

	text := extractTextFromResult(result)
	assert.Contains(t, text, "Pages: 2")
	assert.Contains(t, text, "Page 0: 595 x 842 pt")
	assert.Contains(t, text, "Page 1: 595 x 842 pt")

	result, err = s.handlePDFPageInfo(context.Background(), callRequest(map[string]interface{}{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestServer_HandlePDFCacheClear(t *testing.T) {
	store, err := cache.NewDiskStore(t.TempDir())
	require.NoError(t, err)
	c := cache.New(store, cache.DefaultTTL)
	ctx := context.Background()
	require.NoError(t, c.Put(ctx, "k", []byte("pdf"), "", ""))

	s, _ := newTestServer(t, &fakeBackend{}, c)
	result, err := s.handlePDFCacheClear(ctx, callRequest(nil))
	require.NoError(t, err)
	assert.Equal(t, "Template cache cleared", extractTextFromResult(result))

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolveTemplate(t *testing.T) {
	s, dir := newTestServer(t, &fakeBackend{}, nil)

	got, err := s.resolveTemplate("form.pdf")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "form.pdf"), got)

	for _, remote := range []string{"https://example.com/form.pdf", `{"url":"https://example.com/form.pdf","method":"POST"}`} {
		got, err := s.resolveTemplate(remote)
		require.NoError(t, err)
		assert.Equal(t, remote, got)
	}

	_, err = s.resolveTemplate(`{"method":"GET"}`)
	assert.Error(t, err)
}

func TestArgHelpers(t *testing.T) {
	args := map[string]any{"s": "v", "b": true, "bs": "true", "n": 3}
	assert.Equal(t, "v", stringArg(args, "s"))
	assert.Equal(t, "", stringArg(args, "n"))
	assert.True(t, boolArg(args, "b", false))
	assert.True(t, boolArg(args, "bs", false))
	assert.True(t, boolArg(args, "missing", true))
	assert.False(t, boolArg(nil, "missing", false))
}

func TestFormatFillResult(t *testing.T) {
	meta := model.NewProcessingMetadata()
	meta.Warnings = []string{"w1"}
	meta.Errors = []string{"e1"}
	text := formatFillResult("out.pdf", &fill.Result{Metadata: meta, FromCache: true})

	assert.True(t, strings.HasPrefix(text, "Successfully filled PDF: out.pdf\n"))
	assert.Contains(t, text, "Template served from cache")
	assert.Contains(t, text, "Warnings:\n  - w1")
	assert.Contains(t, text, "Errors:\n  - e1")
}

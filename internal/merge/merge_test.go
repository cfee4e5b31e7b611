package merge

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fillmodel "github.com/omofolarin/fill-pdf/internal/model"
	"github.com/omofolarin/fill-pdf/internal/overlay"
)

type call struct {
	name string
	args []string
}

// fakeRunner records calls and fails the commands listed in fail. When a
// call carries an output path it writes "MERGED" there.
type fakeRunner struct {
	calls  []call
	fail   map[string]bool
	stdout string
	files  map[string][]byte
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, call{name: name, args: args})
	key := strings.TrimSpace(name + " " + strings.Join(args, " "))
	for prefix := range f.fail {
		if strings.HasPrefix(key, prefix) {
			return nil, errors.New("exit status 1")
		}
	}

	if f.files == nil {
		f.files = map[string][]byte{}
	}
	for i, a := range args {
		if strings.HasSuffix(a, "template.pdf") || strings.HasSuffix(a, "overlay.pdf") {
			data, _ := os.ReadFile(a)
			f.files[a[strings.LastIndex(a, "/")+1:]] = data
		}
		if strings.HasSuffix(a, "merged.pdf") {
			_ = os.WriteFile(a, []byte("MERGED"), 0o600)
		}
		if a == "--output" && i+1 < len(args) {
			_ = os.WriteFile(args[i+1], []byte("MERGED"), 0o600)
		}
	}
	return []byte(f.stdout), nil
}

func TestPlan(t *testing.T) {
	tests := []struct {
		name    string
		pages   int
		pageMap []int
		want    []int
		wantErr bool
	}{
		{"identity", 2, []int{0, 1}, []int{0, 1}, false},
		{"middle page only", 3, []int{1}, []int{-1, 0, -1}, false},
		{"sparse", 5, []int{0, 2, 4}, []int{0, -1, 1, -1, 2}, false},
		{"empty overlay", 2, nil, []int{-1, -1}, false},
		{"out of range", 2, []int{2}, nil, true},
		{"negative", 2, []int{-1}, nil, true},
		{"duplicate target", 2, []int{1, 1}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Plan(tt.pages, tt.pageMap)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew(t *testing.T) {
	for name, want := range map[string]string{"": BackendPython, "python": BackendPython, "bun": BackendBun, "pdfcpu": BackendPdfcpu} {
		b, err := New(Options{Backend: name})
		require.NoError(t, err)
		assert.Equal(t, want, b.Name())
	}

	_, err := New(Options{Backend: "ghostscript"})
	assert.Error(t, err)
}

func TestPythonBackend_Check(t *testing.T) {
	ctx := context.Background()

	t.Run("all present", func(t *testing.T) {
		r := &fakeRunner{}
		require.NoError(t, NewPythonBackend(r, StaticPrompter(false)).Check(ctx))
		assert.Len(t, r.calls, 2)
	})

	t.Run("no python", func(t *testing.T) {
		r := &fakeRunner{fail: map[string]bool{"python3 --version": true}}
		err := NewPythonBackend(r, StaticPrompter(true)).Check(ctx)
		assert.ErrorContains(t, err, "python3 is not installed")
	})

	t.Run("declined install", func(t *testing.T) {
		r := &fakeRunner{fail: map[string]bool{"python3 -c import PyPDF2": true}}
		err := NewPythonBackend(r, StaticPrompter(false)).Check(ctx)
		assert.ErrorContains(t, err, "PyPDF2 is required")
	})

	t.Run("installs with the first working pip", func(t *testing.T) {
		r := &fakeRunner{fail: map[string]bool{
			"python3 -c import PyPDF2": true,
			"pip3 install":             true,
		}}
		require.NoError(t, NewPythonBackend(r, StaticPrompter(true)).Check(ctx))
		last := r.calls[len(r.calls)-1]
		assert.Equal(t, "pip", last.name)
		assert.Equal(t, []string{"install", "PyPDF2"}, last.args)
	})

	t.Run("every pip fails", func(t *testing.T) {
		r := &fakeRunner{fail: map[string]bool{
			"python3 -c import PyPDF2": true,
			"pip":                      true,
			"python3 -m pip":           true,
			"python -m pip":            true,
		}}
		err := NewPythonBackend(r, StaticPrompter(true)).Check(ctx)
		assert.ErrorContains(t, err, "failed to install PyPDF2")
	})
}

func TestPythonBackend_Merge(t *testing.T) {
	r := &fakeRunner{}
	b := NewPythonBackend(r, StaticPrompter(false))

	out, err := b.Merge(context.Background(), Request{
		Template:      []byte("T"),
		Overlay:       []byte("O"),
		TemplatePages: 3,
		PageMap:       []int{1},
		Flatten:       true,
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("MERGED"), out)

	require.Len(t, r.calls, 1)
	c := r.calls[0]
	assert.Equal(t, "python3", c.name)
	require.Len(t, c.args, 7)
	assert.Equal(t, "-c", c.args[0])
	assert.Contains(t, c.args[1], "merge_page")
	assert.Equal(t, "[-1,0,-1]", c.args[5])
	assert.Equal(t, "1", c.args[6])
	assert.Equal(t, []byte("T"), r.files["template.pdf"])
	assert.Equal(t, []byte("O"), r.files["overlay.pdf"])

	// the job directory is removed afterwards
	_, err = os.Stat(c.args[2])
	assert.True(t, os.IsNotExist(err))
}

func TestPythonBackend_KeepsFormFields(t *testing.T) {
	ctx := context.Background()
	if _, err := (ExecRunner{}).Run(ctx, "python3", "-c", "import PyPDF2"); err != nil {
		t.Skip("python3 with PyPDF2 not available")
	}

	template := renderPDF(t, 2, []fillmodel.FieldData{
		{FieldID: "a", Page: 0, X: 50, Y: 50, Width: 100, Height: 20, Value: fillmodel.Text("a")},
		{FieldID: "b", Page: 1, X: 50, Y: 50, Width: 100, Height: 20, Value: fillmodel.Text("b")},
	})
	ov := renderPDF(t, 2, []fillmodel.FieldData{
		{FieldID: "agree", Page: 1, X: 72, Y: 72, Width: 12, Height: 12, Value: fillmodel.Checkbox(true)},
	})

	out, err := NewPythonBackend(ExecRunner{}, StaticPrompter(false)).Merge(ctx, Request{
		Template:      template,
		Overlay:       ov,
		TemplatePages: 2,
		PageMap:       []int{1},
	})
	require.NoError(t, err)

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	pdfCtx, err := api.ReadContext(bytes.NewReader(out), conf)
	require.NoError(t, err)

	root, err := pdfCtx.Catalog()
	require.NoError(t, err)
	form, err := pdfCtx.DereferenceDict(root["AcroForm"])
	require.NoError(t, err)
	require.NotNil(t, form, "merged document registers the overlay widgets")
	fields, err := pdfCtx.DereferenceArray(form["Fields"])
	require.NoError(t, err)
	assert.Len(t, fields, 1)
}

func TestPythonBackend_MergeFailure(t *testing.T) {
	r := &fakeRunner{fail: map[string]bool{"python3 -c": true}}
	_, err := NewPythonBackend(r, StaticPrompter(false)).Merge(context.Background(), Request{TemplatePages: 1})
	assert.ErrorContains(t, err, "merge failed")
}

func TestBunBackend_Merge(t *testing.T) {
	r := &fakeRunner{stdout: "SUCCESS: 12.5ms\n"}
	b := NewBunBackend(r, "")

	out, err := b.Merge(context.Background(), Request{TemplatePages: 2, PageMap: []int{0, 1}})
	require.NoError(t, err)
	assert.Equal(t, []byte("MERGED"), out)

	c := r.calls[0]
	assert.Equal(t, "bun", c.name)
	assert.Equal(t, "run", c.args[0])
	assert.True(t, strings.HasSuffix(c.args[1], "merge_pdfs.ts"))
	assert.Equal(t, []string{"--plan", "[0,1]"}, c.args[8:10])
	assert.NotContains(t, c.args, "--flatten")
}

func TestBunBackend_Check(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, NewBunBackend(&fakeRunner{}, "").Check(ctx))
	assert.Error(t, NewBunBackend(&fakeRunner{fail: map[string]bool{"bun": true}}, "").Check(ctx))
	assert.Error(t, NewBunBackend(&fakeRunner{}, "/does/not/exist.ts").Check(ctx))
}

func TestBackends_RejectBadPageMap(t *testing.T) {
	req := Request{TemplatePages: 1, PageMap: []int{3}}
	for _, b := range []Backend{
		NewPythonBackend(&fakeRunner{}, StaticPrompter(false)),
		NewBunBackend(&fakeRunner{}, ""),
		NewPdfcpuBackend(),
	} {
		_, err := b.Merge(context.Background(), req)
		assert.Error(t, err, b.Name())
	}
}

func renderPDF(t *testing.T, pages int, fields []fillmodel.FieldData) []byte {
	t.Helper()
	geom := make([]fillmodel.PageGeometry, pages)
	for i := range geom {
		geom[i] = fillmodel.PageGeometry{Index: i, Width: 595, Height: 842}
	}
	res, err := overlay.Render(fields, geom, overlay.Options{})
	require.NoError(t, err)
	return res.PDF
}

func TestPdfcpuBackend_Merge(t *testing.T) {
	text := func(id string, page int) fillmodel.FieldData {
		return fillmodel.FieldData{FieldID: id, Page: page, X: 50, Y: 50, Width: 200, Height: 20, Value: fillmodel.Text(id)}
	}
	template := renderPDF(t, 3, []fillmodel.FieldData{text("a", 0), text("b", 1), text("c", 2)})
	ov := renderPDF(t, 3, []fillmodel.FieldData{text("mid", 1)})

	out, err := NewPdfcpuBackend().Merge(context.Background(), Request{
		Template:      template,
		Overlay:       ov,
		TemplatePages: 3,
		PageMap:       []int{1},
		Flatten:       true,
	})
	require.NoError(t, err)

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	ctx, err := api.ReadContext(bytes.NewReader(out), conf)
	require.NoError(t, err)
	require.NoError(t, ctx.EnsurePageCount())
	assert.Equal(t, 3, ctx.PageCount)

	root, err := ctx.Catalog()
	require.NoError(t, err)
	_, hasForm := root.Find("AcroForm")
	assert.False(t, hasForm)

	// Only the template page that carries fields receives a stamp.
	stamped := make([]bool, ctx.PageCount)
	for p := 1; p <= ctx.PageCount; p++ {
		pageDict, _, _, err := ctx.PageDict(p, false)
		require.NoError(t, err)
		res, err := ctx.DereferenceDict(pageDict["Resources"])
		require.NoError(t, err)
		_, stamped[p-1] = res.Find("ExtGState")
	}
	assert.Equal(t, []bool{false, true, false}, stamped)
}

func TestPdfcpuBackend_StampDescriptionParses(t *testing.T) {
	ov := renderPDF(t, 1, []fillmodel.FieldData{
		{FieldID: "x", Page: 0, X: 10, Y: 10, Width: 50, Height: 20, Value: fillmodel.Text("x")},
	})
	path := filepath.Join(t.TempDir(), "overlay.pdf")
	require.NoError(t, os.WriteFile(path, ov, 0o600))

	_, err := api.PDFWatermark(path+":1", stampDescription, true, false, types.POINTS)
	assert.NoError(t, err)
}

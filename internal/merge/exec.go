package merge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Runner executes an external command and returns its standard output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(string(out))
		}
		if msg != "" {
			return out, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return out, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// workspace is a private temp directory holding the files handed to a
// merge subprocess.
type workspace struct {
	dir string
}

func newWorkspace(req Request) (*workspace, error) {
	dir, err := os.MkdirTemp("", "fill-pdf-merge-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create merge directory: %w", err)
	}
	w := &workspace{dir: dir}

	if err := os.WriteFile(w.template(), req.Template, 0o600); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to write template: %w", err)
	}
	if err := os.WriteFile(w.overlay(), req.Overlay, 0o600); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to write overlay: %w", err)
	}
	return w, nil
}

func (w *workspace) template() string { return filepath.Join(w.dir, "template.pdf") }
func (w *workspace) overlay() string  { return filepath.Join(w.dir, "overlay.pdf") }
func (w *workspace) output() string   { return filepath.Join(w.dir, "merged.pdf") }

func (w *workspace) readOutput() ([]byte, error) {
	data, err := os.ReadFile(w.output())
	if err != nil {
		return nil, fmt.Errorf("merge produced no output: %w", err)
	}
	return data, nil
}

func (w *workspace) Close() error {
	return os.RemoveAll(w.dir)
}

func planJSON(req Request) (string, error) {
	plan, err := Plan(req.TemplatePages, req.PageMap)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(plan)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

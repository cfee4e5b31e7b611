package merge

import (
	"context"
	_ "embed"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

//go:embed scripts/merge_pdfs.ts
var bunScript []byte

// BunBackend merges with pdf-lib under bun. Without an explicit script the
// bundled one is written next to the job files.
type BunBackend struct {
	runner Runner
	script string
}

func NewBunBackend(runner Runner, script string) *BunBackend {
	return &BunBackend{runner: runner, script: script}
}

func (b *BunBackend) Name() string { return BackendBun }

// pdf-lib embeds overlay pages as form XObjects, which drops annotations.
func (b *BunBackend) PreservesWidgets() bool { return false }

func (b *BunBackend) Check(ctx context.Context) error {
	if _, err := b.runner.Run(ctx, "bun", "--version"); err != nil {
		return fmt.Errorf("bun is not installed, see https://bun.sh: %w", err)
	}
	if b.script != "" {
		if _, err := os.Stat(b.script); err != nil {
			return fmt.Errorf("bun merge script: %w", err)
		}
	}
	return nil
}

func (b *BunBackend) Merge(ctx context.Context, req Request) ([]byte, error) {
	plan, err := planJSON(req)
	if err != nil {
		return nil, err
	}

	ws, err := newWorkspace(req)
	if err != nil {
		return nil, err
	}
	defer ws.Close()

	script := b.script
	if script == "" {
		script = filepath.Join(ws.dir, "merge_pdfs.ts")
		if err := os.WriteFile(script, bunScript, 0o600); err != nil {
			return nil, fmt.Errorf("failed to write merge script: %w", err)
		}
	}

	args := []string{"run", script,
		"--template", ws.template(),
		"--overlay", ws.overlay(),
		"--output", ws.output(),
		"--plan", plan,
	}
	if req.Flatten {
		args = append(args, "--flatten")
	}

	out, err := b.runner.Run(ctx, "bun", args...)
	if err != nil {
		return nil, fmt.Errorf("bun merge failed: %w", err)
	}
	if timing, ok := strings.CutPrefix(strings.TrimSpace(string(out)), "SUCCESS:"); ok {
		log.Printf("[merge] bun: %s", strings.TrimSpace(timing))
	}
	return ws.readOutput()
}

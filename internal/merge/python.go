package merge

import (
	"context"
	_ "embed"
	"fmt"
	"log"

	"go.uber.org/multierr"
)

//go:embed scripts/merge.py
var pythonScript string

var pipCommands = [][]string{
	{"pip3"},
	{"pip"},
	{"python3", "-m", "pip"},
	{"python", "-m", "pip"},
}

// PythonBackend merges with PyPDF2 through python3 -c.
type PythonBackend struct {
	python string
	runner Runner
	prompt Prompter
}

func NewPythonBackend(runner Runner, prompt Prompter) *PythonBackend {
	return &PythonBackend{python: "python3", runner: runner, prompt: prompt}
}

func (b *PythonBackend) Name() string { return BackendPython }

// PyPDF2 merge_page carries the overlay annotations over.
func (b *PythonBackend) PreservesWidgets() bool { return true }

// Check requires python3 and PyPDF2. A missing PyPDF2 can be installed with
// pip after confirmation.
func (b *PythonBackend) Check(ctx context.Context) error {
	if _, err := b.runner.Run(ctx, b.python, "--version"); err != nil {
		return fmt.Errorf("python3 is not installed, please install Python 3 first: %w", err)
	}
	if _, err := b.runner.Run(ctx, b.python, "-c", "import PyPDF2"); err == nil {
		return nil
	}

	ok, err := b.prompt.Confirm("PyPDF2 is not installed. Would you like to install it now?",
		"Runs pip install PyPDF2 with the first pip found on PATH.")
	if err != nil {
		return fmt.Errorf("dependency prompt failed: %w", err)
	}
	if !ok {
		return fmt.Errorf("PyPDF2 is required. Install with: pip3 install PyPDF2")
	}
	return b.installPyPDF2(ctx)
}

func (b *PythonBackend) installPyPDF2(ctx context.Context) error {
	log.Printf("[merge] Installing PyPDF2...")

	var result error
	for _, pip := range pipCommands {
		args := append(append([]string{}, pip[1:]...), "install", "PyPDF2")
		if _, err := b.runner.Run(ctx, pip[0], args...); err != nil {
			result = multierr.Append(result, err)
			continue
		}
		log.Printf("[merge] PyPDF2 installed successfully")
		return nil
	}
	return fmt.Errorf("failed to install PyPDF2, install manually with pip3 install PyPDF2: %w", result)
}

func (b *PythonBackend) Merge(ctx context.Context, req Request) ([]byte, error) {
	plan, err := planJSON(req)
	if err != nil {
		return nil, err
	}

	ws, err := newWorkspace(req)
	if err != nil {
		return nil, err
	}
	defer ws.Close()

	flatten := "0"
	if req.Flatten {
		flatten = "1"
	}
	if _, err := b.runner.Run(ctx, b.python, "-c", pythonScript,
		ws.template(), ws.overlay(), ws.output(), plan, flatten); err != nil {
		return nil, fmt.Errorf("merge failed: %w", err)
	}
	return ws.readOutput()
}

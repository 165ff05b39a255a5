package validator

import (
	"context"
	"time"

	"github.com/joshjon/kit/log"
)

// Config controls the test-run stage of the pipeline.
type Config struct {
	Image             string        // base image the test command runs inside
	TestCommand       string        // project-declared test command
	DependencyInstall string        // optional command run before TestCommand, e.g. "go mod download"
	Timeout           time.Duration // bounds the test-run subprocess
}

// Result is the full outcome of validating one generated text blob.
type Result struct {
	Files   Files
	Syntax  map[string]SyntaxResult
	Valid   bool
	TestRun RunResult
}

// Pipeline runs the three-stage Validator: extract, syntax-check, test-run.
type Pipeline struct {
	cfg    Config
	runner *Runner
	logger log.Logger
}

// NewPipeline constructs a Pipeline. runner may be nil, in which case
// Validate skips the test-run stage and leaves TestRun zero-valued — used by callers that
// only need extraction and syntax-checking (e.g. the Tireless Reviewer).
func NewPipeline(cfg Config, runner *Runner, logger log.Logger) *Pipeline {
	return &Pipeline{cfg: cfg, runner: runner, logger: logger.With("component", "validator")}
}

// Validate extracts code blocks from blob, syntax-checks every file, and —
// if syntax passed and a runner is configured — runs the project's test
// command in a disposable workspace. Extraction never panics on arbitrary
// text; the syntax check never does I/O beyond reading blob.
func (p *Pipeline) Validate(ctx context.Context, blob string) Result {
	files := ExtractFiles(blob)
	syntax, ok := CheckSyntax(files)

	result := Result{Files: files, Syntax: syntax, Valid: ok}
	if !ok {
		return result
	}

	if p.runner == nil {
		return result
	}

	testCommand := p.cfg.TestCommand
	if p.cfg.DependencyInstall != "" {
		testCommand = p.cfg.DependencyInstall + " && " + testCommand
	}

	runFiles := SynthesizeTests(files)
	result.TestRun = p.runner.Run(ctx, runFiles, testCommand, p.cfg.Timeout)
	return result
}

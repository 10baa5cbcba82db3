package bundler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/spf13/afero"

	"github.com/conneroisu/pri/internal/ensure"
	prierrors "github.com/conneroisu/pri/internal/errors"
	"github.com/conneroisu/pri/internal/logging"
	"github.com/conneroisu/pri/internal/pipe"
	"github.com/conneroisu/pri/internal/project"
	"github.com/conneroisu/pri/internal/shell"
)

// ConfigFile is where the final configuration is written, relative to the
// project root.
const ConfigFile = ".temp/bundler.config.json"

// DefaultCommand runs the bundler installed in the project.
const DefaultCommand = "npx --no-install pri-bundler"

// NodeConstraint is the node version the bundler needs.
const NodeConstraint = "> 8.0.0"

// Asset is one emitted file.
type Asset struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Stats is the JSON summary the bundler prints after a run.
type Stats struct {
	Hash     string            `json:"hash"`
	Time     int64             `json:"time"`
	Assets   []Asset           `json:"assets"`
	Errors   []json.RawMessage `json:"errors"`
	Warnings []json.RawMessage `json:"warnings"`
}

// HasErrors reports whether the bundler reported compilation errors.
func (s *Stats) HasErrors() bool {
	return s != nil && len(s.Errors) > 0
}

// Runner runs the bundler for one project.
type Runner struct {
	project *project.Context
	shell   shell.Executor
	chain   *pipe.Chain[*Config]
	logger  logging.Logger
	metrics *Metrics

	// Command is the bundler CLI invocation.
	Command string
	Stdout  io.Writer
	Stderr  io.Writer
}

// NewRunner creates a runner. chain may be nil.
func NewRunner(p *project.Context, sh shell.Executor, chain *pipe.Chain[*Config], logger logging.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if chain == nil {
		chain = &pipe.Chain[*Config]{}
	}

	return &Runner{
		project: p,
		shell:   sh,
		chain:   chain,
		logger:  logger.WithComponent("bundler"),
		metrics: NewMetrics(),
		Command: DefaultCommand,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}
}

// Metrics returns the run metrics.
func (r *Runner) Metrics() *Metrics {
	return r.metrics
}

// Prepare builds the configuration, applies the config chain and writes the
// result to ConfigFile.
func (r *Runner) Prepare(ctx context.Context, opts Options) (*Config, error) {
	cfg := NewConfig(r.project.Root(), r.project.Config(), opts)

	cfg, err := r.chain.Apply(ctx, cfg)
	if err != nil {
		return nil, prierrors.Wrap(err, prierrors.ErrorTypePlugin, prierrors.ErrCodePluginLoad,
			"bundler config pipe failed")
	}
	if cfg == nil {
		return nil, prierrors.NewInternalError(prierrors.ErrCodeInternalError,
			"bundler config pipe returned no configuration", nil)
	}

	content, err := ensure.EncodeJSON(cfg)
	if err != nil {
		return nil, err
	}

	path := r.project.Path(filepath.FromSlash(ConfigFile))
	fs := r.project.Fs()
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, prierrors.FileOperationError("mkdir", filepath.Dir(path), err)
	}
	if err := afero.WriteFile(fs, path, []byte(content), 0o644); err != nil {
		return nil, prierrors.FileOperationError("write", path, err)
	}

	return cfg, nil
}

// Run bundles once and returns the bundler's stats.
func (r *Runner) Run(ctx context.Context, opts Options) (*Stats, error) {
	start := time.Now()
	stats, err := r.run(ctx, opts)
	r.metrics.Record(time.Since(start), err)
	return stats, err
}

func (r *Runner) run(ctx context.Context, opts Options) (*Stats, error) {
	if err := CheckNodeVersion(ctx, r.shell, r.project.Root()); err != nil {
		return nil, err
	}

	cfg, err := r.Prepare(ctx, opts)
	if err != nil {
		return nil, err
	}

	perf := logging.StartOperation(r.logger, "bundle")

	out, err := r.shell.Exec(ctx, r.command("--json"), shell.Options{
		Dir:    r.project.Root(),
		Stderr: r.Stderr,
	})
	if err != nil {
		perf.EndWithError(ctx, err)
		return nil, err
	}

	var stats Stats
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		perf.EndWithError(ctx, err)
		return nil, prierrors.NewExecError(prierrors.ErrCodeExecFailed, "bundler printed invalid stats", err)
	}

	if stats.HasErrors() {
		err := prierrors.NewExecError(prierrors.ErrCodeExecFailed,
			fmt.Sprintf("bundler reported %d error(s)", len(stats.Errors)), nil).
			WithContext("errors", string(stats.Errors[0]))
		perf.EndWithError(ctx, err)
		return &stats, err
	}

	perf.End(ctx)
	r.logger.Info(ctx, "Bundle complete",
		"mode", cfg.Mode,
		"outDir", cfg.OutDir,
		"assets", len(stats.Assets),
		"warnings", len(stats.Warnings))

	return &stats, nil
}

// Watch rebuilds on every source change until ctx is cancelled. Cancellation
// is a clean shutdown; the child process is interrupted and reaped.
func (r *Runner) Watch(ctx context.Context, opts Options) error {
	if opts.Mode == "" {
		opts.Mode = ModeDevelopment
	}

	if err := CheckNodeVersion(ctx, r.shell, r.project.Root()); err != nil {
		return err
	}

	if _, err := r.Prepare(ctx, opts); err != nil {
		return err
	}

	r.logger.Info(ctx, "Watching sources", "config", ConfigFile)

	_, err := r.shell.Exec(ctx, r.command("--watch"), shell.Options{
		Dir:    r.project.Root(),
		Stdout: r.Stdout,
		Stderr: r.Stderr,
	})
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

func (r *Runner) command(flags ...string) string {
	parts := []string{r.Command, "--config", shell.Quote(ConfigFile)}
	return strings.Join(append(parts, flags...), " ")
}

// CheckNodeVersion fails when the installed node does not satisfy
// NodeConstraint.
func CheckNodeVersion(ctx context.Context, sh shell.Executor, dir string) error {
	out, err := sh.Exec(ctx, "node --version", shell.Options{Dir: dir})
	if err != nil {
		return prierrors.NewExecError(prierrors.ErrCodeRuntimeVersion, "node is not installed", err)
	}

	v, err := semver.NewVersion(strings.TrimSpace(out))
	if err != nil {
		return prierrors.NewExecError(prierrors.ErrCodeRuntimeVersion,
			fmt.Sprintf("cannot parse node version %q", out), err)
	}

	constraint, err := semver.NewConstraint(NodeConstraint)
	if err != nil {
		return err
	}
	if !constraint.Check(v) {
		return prierrors.NewExecError(prierrors.ErrCodeRuntimeVersion,
			fmt.Sprintf("nodejs version should be greater than 8, current is %s", v.Original()), nil)
	}

	return nil
}

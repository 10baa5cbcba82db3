// Package ensure keeps project files in the shape plugins declare for them.
//
// Plugins enqueue content transforms per project-relative path. Flush folds
// each path's transforms over the on-disk content and writes the result,
// restoring files that were deleted or drifted.
package ensure

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"

	prierrors "github.com/conneroisu/pri/internal/errors"
	"github.com/conneroisu/pri/internal/logging"
)

// Transform maps the previous content of a file ("" when absent) to the next.
type Transform func(ctx context.Context, prev string) (string, error)

// Outcome describes what Flush did to one path.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeRecovered Outcome = "recovered"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeFailed    Outcome = "failed"
)

// Result is the outcome for a single path.
type Result struct {
	Path    string
	Outcome Outcome
	Err     error
}

// Report lists per-path results in flush order.
type Report struct {
	Results []Result
}

// Count returns how many paths ended with outcome.
func (r *Report) Count(outcome Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == outcome {
			n++
		}
	}
	return n
}

// Lookup returns the result for path.
func (r *Report) Lookup(path string) (Result, bool) {
	for _, res := range r.Results {
		if res.Path == path {
			return res, true
		}
	}
	return Result{}, false
}

// Queue groups transforms by path in first-registration order.
type Queue struct {
	fs     afero.Fs
	root   string
	logger logging.Logger

	mu         sync.Mutex
	order      []string
	transforms map[string][]Transform
}

// NewQueue creates a queue rooted at root on fs.
func NewQueue(fs afero.Fs, root string, logger logging.Logger) *Queue {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return &Queue{
		fs:         fs,
		root:       root,
		logger:     logger.WithComponent("ensure"),
		transforms: make(map[string][]Transform),
	}
}

// Add enqueues transform for path. Paths are project-relative and slash
// separated; equivalent spellings share one entry.
func (q *Queue) Add(path string, transform Transform) {
	if transform == nil {
		return
	}

	key := normalize(path)

	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.transforms[key]; !ok {
		q.order = append(q.order, key)
	}
	q.transforms[key] = append(q.transforms[key], transform)
}

// Paths returns the queued paths in first-registration order.
func (q *Queue) Paths() []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	paths := make([]string, len(q.order))
	copy(paths, q.order)
	return paths
}

// Reset drops every queued transform.
func (q *Queue) Reset() {
	q.mu.Lock()
	q.order = nil
	q.transforms = make(map[string][]Transform)
	q.mu.Unlock()
}

// Flush ensures every queued path. A failing path is skipped and reported;
// the remaining paths are still processed. The returned error combines every
// per-path failure and is nil when all paths succeeded.
func (q *Queue) Flush(ctx context.Context) (*Report, error) {
	q.mu.Lock()
	order := make([]string, len(q.order))
	copy(order, q.order)
	groups := make(map[string][]Transform, len(q.transforms))
	for path, fns := range q.transforms {
		groups[path] = append([]Transform(nil), fns...)
	}
	q.mu.Unlock()

	report := &Report{Results: make([]Result, 0, len(order))}
	var errs []error

	for _, path := range order {
		if err := ctx.Err(); err != nil {
			return report, prierrors.CombineErrors(append(errs, err)...)
		}

		outcome, err := q.ensure(ctx, path, groups[path])
		if err != nil {
			err = prierrors.EnsureFailed(path, err)
			q.logger.Error(ctx, err, "Failed to ensure file", "path", path)
			errs = append(errs, err)
			report.Results = append(report.Results, Result{Path: path, Outcome: OutcomeFailed, Err: err})
			continue
		}

		switch outcome {
		case OutcomeCreated:
			q.logger.Info(ctx, "File not exist, created", "path", path)
		case OutcomeRecovered:
			q.logger.Warn(ctx, nil, "File exists but the content is not correct, has been recovered", "path", path)
		default:
			q.logger.Debug(ctx, "File unchanged", "path", path)
		}
		report.Results = append(report.Results, Result{Path: path, Outcome: outcome})
	}

	return report, prierrors.CombineErrors(errs...)
}

func (q *Queue) ensure(ctx context.Context, path string, transforms []Transform) (Outcome, error) {
	full, err := q.resolve(path)
	if err != nil {
		return OutcomeFailed, err
	}

	exists := true
	raw, err := afero.ReadFile(q.fs, full)
	if err != nil {
		if !os.IsNotExist(err) {
			return OutcomeFailed, fmt.Errorf("read: %w", err)
		}
		exists = false
	}
	prev := string(raw)

	next := prev
	for i, fn := range transforms {
		next, err = fn(ctx, next)
		if err != nil {
			return OutcomeFailed, fmt.Errorf("transform %d: %w", i, err)
		}
	}

	if exists && next == prev {
		return OutcomeUnchanged, nil
	}

	if err := q.fs.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return OutcomeFailed, fmt.Errorf("create parent directory: %w", err)
	}
	if err := afero.WriteFile(q.fs, full, []byte(next), 0o644); err != nil {
		return OutcomeFailed, fmt.Errorf("write: %w", err)
	}

	if !exists {
		return OutcomeCreated, nil
	}
	return OutcomeRecovered, nil
}

func (q *Queue) resolve(path string) (string, error) {
	if path == "" || path == "." {
		return "", fmt.Errorf("empty path")
	}
	if filepath.IsAbs(filepath.FromSlash(path)) || path == ".." || strings.HasPrefix(path, "../") {
		return "", fmt.Errorf("path %q escapes the project root", path)
	}
	return filepath.Join(q.root, filepath.FromSlash(path)), nil
}

func normalize(path string) string {
	cleaned := filepath.ToSlash(filepath.Clean(filepath.FromSlash(path)))
	return strings.TrimPrefix(cleaned, "./")
}

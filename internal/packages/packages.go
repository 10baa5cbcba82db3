// Package packages finds the monorepo packages of a project. Packages are git
// submodules under packages/ that carry a package.json.
package packages

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"

	prierrors "github.com/conneroisu/pri/internal/errors"
	"github.com/conneroisu/pri/internal/git"
	"github.com/conneroisu/pri/internal/logging"
	"github.com/conneroisu/pri/internal/project"
)

// Dir holds the submodules, relative to the project root.
const Dir = "packages"

// Package is one monorepo package.
type Package struct {
	// Name is the submodule path without the packages/ prefix.
	Name string
	// Path is relative to the project root.
	Path        string
	PackageJSON *project.PackageJSON
}

// Lister lists packages and caches the result for the rest of the command.
type Lister struct {
	fs     afero.Fs
	root   string
	git    *git.Client
	logger logging.Logger

	mu     sync.Mutex
	cached []Package
}

// NewLister creates a lister for the project at root.
func NewLister(fs afero.Fs, root string, gitClient *git.Client, logger logging.Logger) *Lister {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Lister{fs: fs, root: root, git: gitClient, logger: logger.WithComponent("packages")}
}

// List returns the packages. With useCache the first result is reused.
// Submodules without a readable, non-empty package.json are skipped.
func (l *Lister) List(ctx context.Context, useCache bool) ([]Package, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if useCache && l.cached != nil {
		return l.cached, nil
	}

	paths, err := l.git.SubmodulePaths(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]Package, 0, len(paths))
	for _, p := range paths {
		pkg, err := l.readPackageJSON(p)
		if err != nil {
			l.logger.Warn(ctx, err, "Skipping package", "path", p)
			continue
		}
		if pkg == nil {
			continue
		}
		result = append(result, Package{
			Name:        strings.TrimPrefix(filepath.ToSlash(p), Dir+"/"),
			Path:        p,
			PackageJSON: pkg,
		})
	}

	l.cached = result
	return result, nil
}

// Find returns the package called name.
func (l *Lister) Find(ctx context.Context, name string) (Package, error) {
	all, err := l.List(ctx, true)
	if err != nil {
		return Package{}, err
	}
	for _, p := range all {
		if p.Name == name {
			return p, nil
		}
	}
	return Package{}, prierrors.NewValidationError(prierrors.ErrCodeValidationFailed, name+" not exist")
}

func (l *Lister) readPackageJSON(rel string) (*project.PackageJSON, error) {
	raw, err := afero.ReadFile(l.fs, filepath.Join(l.root, rel, "package.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if strings.TrimSpace(string(raw)) == "" {
		return nil, nil
	}

	var pkg project.PackageJSON
	if err := json.Unmarshal(raw, &pkg); err != nil {
		return nil, err
	}
	return &pkg, nil
}

// EnsureLinks links every package into the root node_modules and the root
// node_modules into every package. Existing entries are left alone.
func (l *Lister) EnsureLinks(ctx context.Context, useCache bool) error {
	linker, ok := l.fs.(afero.Linker)
	if !ok {
		return prierrors.NewInternalError(prierrors.ErrCodeInternalError, "filesystem does not support symlinks", nil)
	}

	all, err := l.List(ctx, useCache)
	if err != nil {
		return err
	}

	rootModules := filepath.Join(l.root, "node_modules")
	for _, p := range all {
		pkgDir := filepath.Join(l.root, filepath.FromSlash(p.Path))

		links := [][2]string{
			{pkgDir, filepath.Join(rootModules, filepath.FromSlash(p.Name))},
			{rootModules, filepath.Join(pkgDir, "node_modules")},
		}
		for _, link := range links {
			if err := l.symlink(linker, link[0], link[1]); err != nil {
				return err
			}
		}
	}

	return nil
}

func (l *Lister) symlink(linker afero.Linker, target, link string) error {
	if lstater, ok := l.fs.(afero.Lstater); ok {
		if _, _, err := lstater.LstatIfPossible(link); err == nil {
			return nil
		}
	}

	if err := l.fs.MkdirAll(filepath.Dir(link), 0o755); err != nil {
		return prierrors.FileOperationError("mkdir", filepath.Dir(link), err)
	}
	if err := linker.SymlinkIfPossible(target, link); err != nil {
		return prierrors.FileOperationError("symlink", link, err)
	}
	return nil
}

// Package bundler drives the external JavaScript bundler. pri writes a JSON
// description of the build to .temp/bundler.config.json and runs the bundler
// CLI against it.
package bundler

import (
	"path/filepath"
	"strings"

	"github.com/conneroisu/pri/internal/config"
)

// Mode selects development or production output.
type Mode string

const (
	ModeDevelopment Mode = "development"
	ModeProduction  Mode = "production"
)

// HTMLPage is one static HTML file emitted next to the bundle.
type HTMLPage struct {
	Title    string `json:"title"`
	Filename string `json:"filename"`
	Template string `json:"template,omitempty"`
}

// Config is the bundler configuration plugins may rewrite through the
// bundler config chain before it is written out.
type Config struct {
	Mode           Mode              `json:"mode"`
	Entry          map[string]string `json:"entry"`
	OutDir         string            `json:"outDir"`
	OutFileName    string            `json:"outFileName"`
	OutCSSFileName string            `json:"outCssFileName"`
	ChunkFileName  string            `json:"chunkFileName"`
	PublicPath     string            `json:"publicPath"`
	Target         string            `json:"target"`
	LibraryTarget  string            `json:"libraryTarget"`
	Externals      []string          `json:"externals,omitempty"`
	NodeExternals  bool              `json:"nodeExternals,omitempty"`
	CSSExtract     bool              `json:"cssExtract"`
	SourceMap      bool              `json:"sourceMap"`
	Resolve        []string          `json:"resolve,omitempty"`
	HTMLPages      []HTMLPage        `json:"htmlPages,omitempty"`
	Define         map[string]string `json:"define,omitempty"`
}

// Options are the per-invocation inputs. Empty fields fall back to the
// project configuration.
type Options struct {
	Mode Mode
	// Entry maps chunk names to entry files. A single "main" entry is the
	// common case.
	Entry          map[string]string
	OutDir         string
	OutFileName    string
	OutCSSFileName string
	PublicPath     string
	Target         string
	LibraryTarget  string
	Externals      []string
	NodeExternals  bool
	HTMLPages      []HTMLPage
}

// NewConfig builds the base configuration for opts. The project root and
// config supply every default.
func NewConfig(root string, cfg config.Config, opts Options) *Config {
	outDir := opts.OutDir
	if outDir == "" {
		outDir = cfg.DistDir
	}

	outFile := opts.OutFileName
	if outFile == "" {
		outFile = cfg.OutFileName
	}

	outCSS := opts.OutCSSFileName
	if outCSS == "" {
		outCSS = cfg.OutCSSFileName
	}

	publicPath := opts.PublicPath
	if publicPath == "" {
		publicPath = cfg.PublicPath
	}
	publicPath = EnsureEndWithSlash(publicPath)

	target := opts.Target
	if target == "" {
		target = "web"
	}

	libraryTarget := opts.LibraryTarget
	if libraryTarget == "" {
		libraryTarget = "var"
	}

	mode := opts.Mode
	if mode == "" {
		mode = ModeProduction
	}

	entry := make(map[string]string, len(opts.Entry))
	for k, v := range opts.Entry {
		entry[k] = v
	}

	return &Config{
		Mode:           mode,
		Entry:          entry,
		OutDir:         joinRoot(root, outDir),
		OutFileName:    outFile,
		OutCSSFileName: outCSS,
		ChunkFileName:  "[name].[hash].chunk.js",
		PublicPath:     publicPath,
		Target:         target,
		LibraryTarget:  libraryTarget,
		Externals:      append([]string(nil), opts.Externals...),
		NodeExternals:  opts.NodeExternals,
		CSSExtract:     cfg.CSSExtract && mode == ModeProduction,
		SourceMap:      mode == ModeDevelopment,
		Resolve:        []string{joinRoot(root, "src"), joinRoot(root, ".temp")},
		HTMLPages:      append([]HTMLPage(nil), opts.HTMLPages...),
	}
}

// EnsureEndWithSlash appends a trailing slash when missing.
func EnsureEndWithSlash(s string) string {
	if strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}

// EnsureStartWithSlash prepends a leading slash when missing.
func EnsureStartWithSlash(s string) string {
	if strings.HasPrefix(s, "/") {
		return s
	}
	return "/" + s
}

func joinRoot(root, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

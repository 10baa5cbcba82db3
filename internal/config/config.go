// Package config loads the pri project configuration using Viper.
//
// Values are merged from built-in defaults, the project's pri.json, PRI_
// environment variables, and command-line overrides, in that order of
// increasing precedence. The file is validated against an embedded JSON
// schema before it is merged.
package config

import (
	_ "embed"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/viper"

	prierrors "github.com/conneroisu/pri/internal/errors"
	"github.com/conneroisu/pri/internal/validation"
)

// FileName is the project configuration file, relative to the project root.
const FileName = "pri.json"

// EnvPrefix prefixes environment variable overrides (PRI_DISTDIR, ...).
const EnvPrefix = "PRI"

//go:embed schema/pri.schema.json
var schemaBytes []byte

var schema = validation.MustCompileSchema("pri.schema.json", schemaBytes)

// Config is the merged project configuration.
type Config struct {
	DistDir              string        `mapstructure:"distDir" json:"distDir"`
	OutFileName          string        `mapstructure:"outFileName" json:"outFileName"`
	OutCSSFileName       string        `mapstructure:"outCssFileName" json:"outCssFileName"`
	BundleFileName       string        `mapstructure:"bundleFileName" json:"bundleFileName"`
	PublicPath           string        `mapstructure:"publicPath" json:"publicPath"`
	BaseHref             string        `mapstructure:"baseHref" json:"baseHref"`
	Title                string        `mapstructure:"title" json:"title"`
	SourceRoot           string        `mapstructure:"sourceRoot" json:"sourceRoot"`
	UseServiceWorker     bool          `mapstructure:"useServiceWorker" json:"useServiceWorker"`
	UseHTTPS             bool          `mapstructure:"useHttps" json:"useHttps"`
	CSSExtract           bool          `mapstructure:"cssExtract" json:"cssExtract"`
	HideSourceCodeForNpm bool          `mapstructure:"hideSourceCodeForNpm" json:"hideSourceCodeForNpm"`
	PackageLock          bool          `mapstructure:"packageLock" json:"packageLock"`
	DevPort              int           `mapstructure:"devPort" json:"devPort"`
	DashboardPort        int           `mapstructure:"dashboardPort" json:"dashboardPort"`
	Plugins              PluginsConfig `mapstructure:"plugins" json:"plugins"`
}

// Defaults returns the built-in configuration values.
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"distDir":              "dist",
		"outFileName":          "main.js",
		"outCssFileName":       "main.css",
		"bundleFileName":       "bundle.js",
		"publicPath":           "/",
		"baseHref":             "/",
		"title":                "Pri",
		"sourceRoot":           "src",
		"useServiceWorker":     false,
		"useHttps":             false,
		"cssExtract":           true,
		"hideSourceCodeForNpm": false,
		"packageLock":          false,
		"devPort":              8080,
		"dashboardPort":        9000,
		"plugins.includeRoots": []string{},
		"plugins.disabled":     []string{},
	}
}

// NewViper returns a viper instance with defaults and env bindings applied,
// reading files through fs.
func NewViper(fs afero.Fs) *viper.Viper {
	v := viper.New()
	v.SetFs(fs)
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, value := range Defaults() {
		v.SetDefault(key, value)
	}

	return v
}

// ReadFile validates and merges the configuration file at path into v. A
// missing file is not an error; the defaults apply.
func ReadFile(fs afero.Fs, v *viper.Viper, path string) error {
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		if exists, _ := afero.Exists(fs, path); !exists {
			return nil
		}
		return prierrors.FileOperationError("read", path, err)
	}

	if strings.TrimSpace(string(raw)) == "" {
		return nil
	}

	if err := schema.ValidateJSON(raw); err != nil {
		return prierrors.WrapConfig(err, prierrors.ErrCodeConfigInvalid, "invalid project configuration").
			WithFile(path)
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return prierrors.WrapConfig(err, prierrors.ErrCodeConfigInvalid, "failed to read project configuration").
			WithFile(path)
	}

	return nil
}

// Load decodes and validates the merged configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, prierrors.WrapConfig(err, prierrors.ErrCodeConfigInvalid, "failed to decode project configuration")
	}

	// Slices set through env or flags arrive as strings.
	if v.IsSet("plugins.includeRoots") && len(cfg.Plugins.IncludeRoots) == 0 {
		cfg.Plugins.IncludeRoots = v.GetStringSlice("plugins.includeRoots")
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validateConfig(cfg *Config) error {
	for setting, dir := range map[string]string{
		"distDir":    cfg.DistDir,
		"sourceRoot": cfg.SourceRoot,
	} {
		if err := validation.ValidateRelativePath(dir); err != nil {
			return prierrors.ConfigurationError(setting, err.Error(), dir)
		}
	}

	for setting, name := range map[string]string{
		"outFileName":    cfg.OutFileName,
		"outCssFileName": cfg.OutCSSFileName,
		"bundleFileName": cfg.BundleFileName,
	} {
		if name == "" || strings.ContainsAny(name, `/\`) || name != filepath.Base(name) {
			return prierrors.ConfigurationError(setting, "must be a bare file name", name)
		}
	}

	if err := validation.ValidatePublicPath(cfg.PublicPath); err != nil {
		return prierrors.ConfigurationError("publicPath", err.Error(), cfg.PublicPath)
	}

	if cfg.DevPort < 0 || cfg.DevPort > 65535 {
		return prierrors.ConfigurationError("devPort", fmt.Sprintf("port %d is not in valid range 0-65535", cfg.DevPort), cfg.DevPort)
	}
	if cfg.DashboardPort < 0 || cfg.DashboardPort > 65535 {
		return prierrors.ConfigurationError("dashboardPort", fmt.Sprintf("port %d is not in valid range 0-65535", cfg.DashboardPort), cfg.DashboardPort)
	}

	return validatePluginsConfig(&cfg.Plugins)
}

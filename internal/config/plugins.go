package config

import (
	"strings"

	prierrors "github.com/conneroisu/pri/internal/errors"
)

// PluginsConfig controls external plugin discovery.
type PluginsConfig struct {
	// IncludeRoots are extra directories searched for pri-plugin.yaml
	// manifests, relative to the project root unless absolute.
	IncludeRoots []string `mapstructure:"includeRoots" json:"includeRoots"`
	// Disabled lists plugin names that are discovered but not loaded.
	Disabled []string `mapstructure:"disabled" json:"disabled"`
}

// IsDisabled reports whether name is listed in Disabled.
func (p PluginsConfig) IsDisabled(name string) bool {
	for _, d := range p.Disabled {
		if d == name {
			return true
		}
	}
	return false
}

func validatePluginsConfig(cfg *PluginsConfig) error {
	for _, root := range cfg.IncludeRoots {
		if strings.TrimSpace(root) == "" {
			return prierrors.ConfigurationError("plugins.includeRoots", "entries cannot be empty", root)
		}
		for _, char := range []string{";", "&", "|", "$", "`", "<", ">"} {
			if strings.Contains(root, char) {
				return prierrors.ConfigurationError("plugins.includeRoots", "contains dangerous character "+char, root)
			}
		}
	}

	for _, name := range cfg.Disabled {
		if name == "" {
			return prierrors.ConfigurationError("plugins.disabled", "plugin name cannot be empty", name)
		}
		for _, char := range name {
			if !((char >= 'a' && char <= 'z') ||
				(char >= 'A' && char <= 'Z') ||
				(char >= '0' && char <= '9') ||
				char == '-' || char == '_' || char == '@' || char == '/') {
				return prierrors.ConfigurationError("plugins.disabled", "plugin name contains invalid character", name)
			}
		}
	}

	return nil
}

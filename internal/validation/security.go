// Package validation checks user- and plugin-supplied values before they reach
// the filesystem, a shell, or the network.
package validation

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

var shellMeta = []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\\", "\"", "'", "\n", "\r"}

// ValidateArgument rejects values that would change the meaning of a shell
// command they are interpolated into, such as git refs and package names.
func ValidateArgument(arg string) error {
	if arg == "" {
		return fmt.Errorf("argument cannot be empty")
	}

	for _, char := range shellMeta {
		if strings.Contains(arg, char) {
			return fmt.Errorf("contains dangerous character: %q", char)
		}
	}

	if strings.HasPrefix(arg, "-") {
		return fmt.Errorf("argument %q looks like a flag", arg)
	}

	return nil
}

// ValidateRelativePath checks that path stays inside the project root.
func ValidateRelativePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("path cannot be empty")
	}

	if filepath.IsAbs(path) || strings.HasPrefix(path, "/") {
		return fmt.Errorf("path must be relative: %s", path)
	}

	clean := filepath.ToSlash(filepath.Clean(path))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("path traversal detected: %s", path)
	}

	for _, char := range []string{";", "&", "|", "$", "`", "<", ">"} {
		if strings.Contains(path, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}

// ValidatePublicPath accepts an absolute URL path ("/static/") or an
// http(s) URL pointing at a CDN.
func ValidatePublicPath(publicPath string) error {
	if publicPath == "" || strings.HasPrefix(publicPath, "/") && !strings.HasPrefix(publicPath, "//") {
		if strings.ContainsAny(publicPath, " \"'<>`") {
			return fmt.Errorf("public path contains invalid characters: %s", publicPath)
		}
		return nil
	}

	return ValidateURL(publicPath)
}

// ValidateURL accepts http and https URLs with a host.
func ValidateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %s (only http/https allowed)", parsed.Scheme)
	}

	if strings.ContainsAny(rawURL, " \"'<>`\n\r") {
		return fmt.Errorf("URL contains invalid characters")
	}

	if parsed.Host == "" {
		return fmt.Errorf("URL must have a valid hostname")
	}

	return nil
}

// ValidateOrigin checks a websocket Origin header against the allowed hosts.
func ValidateOrigin(origin string, allowedHosts []string) error {
	if origin == "" {
		return fmt.Errorf("origin header is required")
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return fmt.Errorf("invalid origin format: %w", err)
	}

	if originURL.Scheme != "http" && originURL.Scheme != "https" {
		return fmt.Errorf("invalid origin scheme '%s': only http and https are allowed", originURL.Scheme)
	}

	for _, allowed := range allowedHosts {
		if origin == allowed || originURL.Host == allowed || originURL.Hostname() == allowed {
			return nil
		}
	}

	return fmt.Errorf("origin '%s' is not in allowed origins list", origin)
}

// SanitizeInput strips control characters from user input.
func SanitizeInput(input string) string {
	var sanitized strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			sanitized.WriteRune(r)
		}
	}

	return sanitized.String()
}

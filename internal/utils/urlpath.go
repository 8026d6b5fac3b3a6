package utils

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// HostPath derives a host/sub-directory layout from a locator, used to keep
// downloads from different origins apart.
// Example: https://example.com/a/b/file.zip -> example.com/a/b
func HostPath(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("locator %q has no host", rawURL)
	}

	dir := path.Dir(strings.Trim(parsed.Path, "/"))
	if dir == "." || dir == "/" {
		return parsed.Host, nil
	}

	return filepath.Join(parsed.Host, filepath.FromSlash(dir)), nil
}

package utils

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/h2non/filetype"
	"github.com/vfaronov/httpheader"
)

// FallbackFilename is used when neither the response headers nor the URL
// yield a usable name.
const FallbackFilename = "download.bin"

// sniffHeaderSize is the number of leading bytes filetype needs to classify
// a payload.
const sniffHeaderSize = 262

// DetermineFilename picks a destination filename for a download, preferring
// the server-suggested Content-Disposition name over the last URL path
// segment.
func DetermineFilename(rawURL string, header http.Header) string {
	if header != nil {
		if _, name, _ := httpheader.ContentDisposition(header); name != "" {
			if clean := SanitizeFilename(name); clean != "" {
				return clean
			}
		}
	}

	if parsed, err := url.Parse(rawURL); err == nil {
		if clean := SanitizeFilename(path.Base(parsed.Path)); clean != "" {
			return clean
		}
	}

	return FallbackFilename
}

// SanitizeFilename strips directory components and control characters so the
// result is safe to join under the download directory.
func SanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}

	var b strings.Builder
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}

	name = strings.Trim(b.String(), ". ")
	if name == "" || name == "." || name == ".." {
		return ""
	}
	return name
}

// SniffExtension inspects the leading bytes of the file at p and returns a
// file extension (without the dot) when the payload type is recognizable.
// Returns an empty string for unknown payloads.
func SniffExtension(p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer f.Close()

	head := make([]byte, sniffHeaderSize)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", err
	}

	kind, err := filetype.Match(head[:n])
	if err != nil {
		return "", err
	}
	if kind == filetype.Unknown {
		return "", nil
	}
	return kind.Extension, nil
}

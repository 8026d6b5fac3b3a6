package utils

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
)

func TestDetermineFilename(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		header   http.Header
		expected string
	}{
		{
			name:     "from URL path",
			url:      "https://example.com/media/lesson-12.mp4",
			expected: "lesson-12.mp4",
		},
		{
			name:     "content disposition wins over URL",
			url:      "https://example.com/stream?id=42",
			header:   http.Header{"Content-Disposition": []string{`attachment; filename="episode.mp3"`}},
			expected: "episode.mp3",
		},
		{
			name:     "disposition with path components stripped",
			url:      "https://example.com/x",
			header:   http.Header{"Content-Disposition": []string{`attachment; filename="../../etc/passwd"`}},
			expected: "passwd",
		},
		{
			name:     "bare host falls back",
			url:      "https://example.com/",
			expected: FallbackFilename,
		},
		{
			name:     "query-only locator falls back",
			url:      "https://example.com?dl=1",
			expected: FallbackFilename,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetermineFilename(tt.url, tt.header)
			if got != tt.expected {
				t.Errorf("DetermineFilename() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"report.pdf", "report.pdf"},
		{"  spaced.txt  ", "spaced.txt"},
		{`C:\data\dump.bin`, "dump.bin"},
		{"/etc/passwd", "passwd"},
		{"..", ""},
		{".", ""},
		{"", ""},
		{"name\x00with\x1fcontrols", "namewithcontrols"},
		{"trailing-dots...", "trailing-dots"},
	}

	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.expected {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.expected)
		}
	}
}

func TestSniffExtension(t *testing.T) {
	dir := t.TempDir()

	// Minimal PNG magic followed by padding.
	png := append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, make([]byte, 64)...)
	pngPath := filepath.Join(dir, "payload")
	if err := os.WriteFile(pngPath, png, 0644); err != nil {
		t.Fatalf("write test file: %v", err)
	}

	ext, err := SniffExtension(pngPath)
	if err != nil {
		t.Fatalf("SniffExtension() error: %v", err)
	}
	if ext != "png" {
		t.Errorf("SniffExtension() = %q, want %q", ext, "png")
	}

	// Unrecognizable payload yields no extension and no error.
	junkPath := filepath.Join(dir, "junk")
	if err := os.WriteFile(junkPath, []byte("plain text"), 0644); err != nil {
		t.Fatalf("write test file: %v", err)
	}

	ext, err = SniffExtension(junkPath)
	if err != nil {
		t.Fatalf("SniffExtension() error: %v", err)
	}
	if ext != "" {
		t.Errorf("SniffExtension() = %q, want empty", ext)
	}

	if _, err := SniffExtension(filepath.Join(dir, "missing")); err == nil {
		t.Error("SniffExtension() expected error for missing file")
	}
}

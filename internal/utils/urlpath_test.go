package utils

import (
	"path/filepath"
	"testing"
)

func TestHostPath(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected string
		wantErr  bool
	}{
		{
			name:     "URL with path",
			url:      "https://example.com/a/b/file.zip",
			expected: filepath.Join("example.com", "a", "b"),
		},
		{
			name:     "URL with no subdirectories",
			url:      "https://example.com/file.zip",
			expected: "example.com",
		},
		{
			name:     "deep path",
			url:      "https://cdn.example.com/media/2024/01/archive.tar.gz",
			expected: filepath.Join("cdn.example.com", "media", "2024", "01"),
		},
		{
			name:     "URL with port",
			url:      "https://example.com:8080/path/to/file.bin",
			expected: filepath.Join("example.com:8080", "path", "to"),
		},
		{
			name:     "query parameters ignored",
			url:      "https://example.com/download/file.zip?token=abc123",
			expected: filepath.Join("example.com", "download"),
		},
		{
			name:     "trailing slash",
			url:      "https://example.com/folder/",
			expected: "example.com",
		},
		{
			name:    "invalid URL",
			url:     "://invalid",
			wantErr: true,
		},
		{
			name:    "no host",
			url:     "file.zip",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := HostPath(tt.url)

			if tt.wantErr {
				if err == nil {
					t.Errorf("HostPath() expected error but got none")
				}
				return
			}

			if err != nil {
				t.Errorf("HostPath() unexpected error: %v", err)
				return
			}

			if result != tt.expected {
				t.Errorf("HostPath() = %q, want %q", result, tt.expected)
			}
		})
	}
}

package types

import (
	"testing"
	"time"

	"github.com/barge-dl/barge/internal/config"
)

func TestConvertRuntimeConfig(t *testing.T) {
	rc := &config.RuntimeConfig{
		DownloadDir:      "/data",
		UserAgent:        "barge/1.0",
		CopyBufferSize:   128 * 1024,
		ProgressInterval: 250 * time.Millisecond,
		OrganizeByHost:   true,
		TransformCommand: []string{"whisper", "{input}", "{output}"},
	}

	got := ConvertRuntimeConfig(rc)
	if got.DownloadDir != rc.DownloadDir {
		t.Errorf("DownloadDir = %q", got.DownloadDir)
	}
	if got.UserAgent != rc.UserAgent {
		t.Errorf("UserAgent = %q", got.UserAgent)
	}
	if got.CopyBufferSize != rc.CopyBufferSize {
		t.Errorf("CopyBufferSize = %d", got.CopyBufferSize)
	}
	if got.ProgressInterval != rc.ProgressInterval {
		t.Errorf("ProgressInterval = %v", got.ProgressInterval)
	}
	if !got.OrganizeByHost {
		t.Error("OrganizeByHost lost")
	}
	if len(got.TransformCommand) != 3 {
		t.Errorf("TransformCommand = %v", got.TransformCommand)
	}
}

func TestConvertRuntimeConfigNil(t *testing.T) {
	if got := ConvertRuntimeConfig(nil); got != nil {
		t.Errorf("ConvertRuntimeConfig(nil) = %v, want nil", got)
	}
}

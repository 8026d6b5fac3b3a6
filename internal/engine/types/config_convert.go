package types

import "github.com/barge-dl/barge/internal/config"

// ConvertRuntimeConfig converts the app-level RuntimeConfig to the
// engine-level RuntimeConfig.
func ConvertRuntimeConfig(rc *config.RuntimeConfig) *RuntimeConfig {
	if rc == nil {
		return nil
	}
	return &RuntimeConfig{
		DownloadDir:      rc.DownloadDir,
		UserAgent:        rc.UserAgent,
		CopyBufferSize:   rc.CopyBufferSize,
		ProgressInterval: rc.ProgressInterval,
		OrganizeByHost:   rc.OrganizeByHost,
		TransformCommand: rc.TransformCommand,
	}
}

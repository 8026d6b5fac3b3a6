package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/barge-dl/barge/internal/engine"
)

var transcribeOutput string

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <locator>",
	Short: "Download a media stream and transform it into a text artifact",
	Long: `Transcribe runs a download-then-transform pipeline: the stream is probed,
fetched to a temporary file, and handed to the configured transform command
([transform] in the config file). Progress is reported across the whole
pipeline, download and transform each counting for half.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		if len(a.runtime.GetTransformCommand()) == 0 {
			return fmt.Errorf("no transform command configured; set [transform] command in %s", configFileHint())
		}

		id, err := a.engine.QueueTranscription(engine.TranscribeRequest{
			Locator:    args[0],
			OutputName: transcribeOutput,
		})
		if err != nil {
			return err
		}
		a.logger.Debug("pipeline queued", "task", shortID(id))

		return a.wait(cmd.Context())
	},
}

func init() {
	transcribeCmd.Flags().StringVarP(&transcribeOutput, "output", "o", "", "artifact filename (default derived from the stream)")
}

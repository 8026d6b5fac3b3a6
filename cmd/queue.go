package cmd

import (
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/barge-dl/barge/internal/engine"
)

var (
	queueGroup     string
	queueExt       string
	queueSizeHint  string
	queueClipboard bool
)

var queueCmd = &cobra.Command{
	Use:   "queue [locator...]",
	Short: "Queue one or more downloads and wait for them to finish",
	Long: `Queue creates a persistent record per locator and runs the transfers.
Locators come from the arguments, or from the system clipboard with
--from-clipboard (one per line). Queueing a locator that already has an
in-flight record reuses that record instead of starting a second transfer.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		locators, err := collectLocators(args)
		if err != nil {
			return err
		}
		if len(locators) == 0 {
			return fmt.Errorf("no locators given")
		}

		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		for _, loc := range locators {
			id, err := a.engine.Queue(engine.QueueRequest{
				Locator:       loc,
				GroupID:       queueGroup,
				FileExtension: queueExt,
				SizeHint:      queueSizeHint,
			})
			if err != nil {
				return fmt.Errorf("failed to queue %q: %w", loc, err)
			}
			a.logger.Debug("record created", "record", shortID(id), "locator", loc)
		}

		return a.wait(cmd.Context())
	},
}

func init() {
	queueCmd.Flags().StringVarP(&queueGroup, "group", "g", "", "group ID for batch cancellation")
	queueCmd.Flags().StringVarP(&queueExt, "ext", "e", "", "file extension for extensionless destinations")
	queueCmd.Flags().StringVar(&queueSizeHint, "size-hint", "", "advisory size or quality label stored on the record")
	queueCmd.Flags().BoolVarP(&queueClipboard, "from-clipboard", "c", false, "read locators from the clipboard, one per line")
}

// collectLocators merges argument locators with clipboard lines when asked.
func collectLocators(args []string) ([]string, error) {
	out := append([]string(nil), args...)
	if !queueClipboard {
		return out, nil
	}

	text, err := clipboard.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read clipboard: %w", err)
	}
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out, nil
}

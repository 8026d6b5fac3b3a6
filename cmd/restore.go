package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Resume every interrupted download",
	Long: `Restore re-queues every record that never reached a terminal state, for
example after a crash or reboot, and waits for the transfers to finish.
Transfers restart from the beginning; barge does not resume partial files.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		count, err := a.engine.Restore()
		if err != nil {
			return err
		}
		if count == 0 {
			fmt.Println("nothing to restore")
			return nil
		}

		return a.wait(cmd.Context())
	},
}

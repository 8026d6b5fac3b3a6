package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete completed, failed and cancelled records",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.store.ClearTerminal()
		if err != nil {
			return err
		}
		fmt.Printf("removed %d record(s)\n", n)
		return nil
	},
}

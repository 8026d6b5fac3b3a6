package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show all download records",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		recs, err := a.store.All()
		if err != nil {
			return err
		}

		if statusJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(recs)
		}

		if len(recs) == 0 {
			fmt.Println("no records")
			return nil
		}

		plain := plainOutput()
		for _, rec := range recs {
			fmt.Println(renderSnapshot(snapshotOfRecord(rec), plain))
			if rec.ErrorMessage != "" {
				fmt.Printf("          %s\n", failedStyle.Render(rec.ErrorMessage))
			}
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "emit records as JSON")
}

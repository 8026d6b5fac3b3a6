package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll the record store and redraw active transfers",
	Long: `Watch polls the record store and redraws the non-terminal records until
none remain or the command is interrupted. It observes a queue running in
another barge process; it never starts transfers itself.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		plain := plainOutput()
		ticker := time.NewTicker(watchInterval)
		defer ticker.Stop()

		prevLines := 0
		for {
			recs, err := a.store.NonTerminal()
			if err != nil {
				return err
			}

			var b strings.Builder
			for _, rec := range recs {
				b.WriteString(renderSnapshot(snapshotOfRecord(rec), plain))
				b.WriteByte('\n')
			}

			// Rewind over the previous frame before drawing the next one.
			if prevLines > 0 && !plain {
				fmt.Printf("\033[%dA\033[J", prevLines)
			}
			fmt.Print(b.String())
			prevLines = len(recs)

			if len(recs) == 0 {
				fmt.Println("no active transfers")
				return nil
			}

			select {
			case <-cmd.Context().Done():
				return nil
			case <-ticker.C:
			}
		}
	},
}

func init() {
	watchCmd.Flags().DurationVarP(&watchInterval, "interval", "i", time.Second, "poll interval")
}

package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/barge-dl/barge/internal/engine/state"
)

var cancelGroup string

var cancelCmd = &cobra.Command{
	Use:   "cancel [record-id-prefix]",
	Short: "Cancel a pending or running download",
	Long: `Cancel marks a record cancelled. A transfer running in another barge
process notices the terminal record at its next progress write and stops;
bytes already on disk stay there. With --group every non-terminal record in
the group is cancelled.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cancelGroup == "" && len(args) == 0 {
			return fmt.Errorf("give a record ID prefix or --group")
		}

		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		now := time.Now().Unix()

		if cancelGroup != "" {
			recs, err := a.store.ByGroup(cancelGroup)
			if err != nil {
				return err
			}
			n := 0
			for _, rec := range recs {
				applied, err := a.store.MarkCancelled(rec.ID, now)
				if err != nil {
					return err
				}
				if applied {
					n++
				}
			}
			a.logger.Info("cancelled group", "group", cancelGroup, "count", n)
			return nil
		}

		id, err := a.resolveRecordID(args[0])
		if errors.Is(err, state.ErrAmbiguousPrefix) {
			return fmt.Errorf("prefix %q matches more than one record", args[0])
		}
		if err != nil {
			return err
		}

		applied, err := a.store.MarkCancelled(id, now)
		if err != nil {
			return err
		}
		if !applied {
			return fmt.Errorf("record %s already finished", shortID(id))
		}
		a.logger.Info("cancelled", "record", shortID(id))
		return nil
	},
}

func init() {
	cancelCmd.Flags().StringVarP(&cancelGroup, "group", "g", "", "cancel every record in this group")
}

package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/matta/gmailmerge/internal/persist"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded merge runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		db, err := persist.Open(ctx, flagDB)
		if err != nil {
			return errors.Wrap(err, "unable to open run history")
		}
		defer db.Close()

		w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "STARTED\tMODE\tSUBJECT\tSENT\tDRAFTED\tSKIPPED\tFAILED\tRUN")
		err = db.ListRuns(ctx, func(s persist.RunSummary) error {
			_, err := fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
				s.StartedAt.Local().Format("2006-01-02 15:04"),
				s.Mode, s.Subject, s.Sent, s.Drafted, s.Skipped, s.Failed, s.ID)
			return err
		})
		if err != nil {
			return err
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
}

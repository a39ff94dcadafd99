package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/AldinMesan/ParcelsScript/internal/model"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show coordinate counts by status",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		counts, err := st.CountByStatus(ctx)
		if err != nil {
			return eris.Wrap(err, "status")
		}

		out := cmd.OutOrStdout()
		var total int64
		for _, s := range model.Statuses {
			fmt.Fprintf(out, "%-12s %d\n", s, counts[s])
			total += counts[s]
		}
		fmt.Fprintf(out, "%-12s %d\n", "TOTAL", total)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

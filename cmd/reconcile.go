package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AldinMesan/ParcelsScript/internal/scraper"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reset stuck PROCESSING records to TODO",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		olderThan, _ := cmd.Flags().GetDuration("older-than")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := scraper.NewEngine(st, nil, nil).Reconcile(ctx, olderThan)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "reset %d record(s) to TODO\n", n)
		return nil
	},
}

func init() {
	reconcileCmd.Flags().Duration("older-than", 0, "only reset records claimed longer ago than this")
	rootCmd.AddCommand(reconcileCmd)
}

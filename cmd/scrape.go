package main

import (
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AldinMesan/ParcelsScript/internal/events"
	"github.com/AldinMesan/ParcelsScript/internal/fetcher"
	"github.com/AldinMesan/ParcelsScript/internal/report"
	"github.com/AldinMesan/ParcelsScript/internal/scraper"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Look up parcels for every TODO coordinate",
	Long: `Claims each TODO coordinate in id order, queries the lookup service,
stores the parcels payload and marks the record DONE.

PROCESSING records older than --stale-after are reset to TODO first, so an
interrupted run resumes where it stopped. Use --stale-after 0 to skip that.

Each run also writes a CSV snapshot (lat, lng, status, response) of the
records it completed. Use --snapshot=false to skip it.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("scrape"); err != nil {
			return err
		}

		limit, _ := cmd.Flags().GetInt("limit")
		staleAfter, _ := cmd.Flags().GetDuration("stale-after")
		snapshot, _ := cmd.Flags().GetBool("snapshot")
		if !cmd.Flags().Changed("limit") {
			limit = cfg.Scrape.Limit
		}
		if !cmd.Flags().Changed("stale-after") {
			staleAfter = cfg.Scrape.StaleAfter()
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		f := fetcher.NewHTTPClient(fetcher.HTTPOptions{
			BaseURL:   cfg.Lookup.BaseURL,
			AuthToken: cfg.Lookup.AuthToken,
			AuthEmail: cfg.Lookup.AuthEmail,
			UserAgent: cfg.Lookup.UserAgent,
			Timeout:   time.Duration(cfg.Lookup.TimeoutSecs) * time.Second,
			Pause:     cfg.Lookup.Pause(),
		})

		var pub events.Publisher = events.Nop{}
		if cfg.Events.Enabled() {
			kp := events.NewKafkaPublisher(cfg.Events.Brokers, cfg.Events.Topic)
			defer kp.Close() //nolint:errcheck
			pub = kp
		}

		sum, runErr := scraper.NewEngine(st, f, pub).Run(ctx, scraper.Options{
			Limit:      limit,
			StaleAfter: staleAfter,
		})

		// A cancelled run still snapshots what it completed.
		if snapshot && sum != nil {
			output, _ := cmd.Flags().GetString("output")
			output = outputPath(output, "scraped_parcel_data.csv")
			if err := writeFile(output, func(w io.Writer) error {
				return report.WriteScrapeCSV(w, sum.Records)
			}); err != nil {
				return eris.Wrap(err, "scrape: write snapshot")
			}
			zap.L().Info("scrape snapshot written",
				zap.String("path", output),
				zap.Int("rows", len(sum.Records)),
			)
		}
		if runErr != nil {
			return eris.Wrap(runErr, "scrape")
		}

		zap.L().Info("scrape finished",
			zap.String("run_id", sum.RunID),
			zap.Int("done", sum.Done),
			zap.Int("empty", sum.Empty),
			zap.Int("fetch_errors", sum.FetchErrors),
		)
		return nil
	},
}

func init() {
	scrapeCmd.Flags().Int("limit", 0, "max records to process (0 = all pending)")
	scrapeCmd.Flags().Duration("stale-after", 30*time.Minute, "reset PROCESSING records claimed longer ago than this (0 = skip)")
	scrapeCmd.Flags().Bool("snapshot", true, "write a lat,lng,status,response CSV of the records completed in this run")
	scrapeCmd.Flags().String("output", "", "snapshot path (default <report.output_dir>/scraped_parcel_data.csv)")
	rootCmd.AddCommand(scrapeCmd)
}

package main

import (
	"io"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AldinMesan/ParcelsScript/internal/flatten"
	"github.com/AldinMesan/ParcelsScript/internal/report"
)

var flattenCmd = &cobra.Command{
	Use:   "flatten",
	Short: "Flatten stored results into a parcel report",
	Long: `Reads every stored result, takes the first parcel's parcel_data and writes
one row per result with parcel_id, state, apn, acreage, parcel_address,
parcel_owner and polygon_as_text. Missing values are left empty.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		formatStr, _ := cmd.Flags().GetString("format")
		if !cmd.Flags().Changed("format") {
			formatStr = cfg.Report.Format
		}
		format, err := report.ParseFormat(formatStr)
		if err != nil {
			return err
		}
		output, _ := cmd.Flags().GetString("output")
		output = outputPath(output, "formatted_parcel_data."+format.Extension())
		upload, _ := cmd.Flags().GetBool("upload")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		results, err := st.ListResults(ctx)
		if err != nil {
			return eris.Wrap(err, "flatten")
		}
		rows := flatten.FlattenAll(results)

		if err := writeFile(output, func(w io.Writer) error {
			return report.Write(w, format, rows)
		}); err != nil {
			return eris.Wrap(err, "flatten: write report")
		}

		log := zap.L().With(zap.String("command", "flatten"))
		log.Info("report written",
			zap.String("path", output),
			zap.String("format", string(format)),
			zap.Int("rows", len(rows)),
		)

		if upload {
			key, err := uploadFile(ctx, output)
			if err != nil {
				return eris.Wrap(err, "flatten: upload")
			}
			log.Info("report uploaded", zap.String("key", key))
		}
		return nil
	},
}

func init() {
	flattenCmd.Flags().String("output", "", "report path (default <report.output_dir>/formatted_parcel_data.<format>)")
	flattenCmd.Flags().String("format", "csv", "report format: csv, xlsx, geojson")
	flattenCmd.Flags().Bool("upload", false, "upload the report to object storage")
	rootCmd.AddCommand(flattenCmd)
}

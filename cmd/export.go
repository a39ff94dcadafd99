package main

import (
	"io"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AldinMesan/ParcelsScript/internal/flatten"
	"github.com/AldinMesan/ParcelsScript/internal/model"
	"github.com/AldinMesan/ParcelsScript/internal/report"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export raw results (id, origin_id, data) as CSV",
	Long:  "Writes every result whose payload parses as JSON. Unparseable payloads are logged and left out.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		output, _ := cmd.Flags().GetString("output")
		output = outputPath(output, "parsed_data.csv")
		upload, _ := cmd.Flags().GetBool("upload")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		results, err := st.ListResults(ctx)
		if err != nil {
			return eris.Wrap(err, "export")
		}

		rows := make([]model.RawRow, 0, len(results))
		for _, r := range results {
			if row, ok := flatten.Raw(r); ok {
				rows = append(rows, row)
			}
		}

		if err := writeFile(output, func(w io.Writer) error {
			return report.WriteRawCSV(w, rows)
		}); err != nil {
			return eris.Wrap(err, "export: write csv")
		}

		log := zap.L().With(zap.String("command", "export"))
		log.Info("export written",
			zap.String("path", output),
			zap.Int("rows", len(rows)),
			zap.Int("dropped", len(results)-len(rows)),
		)

		if upload {
			key, err := uploadFile(ctx, output)
			if err != nil {
				return eris.Wrap(err, "export: upload")
			}
			log.Info("export uploaded", zap.String("key", key))
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().String("output", "", "CSV path (default <report.output_dir>/parsed_data.csv)")
	exportCmd.Flags().Bool("upload", false, "upload the CSV to object storage")
	rootCmd.AddCommand(exportCmd)
}

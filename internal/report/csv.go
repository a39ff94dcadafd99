package report

import (
	"encoding/csv"
	"io"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/AldinMesan/ParcelsScript/internal/model"
)

// WriteCSV writes the flattened report. Null fields are written as empty cells.
func WriteCSV(w io.Writer, rows []model.ParcelRow) error {
	return encodeCSV(w, model.ParcelRow{}, rows)
}

// WriteRawCSV writes the (id, origin_id, data) export.
func WriteRawCSV(w io.Writer, rows []model.RawRow) error {
	return encodeCSV(w, model.RawRow{}, rows)
}

// WriteScrapeCSV writes the per-run snapshot of processed coordinates.
func WriteScrapeCSV(w io.Writer, rows []model.ScrapeRow) error {
	return encodeCSV(w, model.ScrapeRow{}, rows)
}

func encodeCSV[T any](w io.Writer, header T, rows []T) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)

	if err := enc.EncodeHeader(header); err != nil {
		return eris.Wrap(err, "report: csv header")
	}
	for i, r := range rows {
		if err := enc.Encode(r); err != nil {
			return eris.Wrapf(err, "report: csv row %d", i)
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "report: csv flush")
}

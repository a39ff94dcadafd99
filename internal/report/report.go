// Package report writes flattened parcel rows as CSV, XLSX or GeoJSON.
package report

import (
	"io"

	"github.com/rotisserie/eris"

	"github.com/AldinMesan/ParcelsScript/internal/model"
)

// Format selects the report encoding.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatXLSX    Format = "xlsx"
	FormatGeoJSON Format = "geojson"
)

// ParseFormat converts a flag value into a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatCSV, FormatXLSX, FormatGeoJSON:
		return Format(s), nil
	default:
		return "", eris.Errorf("unknown report format: %q (valid: csv, xlsx, geojson)", s)
	}
}

// Extension returns the file extension for the format, without the dot.
func (f Format) Extension() string {
	return string(f)
}

// Write encodes rows to w in the given format.
func Write(w io.Writer, f Format, rows []model.ParcelRow) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, rows)
	case FormatXLSX:
		return WriteXLSX(w, rows)
	case FormatGeoJSON:
		_, err := WriteGeoJSON(w, rows)
		return err
	default:
		return eris.Errorf("report: unsupported format %q", f)
	}
}

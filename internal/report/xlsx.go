package report

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/AldinMesan/ParcelsScript/internal/model"
)

// SheetName is the worksheet holding the flattened report.
const SheetName = "parcels"

// WriteXLSX writes the flattened report as a single-sheet workbook.
func WriteXLSX(w io.Writer, rows []model.ParcelRow) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return eris.Wrap(err, "report: xlsx add sheet")
	}

	header := sheet.AddRow()
	for _, col := range model.Columns() {
		header.AddCell().SetString(col)
	}

	for _, r := range rows {
		row := sheet.AddRow()
		row.AddCell().SetInt64(r.ID)
		row.AddCell().SetInt64(r.OriginID)
		for _, v := range r.Values()[2:] {
			cell := row.AddCell()
			if v != "" {
				cell.SetString(v)
			}
		}
	}

	return eris.Wrap(f.Write(w), "report: xlsx write")
}

package export

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/frc-county-map/internal/model"
)

// ReviewSheet is the sheet name used in the review workbook.
const ReviewSheet = "Teams"

// substringFill highlights rows whose postal code came from a loose
// place-name match.
const substringFill = "FFFFEB9C"

// WriteReviewXLSX writes the review table as a workbook. Substring guesses
// are highlighted so they stand out for manual checking.
func WriteReviewXLSX(path string, records []model.TeamRecord) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(ReviewSheet)
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	bold := xlsx.NewStyle()
	bold.Font.Bold = true
	bold.ApplyFont = true
	for _, col := range reviewColumns {
		c := header.AddCell()
		c.SetString(col)
		c.SetStyle(bold)
	}

	flagged := xlsx.NewStyle()
	flagged.Fill = *xlsx.NewFill("solid", substringFill, substringFill)
	flagged.ApplyFill = true

	for _, r := range records {
		row := sheet.AddRow()
		for _, v := range reviewRow(r) {
			c := row.AddCell()
			c.SetString(v)
			if r.ZipSource == model.ZipSourceSubstring {
				c.SetStyle(flagged)
			}
		}
	}

	sheet.SetColWidth(1, len(reviewColumns), 18)

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

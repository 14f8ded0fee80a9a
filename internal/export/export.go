// Package export writes the roster, review, and county-count tables and
// reads back an operator-edited review file.
package export

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/frc-county-map/internal/model"
)

// rosterColumns are the columns of the pre-resolution team roster.
var rosterColumns = []string{
	"team_key",
	"team_number",
	"name",
	"city",
	"state",
	"postal_code",
}

// reviewColumns extend the roster with resolution results.
var reviewColumns = append(append([]string(nil), rosterColumns...), "zip_source", "county")

var countsColumns = []string{"county", "team_count"}

// WriteFile writes path atomically: write is given a temp file in the same
// directory, which replaces path only when write succeeds.
func WriteFile(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "export: create dir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.part")
	if err != nil {
		return eris.Wrap(err, "export: create temp file")
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) //nolint:errcheck

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "export: close temp file")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return eris.Wrapf(err, "export: rename to %s", path)
	}
	return nil
}

// WriteRoster writes the collected teams before resolution.
func WriteRoster(path string, records []model.TeamRecord) error {
	return writeCSV(path, rosterColumns, len(records), func(i int) []string {
		return rosterRow(records[i])
	})
}

// WriteReview writes teams with their postal-code source and county so an
// operator can check guesses and fill gaps.
func WriteReview(path string, records []model.TeamRecord) error {
	return writeCSV(path, reviewColumns, len(records), func(i int) []string {
		return reviewRow(records[i])
	})
}

// WriteCounts writes the per-county team counts.
func WriteCounts(path string, counts []model.CountyCount) error {
	return writeCSV(path, countsColumns, len(counts), func(i int) []string {
		return []string{counts[i].County, strconv.Itoa(counts[i].TeamCount)}
	})
}

func writeCSV(path string, header []string, n int, row func(i int) []string) error {
	return WriteFile(path, func(f io.Writer) error {
		w := csv.NewWriter(f)
		if err := w.Write(header); err != nil {
			return eris.Wrap(err, "export: write header")
		}
		for i := 0; i < n; i++ {
			if err := w.Write(row(i)); err != nil {
				return eris.Wrap(err, "export: write row")
			}
		}
		w.Flush()
		return eris.Wrap(w.Error(), "export: flush")
	})
}

func rosterRow(r model.TeamRecord) []string {
	number := ""
	if r.TeamNumber > 0 {
		number = strconv.Itoa(r.TeamNumber)
	}
	return []string{
		r.TeamKey,    // team_key
		number,       // team_number
		r.Name,       // name
		r.City,       // city
		r.State,      // state
		r.PostalCode, // postal_code
	}
}

func reviewRow(r model.TeamRecord) []string {
	return append(rosterRow(r), string(r.ZipSource), r.County)
}

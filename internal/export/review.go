package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/frc-county-map/internal/apperr"
	"github.com/sells-group/frc-county-map/internal/fetcher"
	"github.com/sells-group/frc-county-map/internal/model"
)

// ReadReview reads a review file written by WriteReview or WriteReviewXLSX,
// possibly edited by hand. Rows without a team key are skipped.
func ReadReview(ctx context.Context, path string) ([]model.TeamRecord, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.NewConfigError(eris.Errorf("export: review file %s not found", path))
		}
		return nil, eris.Wrapf(err, "export: stat %s", path)
	}

	var (
		header []string
		rows   [][]string
		err    error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		header, rows, err = fetcher.ReadXLSX(path, fetcher.XLSXOptions{SkipRows: 1})
	case ".csv":
		header, rows, err = readCSV(ctx, path)
	default:
		return nil, apperr.NewConfigError(eris.Errorf("export: unsupported review format %q (want .csv or .xlsx)", filepath.Ext(path)))
	}
	if err != nil {
		return nil, eris.Wrapf(err, "export: read review %s", path)
	}

	idx := fetcher.HeaderIndex(header)
	if _, ok := idx["team_key"]; !ok {
		return nil, apperr.NewConfigError(eris.Errorf("export: review file %s has no team_key column", path))
	}

	var out []model.TeamRecord
	var skipped int
	for _, row := range rows {
		rec, ok := recordFromRow(row, idx)
		if !ok {
			skipped++
			continue
		}
		out = append(out, rec)
	}

	zap.L().Info("export: read review",
		zap.String("path", path),
		zap.Int("records", len(out)),
		zap.Int("skipped", skipped),
	)
	return out, nil
}

func readCSV(ctx context.Context, path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, eris.Wrap(err, "open")
	}
	defer f.Close() //nolint:errcheck

	headerCh := make(chan []string, 1)
	rowCh, errCh := fetcher.StreamCSV(ctx, f, fetcher.CSVOptions{
		HasHeader:  true,
		HeaderCh:   headerCh,
		LazyQuotes: true,
		TrimSpace:  true,
	})

	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	if err := <-errCh; err != nil {
		return nil, nil, err
	}

	var header []string
	select {
	case header = <-headerCh:
	default:
	}
	return header, rows, nil
}

func recordFromRow(row []string, idx map[string]int) (model.TeamRecord, bool) {
	key := strings.TrimSpace(fetcher.Field(row, idx, "team_key"))
	if key == "" {
		return model.TeamRecord{}, false
	}

	number, _ := strconv.Atoi(strings.TrimSpace(fetcher.Field(row, idx, "team_number")))
	if number == 0 {
		number, _ = strconv.Atoi(strings.TrimPrefix(key, "frc"))
	}

	return model.TeamRecord{
		TeamKey:    key,
		TeamNumber: number,
		Name:       strings.TrimSpace(fetcher.Field(row, idx, "name")),
		City:       strings.TrimSpace(fetcher.Field(row, idx, "city")),
		State:      strings.TrimSpace(fetcher.Field(row, idx, "state")),
		PostalCode: strings.TrimSpace(fetcher.Field(row, idx, "postal_code")),
		ZipSource:  parseZipSource(fetcher.Field(row, idx, "zip_source")),
		County:     strings.TrimSpace(fetcher.Field(row, idx, "county")),
	}, true
}

// parseZipSource maps unknown values to ZipSourceNone so the resolver
// re-derives the source from the postal code.
func parseZipSource(s string) model.ZipSource {
	switch z := model.ZipSource(strings.ToLower(strings.TrimSpace(s))); z {
	case model.ZipSourceProvider, model.ZipSourceExact, model.ZipSourceSubstring:
		return z
	default:
		return model.ZipSourceNone
	}
}

package export

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/frc-county-map/internal/apperr"
	"github.com/sells-group/frc-county-map/internal/model"
)

func sampleRecords() []model.TeamRecord {
	return []model.TeamRecord{
		{TeamKey: "frc33", TeamNumber: 33, Name: "Killer Bees", City: "Auburn Hills", State: "MI", PostalCode: "48326", ZipSource: model.ZipSourceProvider, County: "Oakland"},
		{TeamKey: "frc67", TeamNumber: 67, Name: "The HOT Team", City: "Highland, Township", State: "MI", PostalCode: "48357", ZipSource: model.ZipSourceSubstring},
		{TeamKey: "frc9999", TeamNumber: 9999, Name: "Nowhere", City: "", State: "MI"},
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestWriteRoster(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "all_teams_2025.csv")
	require.NoError(t, WriteRoster(path, sampleRecords()))

	want := "team_key,team_number,name,city,state,postal_code\n" +
		"frc33,33,Killer Bees,Auburn Hills,MI,48326\n" +
		"frc67,67,The HOT Team,\"Highland, Township\",MI,48357\n" +
		"frc9999,9999,Nowhere,,MI,\n"
	assert.Equal(t, want, readFile(t, path))
}

func TestWriteReview(t *testing.T) {
	path := filepath.Join(t.TempDir(), "review.csv")
	require.NoError(t, WriteReview(path, sampleRecords()))

	want := "team_key,team_number,name,city,state,postal_code,zip_source,county\n" +
		"frc33,33,Killer Bees,Auburn Hills,MI,48326,provider,Oakland\n" +
		"frc67,67,The HOT Team,\"Highland, Township\",MI,48357,guess_substring,\n" +
		"frc9999,9999,Nowhere,,MI,,,\n"
	assert.Equal(t, want, readFile(t, path))
}

func TestWriteCounts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counts.csv")
	counts := []model.CountyCount{{County: "Oakland", TeamCount: 12}, {County: "St. Clair", TeamCount: 2}}
	require.NoError(t, WriteCounts(path, counts))

	assert.Equal(t, "county,team_count\nOakland,12\nSt. Clair,2\n", readFile(t, path))
}

func TestWriteFile_ErrorKeepsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.svg")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	err := WriteFile(path, func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return errors.New("render failed")
	})
	require.Error(t, err)
	assert.Equal(t, "old", readFile(t, path))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file is removed")
}

func TestReviewRoundTrip_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "review.csv")
	require.NoError(t, WriteReview(path, sampleRecords()))

	got, err := ReadReview(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, sampleRecords(), got)
}

func TestReviewRoundTrip_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "review.xlsx")
	require.NoError(t, WriteReviewXLSX(path, sampleRecords()))

	got, err := ReadReview(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, sampleRecords(), got)
}

func TestWriteReviewXLSX_Layout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "review.xlsx")
	require.NoError(t, WriteReviewXLSX(path, sampleRecords()))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	sheet, ok := f.Sheet[ReviewSheet]
	require.True(t, ok)
	require.Len(t, sheet.Rows, 4)
	assert.Equal(t, "zip_source", sheet.Rows[0].Cells[6].String())
	assert.Equal(t, "guess_substring", sheet.Rows[2].Cells[6].String())

	for _, idx := range []int{0, len(reviewColumns) - 1} {
		col := sheet.Col(idx)
		require.NotNil(t, col, "column %d", idx)
		assert.InDelta(t, 18, col.Width, 0.001)
	}
}

func TestReadReview_EditedCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edited.csv")
	content := "\ufeffTeam_Key,City,State,Postal_Code,Zip_Source,County\n" +
		"frc33,Auburn Hills,MI,48326,provider,oakland county\n" +
		",,,,,\n" +
		"frc1,Pontiac,MI, 48341 ,bogus,\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	got, err := ReadReview(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, 33, got[0].TeamNumber, "team number falls back to the key")
	assert.Equal(t, "oakland county", got[0].County)
	assert.Equal(t, "48341", got[1].PostalCode)
	assert.Equal(t, model.ZipSourceNone, got[1].ZipSource)
}

func TestReadReview_MissingTeamKeyColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("city,state\nDetroit,MI\n"), 0o644))

	_, err := ReadReview(context.Background(), path)
	require.Error(t, err)
	assert.True(t, apperr.IsConfig(err))
	assert.Contains(t, err.Error(), "team_key")
}

func TestReadReview_MissingFile(t *testing.T) {
	_, err := ReadReview(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
	assert.True(t, apperr.IsConfig(err))
}

func TestReadReview_UnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "review.txt")
	require.NoError(t, os.WriteFile(path, []byte("team_key\n"), 0o644))

	_, err := ReadReview(context.Background(), path)
	require.Error(t, err)
	assert.True(t, apperr.IsConfig(err))
}

func TestParseZipSource(t *testing.T) {
	assert.Equal(t, model.ZipSourceExact, parseZipSource(" Guess_Exact "))
	assert.Equal(t, model.ZipSourceProvider, parseZipSource("provider"))
	assert.Equal(t, model.ZipSourceNone, parseZipSource("manual"))
	assert.Equal(t, model.ZipSourceNone, parseZipSource(""))
}

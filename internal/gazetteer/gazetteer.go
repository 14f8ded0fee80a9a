// Package gazetteer loads the GeoNames postal code dump and answers
// postal-code and place-name lookups against it.
package gazetteer

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/frc-county-map/internal/apperr"
	"github.com/sells-group/frc-county-map/internal/fetcher"
)

// DumpFile is the name of the US postal dump inside the GeoNames archive.
const DumpFile = "US.txt"

// GeoNames postal dump column positions.
const (
	colCountry = iota
	colPostal
	colPlace
	colStateName
	colStateCode
	colCountyName
	colCountyCode
	colAdmin3Name
	colAdmin3Code
	colLat
	colLon
	colAccuracy
	numCols
)

// Entry is one row of the postal dump.
type Entry struct {
	PostalCode string
	PlaceName  string
	StateName  string
	StateCode  string
	CountyName string
	CountyCode string
	Lat        float64
	Lon        float64
}

// Gazetteer is an immutable in-memory index of postal entries. It is safe
// for concurrent reads.
type Gazetteer struct {
	entries  []Entry
	byPostal map[string]int   // first occurrence wins
	byState  map[string][]int // file order
}

// Load reads the dump from a .txt file or from a .zip archive containing
// US.txt. A missing file is a configuration error.
func Load(ctx context.Context, path string) (*Gazetteer, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.NewConfigError(eris.Errorf("gazetteer: file %s not found (run `frc-county-map gazetteer fetch`)", path))
		}
		return nil, eris.Wrapf(err, "gazetteer: stat %s", path)
	}

	var rc io.ReadCloser
	var err error
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		rc, err = fetcher.OpenZIPEntry(path, DumpFile)
	} else {
		rc, err = os.Open(path)
	}
	if err != nil {
		return nil, apperr.NewConfigError(eris.Wrapf(err, "gazetteer: open %s", path))
	}
	defer rc.Close() //nolint:errcheck

	g, err := Read(ctx, rc)
	if err != nil {
		return nil, eris.Wrapf(err, "gazetteer: load %s", path)
	}

	zap.L().Info("gazetteer: loaded",
		zap.String("path", path),
		zap.Int("entries", g.Len()),
		zap.Int("postal_codes", len(g.byPostal)),
	)
	return g, nil
}

// Read parses a tab-separated dump.
func Read(ctx context.Context, r io.Reader) (*Gazetteer, error) {
	g := &Gazetteer{
		byPostal: make(map[string]int),
		byState:  make(map[string][]int),
	}

	rowCh, errCh := fetcher.StreamCSV(ctx, r, fetcher.CSVOptions{
		Delimiter:  '\t',
		LazyQuotes: true,
	})
	line := 0
	for row := range rowCh {
		line++
		if len(row) < colLat {
			zap.L().Debug("gazetteer: skipping short row", zap.Int("line", line), zap.Int("fields", len(row)))
			continue
		}
		g.add(parseRow(row))
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return g, nil
}

// New builds a gazetteer from entries, preserving their order.
func New(entries []Entry) *Gazetteer {
	g := &Gazetteer{
		byPostal: make(map[string]int, len(entries)),
		byState:  make(map[string][]int),
	}
	for _, e := range entries {
		g.add(e)
	}
	return g
}

func (g *Gazetteer) add(e Entry) {
	if e.PostalCode == "" {
		return
	}
	i := len(g.entries)
	g.entries = append(g.entries, e)
	if _, ok := g.byPostal[e.PostalCode]; !ok {
		g.byPostal[e.PostalCode] = i
	}
	if e.StateCode != "" {
		g.byState[e.StateCode] = append(g.byState[e.StateCode], i)
	}
}

func parseRow(row []string) Entry {
	get := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}
	e := Entry{
		PostalCode: get(colPostal),
		PlaceName:  get(colPlace),
		StateName:  get(colStateName),
		StateCode:  strings.ToUpper(get(colStateCode)),
		CountyName: get(colCountyName),
		CountyCode: get(colCountyCode),
	}
	e.Lat, _ = strconv.ParseFloat(get(colLat), 64)
	e.Lon, _ = strconv.ParseFloat(get(colLon), 64)
	return e
}

// Len returns the number of entries.
func (g *Gazetteer) Len() int {
	return len(g.entries)
}

// Lookup returns the first entry for a five-character postal code.
func (g *Gazetteer) Lookup(postal string) (Entry, bool) {
	i, ok := g.byPostal[postal]
	if !ok {
		return Entry{}, false
	}
	return g.entries[i], true
}

// Places calls fn for each entry in the given two-letter state, in file
// order, until fn returns false.
func (g *Gazetteer) Places(stateCode string, fn func(Entry) bool) {
	for _, i := range g.byState[strings.ToUpper(stateCode)] {
		if !fn(g.entries[i]) {
			return
		}
	}
}

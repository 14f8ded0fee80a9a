// Package geometry loads county boundary polygons from GeoJSON, shapefiles,
// or zipped shapefiles, and identifies the attribute holding the county name.
package geometry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/frc-county-map/internal/apperr"
	"github.com/sells-group/frc-county-map/internal/county"
	"github.com/sells-group/frc-county-map/internal/fetcher"
	"github.com/sells-group/frc-county-map/internal/model"
)

// StateFIPSField is the Census attribute carrying the two-digit state code.
const StateFIPSField = "STATEFP"

// Options controls how a boundary file is interpreted.
type Options struct {
	// NameFields lists candidate county-name attributes in priority order.
	NameFields []string
	// StateFIPS, when set, keeps only features whose STATEFP matches. Files
	// without a STATEFP attribute are not filtered.
	StateFIPS string
}

// feature is one record read from any supported format.
type feature struct {
	geometry   geom.T
	properties map[string]any
}

// Load reads county geometries from path. Missing files and files without a
// recognizable name attribute are configuration errors.
func Load(path string, opts Options) ([]model.CountyGeometry, error) {
	features, err := read(path)
	if err != nil {
		return nil, err
	}

	field, err := detectNameField(features, opts.NameFields)
	if err != nil {
		return nil, apperr.NewConfigError(eris.Wrapf(err, "geometry: %s", path))
	}

	out := make([]model.CountyGeometry, 0, len(features))
	var filtered, unnamed int
	for _, f := range features {
		if opts.StateFIPS != "" {
			if fp, ok := f.properties[StateFIPSField]; ok && stringValue(fp) != opts.StateFIPS {
				filtered++
				continue
			}
		}
		raw := stringValue(f.properties[field])
		name := county.Canonicalize(raw)
		if name == "" || f.geometry == nil {
			unnamed++
			continue
		}
		props := make(map[string]any, len(f.properties))
		for k, v := range f.properties {
			if k != field {
				props[k] = v
			}
		}
		out = append(out, model.CountyGeometry{
			County:     name,
			RawName:    raw,
			Geometry:   f.geometry,
			Properties: props,
		})
	}

	zap.L().Info("geometry: loaded counties",
		zap.String("path", path),
		zap.String("name_field", field),
		zap.Int("counties", len(out)),
		zap.Int("filtered_other_states", filtered),
		zap.Int("skipped_unnamed", unnamed),
	)
	if len(out) == 0 {
		return nil, apperr.NewConfigError(eris.Errorf("geometry: no county features in %s", path))
	}
	return out, nil
}

// Fields returns the sorted attribute names present in a boundary file and
// the one Load would use as the county name ("" if none).
func Fields(path string, nameFields []string) ([]string, string, error) {
	features, err := read(path)
	if err != nil {
		return nil, "", err
	}
	names := propertyNames(features)
	field, _ := detectNameField(features, nameFields)
	return names, field, nil
}

// Fetch downloads a boundary file (HTTP or FTP) to dest. It reports false
// without touching dest when the ETag saved beside dest is still current.
func Fetch(ctx context.Context, f fetcher.Fetcher, url, dest string) (bool, error) {
	body, etag, err := fetcher.OpenIfChanged(ctx, f, url, dest)
	if err != nil {
		return false, eris.Wrapf(err, "geometry: download %s", url)
	}
	if body == nil {
		zap.L().Info("geometry: up to date", zap.String("url", url), zap.String("dest", dest))
		return false, nil
	}
	defer body.Close() //nolint:errcheck

	n, err := fetcher.WriteFile(dest, body)
	if err != nil {
		return false, eris.Wrapf(err, "geometry: download %s", url)
	}
	if err := fetcher.SaveETag(dest, etag); err != nil {
		zap.L().Warn("geometry: failed to save etag", zap.String("dest", dest), zap.Error(err))
	}
	zap.L().Info("geometry: downloaded", zap.String("url", url), zap.String("dest", dest), zap.Int64("bytes", n))
	return true, nil
}

func read(path string) ([]feature, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.NewConfigError(eris.Errorf("geometry: boundary file %s not found", path))
		}
		return nil, eris.Wrapf(err, "geometry: stat %s", path)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".geojson", ".json":
		return readGeoJSON(path)
	case ".shp":
		return readShapefile(path)
	case ".zip":
		return readZIP(path)
	default:
		return nil, apperr.NewConfigError(eris.Errorf("geometry: unsupported boundary format %q (want .geojson, .json, .shp or .zip)", ext))
	}
}

func readZIP(path string) ([]feature, error) {
	tmp, err := os.MkdirTemp("", "counties-*")
	if err != nil {
		return nil, eris.Wrap(err, "geometry: create temp dir")
	}
	defer os.RemoveAll(tmp) //nolint:errcheck

	paths, err := fetcher.ExtractZIP(path, tmp)
	if err != nil {
		return nil, apperr.NewConfigError(eris.Wrapf(err, "geometry: extract %s", path))
	}
	if shp := fetcher.FindByExt(paths, ".shp"); shp != "" {
		return readShapefile(shp)
	}
	if gj := fetcher.FindByExt(paths, ".geojson"); gj != "" {
		return readGeoJSON(gj)
	}
	return nil, apperr.NewConfigError(eris.Errorf("geometry: %s contains no .shp or .geojson file", path))
}

// detectNameField returns the first candidate present on any feature.
func detectNameField(features []feature, candidates []string) (string, error) {
	present := make(map[string]bool)
	for _, f := range features {
		for k := range f.properties {
			present[k] = true
		}
	}
	for _, c := range candidates {
		if present[c] {
			return c, nil
		}
	}
	return "", eris.Errorf("could not find county name field (tried %s); available fields: %s",
		strings.Join(candidates, ", "), strings.Join(propertyNames(features), ", "))
}

func propertyNames(features []feature) []string {
	seen := make(map[string]bool)
	var names []string
	for _, f := range features {
		for k := range f.properties {
			if !seen[k] {
				seen[k] = true
				names = append(names, k)
			}
		}
	}
	sort.Strings(names)
	return names
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprint(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

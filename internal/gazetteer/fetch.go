package gazetteer

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/frc-county-map/internal/fetcher"
)

// Fetch downloads the GeoNames archive from url and writes the US dump to
// dest. Plain-text URLs are written to dest as-is. The server's ETag is kept
// beside dest, and Fetch reports false without touching dest when the
// server says the copy is current.
func Fetch(ctx context.Context, f fetcher.Fetcher, url, dest string) (bool, error) {
	log := zap.L().With(zap.String("component", "gazetteer"))

	body, etag, err := fetcher.OpenIfChanged(ctx, f, url, dest)
	if err != nil {
		return false, eris.Wrapf(err, "gazetteer: download %s", url)
	}
	if body == nil {
		log.Info("gazetteer: up to date", zap.String("dest", dest))
		return false, nil
	}
	defer body.Close() //nolint:errcheck

	if !strings.EqualFold(filepath.Ext(url), ".zip") {
		n, err := fetcher.WriteFile(dest, body)
		if err != nil {
			return false, eris.Wrapf(err, "gazetteer: download %s", url)
		}
		log.Info("gazetteer: downloaded", zap.String("dest", dest), zap.Int64("bytes", n))
		saveETag(log, dest, etag)
		return true, nil
	}

	tmp, err := os.MkdirTemp("", "gazetteer-*")
	if err != nil {
		return false, eris.Wrap(err, "gazetteer: create temp dir")
	}
	defer os.RemoveAll(tmp) //nolint:errcheck

	archive := filepath.Join(tmp, "archive.zip")
	n, err := fetcher.WriteFile(archive, body)
	if err != nil {
		return false, eris.Wrapf(err, "gazetteer: download %s", url)
	}
	log.Info("gazetteer: downloaded archive", zap.String("url", url), zap.Int64("bytes", n))

	extracted, err := fetcher.ExtractZIPFile(archive, DumpFile, tmp)
	if err != nil {
		return false, eris.Wrap(err, "gazetteer: extract")
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return false, eris.Wrap(err, "gazetteer: create dest dir")
	}
	if err := moveFile(extracted, dest); err != nil {
		return false, err
	}
	log.Info("gazetteer: installed", zap.String("dest", dest))
	saveETag(log, dest, etag)
	return true, nil
}

func saveETag(log *zap.Logger, dest, etag string) {
	if err := fetcher.SaveETag(dest, etag); err != nil {
		log.Warn("gazetteer: failed to save etag", zap.String("dest", dest), zap.Error(err))
	}
}

// moveFile renames src to dest, copying when they are on different devices.
func moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return eris.Wrap(err, "gazetteer: read extracted dump")
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return eris.Wrapf(err, "gazetteer: write %s", dest)
	}
	return nil
}

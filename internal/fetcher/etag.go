package fetcher

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

// ConditionalFetcher is implemented by fetchers that can skip a download
// when the server reports the resource unchanged.
type ConditionalFetcher interface {
	DownloadIfChanged(ctx context.Context, url string, etag string) (io.ReadCloser, string, bool, error)
}

// ETagPath is the sidecar file that records the ETag of the download
// installed at dest.
func ETagPath(dest string) string {
	return dest + ".etag"
}

// OpenIfChanged opens rawURL for installing at dest. When dest exists and the
// server still matches the ETag saved beside it, body is nil. Fetchers
// without conditional support always download. The returned etag is ""
// when the server sent none.
func OpenIfChanged(ctx context.Context, f Fetcher, rawURL, dest string) (io.ReadCloser, string, error) {
	cf, ok := f.(ConditionalFetcher)
	if !ok {
		body, err := f.Download(ctx, rawURL)
		return body, "", err
	}

	var etag string
	if _, err := os.Stat(dest); err == nil {
		if data, err := os.ReadFile(ETagPath(dest)); err == nil {
			etag = strings.TrimSpace(string(data))
		}
	}

	body, newTag, changed, err := cf.DownloadIfChanged(ctx, rawURL, etag)
	if err != nil {
		return nil, "", err
	}
	if !changed {
		return nil, etag, nil
	}
	return body, newTag, nil
}

// SaveETag records etag beside dest. An empty etag removes any stale record.
func SaveETag(dest, etag string) error {
	path := ETagPath(dest)
	if etag == "" {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return eris.Wrapf(err, "remove %s", path)
		}
		return nil
	}
	if err := os.WriteFile(path, []byte(etag+"\n"), 0o644); err != nil {
		return eris.Wrapf(err, "write %s", path)
	}
	return nil
}

// WriteFile atomically replaces path with the contents of src.
func WriteFile(path string, src io.Reader) (int64, error) {
	return writeFileAtomic(path, src)
}

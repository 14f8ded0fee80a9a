// Package county normalizes county names, counts teams per county, and joins
// those counts onto county boundaries.
package county

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const suffix = "County"

// Canonicalize returns the join key for a county name: whitespace collapsed,
// title-cased, with any trailing "County" tokens removed. It is idempotent,
// so names from the gazetteer, a review file, and a boundary file all meet on
// the same key. A name that is only "County" is left as is.
func Canonicalize(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	// Callers may run concurrently (serve); casers are not goroutine-safe.
	title := cases.Title(language.English).String(strings.Join(fields, " "))

	fields = strings.Fields(title)
	for len(fields) > 1 && fields[len(fields)-1] == suffix {
		fields = fields[:len(fields)-1]
	}
	return strings.Join(fields, " ")
}

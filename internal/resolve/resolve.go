// Package resolve fills in missing postal codes and maps postal codes to
// counties using the postal gazetteer.
package resolve

import (
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/frc-county-map/internal/county"
	"github.com/sells-group/frc-county-map/internal/gazetteer"
	"github.com/sells-group/frc-county-map/internal/model"
	"github.com/sells-group/frc-county-map/internal/region"
)

// Stats counts resolution outcomes for one batch of records.
type Stats struct {
	Provider       int // postal code came from the provider
	GuessExact     int // postal code guessed from an exact place match
	GuessSubstring int // postal code guessed from a partial place match
	NoPostal       int // no postal code and no guess
	NoCounty       int // postal code present but no county for it
	Preassigned    int // county already set (review re-import)
	Resolved       int // records leaving with a county
}

// Guesses returns the number of inferred postal codes.
func (s Stats) Guesses() int {
	return s.GuessExact + s.GuessSubstring
}

// Unresolved returns the number of records left without a county.
func (s Stats) Unresolved() int {
	return s.NoPostal + s.NoCounty
}

// Resolver answers postal and place lookups against a gazetteer.
type Resolver struct {
	gaz     *gazetteer.Gazetteer
	regions *region.Table
	log     *zap.Logger
}

// New creates a Resolver.
func New(gaz *gazetteer.Gazetteer, regions *region.Table) *Resolver {
	return &Resolver{
		gaz:     gaz,
		regions: regions,
		log:     zap.L().With(zap.String("component", "resolve")),
	}
}

// ZipToCounty returns the county for a postal code, without any trailing
// "County". Codes shorter than five characters are rejected; longer codes
// (ZIP+4) are looked up by their first five characters.
func (r *Resolver) ZipToCounty(postal string) (string, bool) {
	z := strings.TrimSpace(postal)
	if len(z) < 5 {
		return "", false
	}
	e, ok := r.gaz.Lookup(z[:5])
	if !ok {
		return "", false
	}
	name := strings.TrimSpace(e.CountyName)
	name = strings.TrimSpace(strings.TrimSuffix(name, " County"))
	if name == "" {
		return "", false
	}
	return name, true
}

// GuessZip infers a postal code from city and state. A case-insensitive exact
// place-name match within the state is tried first, then a match on the city
// appearing anywhere in the place name. The first match in gazetteer order
// wins.
func (r *Resolver) GuessZip(city, state string) (string, model.ZipSource, bool) {
	city = strings.ToLower(strings.Join(strings.Fields(city), " "))
	if city == "" || strings.TrimSpace(state) == "" {
		return "", model.ZipSourceNone, false
	}
	code, _ := r.regions.Normalize(state)

	var exact, partial string
	r.gaz.Places(code, func(e gazetteer.Entry) bool {
		place := strings.ToLower(e.PlaceName)
		if place == city {
			exact = e.PostalCode
			return false
		}
		if partial == "" && strings.Contains(place, city) {
			partial = e.PostalCode
		}
		return true
	})

	switch {
	case exact != "":
		return exact, model.ZipSourceExact, true
	case partial != "":
		return partial, model.ZipSourceSubstring, true
	default:
		return "", model.ZipSourceNone, false
	}
}

// Resolve returns a copy of records with missing postal codes guessed and
// every resolvable record assigned a canonical county. Records that cannot
// be resolved are kept with an empty county. A county already present on a
// record is kept and only canonicalized.
func (r *Resolver) Resolve(records []model.TeamRecord) ([]model.TeamRecord, Stats) {
	var stats Stats
	out := make([]model.TeamRecord, len(records))

	for i, rec := range records {
		rec.PostalCode = strings.TrimSpace(rec.PostalCode)

		if rec.County != "" {
			rec.County = county.Canonicalize(rec.County)
			stats.Preassigned++
			stats.Resolved++
			out[i] = rec
			continue
		}

		if rec.PostalCode == "" {
			rec.ZipSource = model.ZipSourceNone
			if zip, src, ok := r.GuessZip(rec.City, rec.State); ok {
				rec.PostalCode = zip
				rec.ZipSource = src
				r.log.Debug("resolve: guessed postal code",
					zap.String("team", rec.TeamKey),
					zap.String("city", rec.City),
					zap.String("postal_code", zip),
					zap.String("match", string(src)),
				)
			}
		} else if rec.ZipSource == model.ZipSourceNone {
			rec.ZipSource = model.ZipSourceProvider
		}

		switch rec.ZipSource {
		case model.ZipSourceProvider:
			stats.Provider++
		case model.ZipSourceExact:
			stats.GuessExact++
		case model.ZipSourceSubstring:
			stats.GuessSubstring++
		}

		if rec.PostalCode == "" {
			stats.NoPostal++
			r.log.Info("resolve: no postal code", zap.String("team", rec.TeamKey), zap.String("city", rec.City))
			out[i] = rec
			continue
		}

		name, ok := r.ZipToCounty(rec.PostalCode)
		if !ok {
			stats.NoCounty++
			r.log.Info("resolve: no county for postal code",
				zap.String("team", rec.TeamKey),
				zap.String("postal_code", rec.PostalCode),
			)
			out[i] = rec
			continue
		}
		rec.County = county.Canonicalize(name)
		stats.Resolved++
		out[i] = rec
	}

	r.log.Info("resolve: done",
		zap.Int("records", len(records)),
		zap.Int("resolved", stats.Resolved),
		zap.Int("guessed", stats.Guesses()),
		zap.Int("substring_guesses", stats.GuessSubstring),
		zap.Int("unresolved", stats.Unresolved()),
	)
	return out, stats
}

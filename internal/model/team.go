package model

// ZipSource records where a team's postal code came from.
type ZipSource string

const (
	ZipSourceNone      ZipSource = ""
	ZipSourceProvider  ZipSource = "provider"
	ZipSourceExact     ZipSource = "guess_exact"
	ZipSourceSubstring ZipSource = "guess_substring"
)

// Guessed reports whether the postal code was inferred from city and state.
func (z ZipSource) Guessed() bool {
	return z == ZipSourceExact || z == ZipSourceSubstring
}

// TeamRecord is one competition team with its address fields.
// TeamKey is the identity used for deduplication.
type TeamRecord struct {
	TeamKey    string    `json:"team_key"`
	TeamNumber int       `json:"team_number"`
	Name       string    `json:"name"`
	City       string    `json:"city"`
	State      string    `json:"state"`
	PostalCode string    `json:"postal_code,omitempty"`
	ZipSource  ZipSource `json:"zip_source,omitempty"`
	County     string    `json:"county,omitempty"`
}

// HasPostalCode reports whether the record carries a postal code.
func (t TeamRecord) HasPostalCode() bool {
	return t.PostalCode != ""
}

// Resolved reports whether the record has been assigned a county.
func (t TeamRecord) Resolved() bool {
	return t.County != ""
}

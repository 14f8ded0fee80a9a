// Package region normalizes US state and territory names to postal codes.
package region

import (
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// State describes one state or territory.
type State struct {
	Code    string   `yaml:"code"`
	Name    string   `yaml:"name"`
	FIPS    string   `yaml:"fips"`
	Aliases []string `yaml:"aliases,omitempty"`
}

// Table maps codes, names, and aliases to states.
type Table struct {
	byCode map[string]State
	byName map[string]string // upper-cased name or alias -> code
}

var defaultStates = []State{
	{Code: "AL", Name: "Alabama", FIPS: "01"},
	{Code: "AK", Name: "Alaska", FIPS: "02"},
	{Code: "AZ", Name: "Arizona", FIPS: "04"},
	{Code: "AR", Name: "Arkansas", FIPS: "05"},
	{Code: "CA", Name: "California", FIPS: "06"},
	{Code: "CO", Name: "Colorado", FIPS: "08"},
	{Code: "CT", Name: "Connecticut", FIPS: "09"},
	{Code: "DE", Name: "Delaware", FIPS: "10"},
	{Code: "DC", Name: "District of Columbia", FIPS: "11", Aliases: []string{"Washington DC", "Washington, D.C."}},
	{Code: "FL", Name: "Florida", FIPS: "12"},
	{Code: "GA", Name: "Georgia", FIPS: "13"},
	{Code: "HI", Name: "Hawaii", FIPS: "15"},
	{Code: "ID", Name: "Idaho", FIPS: "16"},
	{Code: "IL", Name: "Illinois", FIPS: "17"},
	{Code: "IN", Name: "Indiana", FIPS: "18"},
	{Code: "IA", Name: "Iowa", FIPS: "19"},
	{Code: "KS", Name: "Kansas", FIPS: "20"},
	{Code: "KY", Name: "Kentucky", FIPS: "21"},
	{Code: "LA", Name: "Louisiana", FIPS: "22"},
	{Code: "ME", Name: "Maine", FIPS: "23"},
	{Code: "MD", Name: "Maryland", FIPS: "24"},
	{Code: "MA", Name: "Massachusetts", FIPS: "25"},
	{Code: "MI", Name: "Michigan", FIPS: "26", Aliases: []string{"Mich."}},
	{Code: "MN", Name: "Minnesota", FIPS: "27"},
	{Code: "MS", Name: "Mississippi", FIPS: "28"},
	{Code: "MO", Name: "Missouri", FIPS: "29"},
	{Code: "MT", Name: "Montana", FIPS: "30"},
	{Code: "NE", Name: "Nebraska", FIPS: "31"},
	{Code: "NV", Name: "Nevada", FIPS: "32"},
	{Code: "NH", Name: "New Hampshire", FIPS: "33"},
	{Code: "NJ", Name: "New Jersey", FIPS: "34"},
	{Code: "NM", Name: "New Mexico", FIPS: "35"},
	{Code: "NY", Name: "New York", FIPS: "36"},
	{Code: "NC", Name: "North Carolina", FIPS: "37"},
	{Code: "ND", Name: "North Dakota", FIPS: "38"},
	{Code: "OH", Name: "Ohio", FIPS: "39"},
	{Code: "OK", Name: "Oklahoma", FIPS: "40"},
	{Code: "OR", Name: "Oregon", FIPS: "41"},
	{Code: "PA", Name: "Pennsylvania", FIPS: "42"},
	{Code: "RI", Name: "Rhode Island", FIPS: "44"},
	{Code: "SC", Name: "South Carolina", FIPS: "45"},
	{Code: "SD", Name: "South Dakota", FIPS: "46"},
	{Code: "TN", Name: "Tennessee", FIPS: "47"},
	{Code: "TX", Name: "Texas", FIPS: "48"},
	{Code: "UT", Name: "Utah", FIPS: "49"},
	{Code: "VT", Name: "Vermont", FIPS: "50"},
	{Code: "VA", Name: "Virginia", FIPS: "51"},
	{Code: "WA", Name: "Washington", FIPS: "53"},
	{Code: "WV", Name: "West Virginia", FIPS: "54"},
	{Code: "WI", Name: "Wisconsin", FIPS: "55"},
	{Code: "WY", Name: "Wyoming", FIPS: "56"},
	{Code: "PR", Name: "Puerto Rico", FIPS: "72"},
}

// Default returns a table with all 50 states, DC, and Puerto Rico.
func Default() *Table {
	t := &Table{
		byCode: make(map[string]State, len(defaultStates)),
		byName: make(map[string]string, len(defaultStates)*2),
	}
	for _, s := range defaultStates {
		t.Add(s)
	}
	return t
}

// Add registers or replaces a state. Aliases are merged with the existing entry.
func (t *Table) Add(s State) {
	s.Code = strings.ToUpper(strings.TrimSpace(s.Code))
	if s.Code == "" {
		return
	}
	if prev, ok := t.byCode[s.Code]; ok {
		if s.Name == "" {
			s.Name = prev.Name
		}
		if s.FIPS == "" {
			s.FIPS = prev.FIPS
		}
		s.Aliases = append(append([]string{}, prev.Aliases...), s.Aliases...)
	}
	s.FIPS = normalizeFIPS(s.FIPS)
	t.byCode[s.Code] = s
	if s.Name != "" {
		t.byName[nameKey(s.Name)] = s.Code
	}
	for _, a := range s.Aliases {
		t.byName[nameKey(a)] = s.Code
	}
}

// Normalize returns the 2-letter code for a code, full name, or alias.
// Unknown values return the upper-cased, trimmed input and false.
func (t *Table) Normalize(value string) (string, bool) {
	v := strings.ToUpper(strings.TrimSpace(value))
	if v == "" {
		return "", false
	}
	if _, ok := t.byCode[v]; ok {
		return v, true
	}
	if code, ok := t.byName[nameKey(v)]; ok {
		return code, true
	}
	return v, false
}

// Matches reports whether value names the same state as filter.
func (t *Table) Matches(value, filter string) bool {
	a, _ := t.Normalize(value)
	b, _ := t.Normalize(filter)
	return a != "" && a == b
}

// Lookup returns the state for a code, name, or alias.
func (t *Table) Lookup(value string) (State, bool) {
	code, ok := t.Normalize(value)
	if !ok {
		return State{}, false
	}
	return t.byCode[code], true
}

// Codes returns all registered codes in sorted order.
func (t *Table) Codes() []string {
	codes := make([]string, 0, len(t.byCode))
	for c := range t.byCode {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// fileFormat is the on-disk shape of a region override file.
type fileFormat struct {
	Regions []State `yaml:"regions"`
}

// LoadFile returns the default table extended with the entries in a YAML
// file. An empty path returns the default table unchanged.
//
//	regions:
//	  - code: MI
//	    aliases: ["Mitten State"]
func LoadFile(path string) (*Table, error) {
	t := Default()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "region: read %s", path)
	}

	var ff fileFormat
	if err := yaml.Unmarshal(data, &ff); err != nil {
		return nil, eris.Wrapf(err, "region: parse %s", path)
	}
	for _, s := range ff.Regions {
		t.Add(s)
	}
	return t, nil
}

func nameKey(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", "")
	return strings.Join(strings.Fields(s), " ")
}

func normalizeFIPS(code string) string {
	code = strings.TrimSpace(code)
	if len(code) == 1 {
		return "0" + code
	}
	return code
}

package models

import "regexp"

// InstrumentRegistry defines the YAML configuration that maps instrument
// series to the filename grammars their files are expected to match.
// Loaded from instruments.yaml at startup.
type InstrumentRegistry struct {
	Instruments []Instrument `json:"instruments" yaml:"instruments"`
}

// Instrument describes one instrument series and its accepted file patterns.
type Instrument struct {
	Series       string   `json:"series" yaml:"series"` // e.g. "ZPLSC"
	Name         string   `json:"name" yaml:"name"`
	FilePatterns []string `json:"filePatterns" yaml:"file_patterns"` // regexes, matched against the whole name
}

// Accepts reports whether any configured instrument covers the file name.
// Patterns are anchored before matching so a grammar cannot match a
// substring of an unrelated name. Unparseable patterns match nothing.
func (r *InstrumentRegistry) Accepts(name string) bool {
	for _, inst := range r.Instruments {
		for _, p := range inst.FilePatterns {
			matched, err := regexp.MatchString("^(?:"+p+")$", name)
			if err == nil && matched {
				return true
			}
		}
	}
	return false
}

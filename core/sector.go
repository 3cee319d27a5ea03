package core

import (
	"strings"
	"unicode"
)

// Sector is a named keyword set used to classify tenders.
type Sector struct {
	Name     string   `json:"name" yaml:"name"`
	Keywords []string `json:"keywords" yaml:"keywords"`
}

// SectorClassifier assigns texts to the first sector, in priority order, with a
// keyword occurring in the normalised text. Keywords are word stems: they match
// at the start of a word ("farmac" matches "farmacia", "obra" does not match
// "cobranza").
type SectorClassifier struct {
	sectors  []Sector
	keywords [][]string
	fallback string
}

// NewSectorClassifier normalises every keyword once up front. sectors order is the
// tie-break priority.
func NewSectorClassifier(sectors []Sector, fallback string) *SectorClassifier {
	c := &SectorClassifier{
		sectors:  sectors,
		keywords: make([][]string, len(sectors)),
		fallback: fallback,
	}
	for i, sector := range sectors {
		for _, kw := range sector.Keywords {
			if n := wordText(kw); n != "" {
				c.keywords[i] = append(c.keywords[i], n)
			}
		}
	}
	return c
}

// Classify returns the sector for the concatenation of texts.
func (c *SectorClassifier) Classify(texts ...string) string {
	normalized := make([]string, 0, len(texts))
	for _, t := range texts {
		if n := wordText(t); n != "" {
			normalized = append(normalized, n)
		}
	}
	haystack := " " + strings.Join(normalized, " ") + " "

	for i, sector := range c.sectors {
		for _, kw := range c.keywords[i] {
			if strings.Contains(haystack, " "+kw) {
				return sector.Name
			}
		}
	}
	return c.fallback
}

// Names returns sector names in priority order followed by the fallback.
func (c *SectorClassifier) Names() []string {
	names := make([]string, 0, len(c.sectors)+1)
	for _, s := range c.sectors {
		names = append(names, s.Name)
	}
	if c.fallback != "" {
		names = append(names, c.fallback)
	}
	return names
}

// wordText normalises s and turns punctuation into word separators.
func wordText(s string) string {
	return strings.Join(strings.FieldsFunc(NormalizeText(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}), " ")
}

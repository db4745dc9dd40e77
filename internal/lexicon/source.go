package lexicon

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// emptyGlosses are placeholders for bound particles; they carry no translation.
var emptyGlosses = map[string]struct{}{
	"[虛]": {},
	"[虛":  {},
}

// Entry is one head word and its glosses, deduplicated in insertion order.
type Entry struct {
	Surface string
	Glosses []string
}

// Record is one row of a source file. Gloss accepts a string or a list of strings.
type Record struct {
	Surface string `json:"paiwan"`
	Gloss   Gloss  `json:"chinese"`
}

// Gloss holds the raw gloss values of a record.
type Gloss []string

// UnmarshalJSON accepts "x", ["x", "y"] and null. Non-string list items are skipped.
func (g *Gloss) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*g = nil
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*g = Gloss{single}
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("gloss must be a string or a list of strings: %w", err)
	}
	out := make(Gloss, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
		}
	}
	*g = out
	return nil
}

// Source is an immutable, indexed dictionary with a priority weight.
type Source struct {
	key     string
	weight  float64
	entries []Entry
	// normalized surface forms, parallel to entries
	normals []string
	// surface form -> index into entries
	bySurface map[string]int
	// normalized form -> index of the first-loaded entry with that form
	byNormal map[string]int
}

// NewSource builds a source from records. Records with an empty surface form or
// without a usable gloss are dropped; records sharing a surface form are merged.
func NewSource(key string, weight float64, records []Record) *Source {
	s := &Source{
		key:       key,
		weight:    weight,
		bySurface: make(map[string]int),
		byNormal:  make(map[string]int),
	}
	for _, rec := range records {
		surface := strings.TrimSpace(rec.Surface)
		if surface == "" {
			continue
		}
		glosses := cleanGlosses(rec.Gloss)
		if len(glosses) == 0 {
			continue
		}
		idx, ok := s.bySurface[surface]
		if !ok {
			idx = len(s.entries)
			s.entries = append(s.entries, Entry{Surface: surface})
			s.bySurface[surface] = idx
		}
		s.entries[idx].Glosses = appendUnique(s.entries[idx].Glosses, glosses...)
	}
	s.normals = make([]string, len(s.entries))
	for i, e := range s.entries {
		nk := Normalize(e.Surface)
		s.normals[i] = nk
		if nk == "" {
			continue
		}
		if _, taken := s.byNormal[nk]; !taken {
			s.byNormal[nk] = i
		}
	}
	return s
}

// LoadSource reads a JSON record list from path.
func LoadSource(key string, weight float64, path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load source %s: %w", key, err)
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("load source %s: decode %s: %w", key, path, err)
	}
	return NewSource(key, weight, records), nil
}

func (s *Source) Key() string      { return s.key }
func (s *Source) Weight() float64  { return s.weight }
func (s *Source) Len() int         { return len(s.entries) }
func (s *Source) Entries() []Entry { return s.entries }

// exact returns the glosses for a verbatim or normalized match.
func (s *Source) exact(text string) ([]string, bool) {
	if idx, ok := s.bySurface[text]; ok {
		return s.entries[idx].Glosses, true
	}
	nk := Normalize(text)
	if nk == "" {
		return nil, false
	}
	if idx, ok := s.byNormal[nk]; ok {
		return s.entries[idx].Glosses, true
	}
	return nil, false
}

func cleanGlosses(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, g := range raw {
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}
		if _, sentinel := emptyGlosses[g]; sentinel {
			continue
		}
		out = append(out, g)
	}
	return out
}

// appendUnique appends values not already present in dst, preserving order.
func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		dup := false
		for _, have := range dst {
			if have == v {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, v)
		}
	}
	return dst
}

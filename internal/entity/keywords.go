package entity

import (
	"encoding/json"
	"strings"
)

// Keyword is one extracted term with an optional relevance weight in [0,1].
type Keyword struct {
	Term   string   `json:"term"`
	Weight *float64 `json:"weight,omitempty"`
}

// KeywordSet is the structured extraction result persisted for a processed
// document. The zero value is not the empty sentinel; use EmptyKeywordSet.
type KeywordSet struct {
	Keywords []Keyword `json:"keywords"`
}

// EmptyKeywordSet is the sentinel stored before extraction completes.
func EmptyKeywordSet() KeywordSet {
	return KeywordSet{Keywords: []Keyword{}}
}

func (s KeywordSet) IsEmpty() bool {
	return len(s.Keywords) == 0
}

// Terms returns the bare keyword strings in stored order.
func (s KeywordSet) Terms() []string {
	out := make([]string, 0, len(s.Keywords))
	for _, k := range s.Keywords {
		out = append(out, k.Term)
	}
	return out
}

// Contains reports whether term is present, case-insensitively.
func (s KeywordSet) Contains(term string) bool {
	for _, k := range s.Keywords {
		if strings.EqualFold(k.Term, term) {
			return true
		}
	}
	return false
}

// Normalize trims whitespace, drops empty terms and deduplicates
// case-insensitively, keeping the first occurrence (and its weight).
func (s KeywordSet) Normalize() KeywordSet {
	seen := make(map[string]struct{}, len(s.Keywords))
	out := KeywordSet{Keywords: make([]Keyword, 0, len(s.Keywords))}
	for _, k := range s.Keywords {
		term := strings.TrimSpace(k.Term)
		if term == "" {
			continue
		}
		key := strings.ToLower(term)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out.Keywords = append(out.Keywords, Keyword{Term: term, Weight: k.Weight})
	}
	return out
}

// JSON serializes the set in its canonical persisted form.
func (s KeywordSet) JSON() ([]byte, error) {
	if s.Keywords == nil {
		s.Keywords = []Keyword{}
	}
	return json.Marshal(s)
}

// ParseKeywordSet deserializes the persisted form. Round-trips exactly with
// JSON.
func ParseKeywordSet(data []byte) (KeywordSet, error) {
	var s KeywordSet
	if err := json.Unmarshal(data, &s); err != nil {
		return KeywordSet{}, err
	}
	if s.Keywords == nil {
		s.Keywords = []Keyword{}
	}
	return s, nil
}

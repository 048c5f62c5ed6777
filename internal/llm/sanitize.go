package llm

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// SanitizeKeywordPayload normalizes near-miss extraction JSON so the
// document can still validate. Models occasionally return bare strings
// instead of {term, weight} objects, string-typed weights, or null entries;
// we only normalize, never invent data.
func SanitizeKeywordPayload(doc []byte) ([]byte, []string, error) {
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		// A bare array is another common shape: wrap it.
		var arr []any
		if aErr := json.Unmarshal(doc, &arr); aErr != nil {
			return nil, nil, err
		}
		m = map[string]any{"keywords": arr}
	}

	raw, ok := m["keywords"].([]any)
	if !ok {
		return nil, nil, fmt.Errorf("keywords is not an array")
	}

	var notes []string
	cleaned := make([]any, 0, len(raw))
	for _, item := range raw {
		switch t := item.(type) {
		case nil:
			notes = append(notes, "dropped null keyword")
		case string:
			s := strings.TrimSpace(t)
			if s == "" {
				notes = append(notes, "dropped empty keyword")
				continue
			}
			cleaned = append(cleaned, map[string]any{"term": s})
			notes = append(notes, "wrapped bare string keyword")
		case map[string]any:
			term, _ := t["term"].(string)
			term = strings.TrimSpace(term)
			if term == "" {
				notes = append(notes, "dropped keyword without term")
				continue
			}
			out := map[string]any{"term": term}
			if w, wok := normalizeWeight(t["weight"]); wok {
				out["weight"] = w
			} else if _, present := t["weight"]; present {
				notes = append(notes, "dropped unusable weight for "+term)
			}
			cleaned = append(cleaned, out)
		default:
			notes = append(notes, "dropped keyword of unexpected type")
		}
	}

	b, err := json.Marshal(map[string]any{"keywords": cleaned})
	if err != nil {
		return nil, nil, err
	}
	return b, notes, nil
}

// SanitizeImprovementPayload normalizes the match/improve response: scores
// returned as strings are parsed, out-of-range scores are clamped to [0,1].
func SanitizeImprovementPayload(doc []byte) ([]byte, []string, error) {
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, nil, err
	}

	var notes []string
	if w, ok := normalizeWeight(m["score"]); ok {
		m["score"] = w
	} else {
		return nil, nil, fmt.Errorf("score is not a number")
	}
	if f := m["score"].(float64); f < 0 || f > 1 {
		clamped := min(max(f, 0), 1)
		notes = append(notes, fmt.Sprintf("clamped score %v to %v", f, clamped))
		m["score"] = clamped
	}

	if v, ok := m["improved_resume"].(string); ok {
		m["improved_resume"] = strings.TrimSpace(v)
	}

	b, err := json.Marshal(m)
	if err != nil {
		return nil, nil, err
	}
	return b, notes, nil
}

func normalizeWeight(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

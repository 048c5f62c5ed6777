package llm

// BuildKeywordJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map. We pass this to the model as a structured output constraint
// and also use it locally to validate.
func BuildKeywordJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"keywords": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"properties": map[string]any{
						"term":   map[string]any{"type": "string", "minLength": 1},
						"weight": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
					},
					"required": []string{"term"},
				},
			},
		},
		"required": []string{"keywords"},
	}
}

// BuildImprovementJSONSchema constrains the match/improve response.
func BuildImprovementJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"score":           map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
			"improved_resume": map[string]any{"type": "string", "minLength": 1},
		},
		"required": []string{"score", "improved_resume"},
	}
}

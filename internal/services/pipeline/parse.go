package pipeline

import (
	"encoding/json"

	"content-panel/internal/collab"
)

// Metadata providers return structured JSON, but in practice it arrives
// wrapped in incidental formatting: code fences, a language tag, prose
// around the object. parseMetadata strips the wrapping and parses what is
// left, falling back to conservative defaults instead of failing the item.
// The second return value reports whether real fields were extracted.
func parseMetadata(raw string) (collab.Metadata, bool) {
	cleaned := collab.UnwrapJSONPayload(raw)

	var payload struct {
		Categories     []string `json:"categories"`
		Tags           []string `json:"tags"`
		SEODescription string   `json:"seo_description"`
		SEOKeywords    []string `json:"seo_keywords"`
		// camelCase variants some providers emit
		SEODescriptionAlt string   `json:"seoDescription"`
		SEOKeywordsAlt    []string `json:"seoKeywords"`
	}
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return fallbackMetadata(), false
	}

	meta := collab.Metadata{
		Categories:     payload.Categories,
		Tags:           payload.Tags,
		SEODescription: payload.SEODescription,
		SEOKeywords:    payload.SEOKeywords,
	}
	if meta.SEODescription == "" {
		meta.SEODescription = payload.SEODescriptionAlt
	}
	if len(meta.SEOKeywords) == 0 {
		meta.SEOKeywords = payload.SEOKeywordsAlt
	}
	if len(meta.Categories) == 0 {
		meta.Categories = []string{"Uncategorized"}
	}
	if meta.Tags == nil {
		meta.Tags = []string{}
	}
	return meta, true
}

func fallbackMetadata() collab.Metadata {
	return collab.Metadata{
		Categories: []string{"Uncategorized"},
		Tags:       []string{},
	}
}

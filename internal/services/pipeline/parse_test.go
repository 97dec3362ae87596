package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMetadataPlainJSON(t *testing.T) {
	meta, ok := parseMetadata(`{
		"categories": ["Tech"],
		"tags": ["go", "cron"],
		"seo_description": "A piece about timers.",
		"seo_keywords": ["timers", "scheduling"]
	}`)
	assert.True(t, ok)
	assert.Equal(t, []string{"Tech"}, meta.Categories)
	assert.Equal(t, []string{"go", "cron"}, meta.Tags)
	assert.Equal(t, "A piece about timers.", meta.SEODescription)
	assert.Equal(t, []string{"timers", "scheduling"}, meta.SEOKeywords)
}

func TestParseMetadataStripsCodeFence(t *testing.T) {
	raw := "```json\n{\"categories\":[\"News\"],\"tags\":[\"x\"]}\n```"
	meta, ok := parseMetadata(raw)
	assert.True(t, ok)
	assert.Equal(t, []string{"News"}, meta.Categories)
}

func TestParseMetadataExtractsObjectFromProse(t *testing.T) {
	raw := `Sure! Here is the metadata you asked for:
{"categories":["Guides"],"tags":[]}
Hope that helps.`
	meta, ok := parseMetadata(raw)
	assert.True(t, ok)
	assert.Equal(t, []string{"Guides"}, meta.Categories)
}

func TestParseMetadataCamelCaseVariants(t *testing.T) {
	meta, ok := parseMetadata(`{"categories":["A"],"seoDescription":"desc","seoKeywords":["k"]}`)
	assert.True(t, ok)
	assert.Equal(t, "desc", meta.SEODescription)
	assert.Equal(t, []string{"k"}, meta.SEOKeywords)
}

func TestParseMetadataFallsBackOnGarbage(t *testing.T) {
	meta, ok := parseMetadata("the model rambled and produced no JSON at all")
	assert.False(t, ok)
	assert.Equal(t, []string{"Uncategorized"}, meta.Categories)
	assert.Equal(t, []string{}, meta.Tags)
}

func TestParseMetadataDefaultsEmptyFields(t *testing.T) {
	// Parsable but empty: categories default, tags become an empty list.
	meta, ok := parseMetadata(`{"seo_description":"only this"}`)
	assert.True(t, ok)
	assert.Equal(t, []string{"Uncategorized"}, meta.Categories)
	assert.Equal(t, []string{}, meta.Tags)
	assert.Equal(t, "only this", meta.SEODescription)
}

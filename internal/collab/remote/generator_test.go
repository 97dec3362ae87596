package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// completionServer answers /chat/completions with the given message content.
func completionServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestGenerateDecodesFencedCompletion(t *testing.T) {
	fenced := "```json\n{\"title\":\"Go timers\",\"excerpt\":\"short\",\"body_html\":\"<p>x</p>\"}\n```"
	srv := completionServer(t, fenced)
	defer srv.Close()

	c := NewAIClient(srv.URL, "test-key", "test-model", 0)
	content, err := c.Generate(context.Background(), "timers")
	require.NoError(t, err)
	assert.Equal(t, "Go timers", content.Title)
	assert.Equal(t, "short", content.Excerpt)
	assert.Equal(t, "<p>x</p>", content.BodyHTML)
}

func TestGenerateDecodesBareCompletion(t *testing.T) {
	srv := completionServer(t, `{"title":"Plain","excerpt":"e","body_html":"<p>b</p>"}`)
	defer srv.Close()

	c := NewAIClient(srv.URL, "test-key", "test-model", 0)
	content, err := c.Generate(context.Background(), "plain")
	require.NoError(t, err)
	assert.Equal(t, "Plain", content.Title)
}

package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"content-panel/internal/collab"
)

const defaultContentModel = "gpt-4o-mini"

// AIClient talks to an OpenAI-compatible chat-completions endpoint and
// implements both ContentGenerator and MetadataGenerator.
type AIClient struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
}

func NewAIClient(baseURL, apiKey, model string, timeout time.Duration) *AIClient {
	if model == "" {
		model = defaultContentModel
	}
	return &AIClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		http:    newHTTPClient(timeout),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *AIClient) complete(ctx context.Context, system, user string) (string, error) {
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}
	var resp chatResponse
	if err := postJSON(ctx, c.http, c.baseURL+"/chat/completions", c.apiKey, req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty completion", collab.ErrProviderUnavailable)
	}
	return resp.Choices[0].Message.Content, nil
}

const contentSystemPrompt = `You write publish-ready blog articles. Respond with a JSON object:
{"title": "...", "excerpt": "...", "body_html": "..."}`

func (c *AIClient) Generate(ctx context.Context, topic string) (*collab.GeneratedContent, error) {
	raw, err := c.complete(ctx, contentSystemPrompt, "Write an article about: "+topic)
	if err != nil {
		return nil, err
	}

	// Providers fence or decorate the JSON the same way they do for
	// metadata, so unwrap before decoding.
	var content collab.GeneratedContent
	if err := json.Unmarshal([]byte(collab.UnwrapJSONPayload(raw)), &content); err != nil {
		return nil, fmt.Errorf("decode generated content: %w", err)
	}
	if content.Title == "" {
		content.Title = topic
	}
	return &content, nil
}

const metadataSystemPrompt = `You tag articles for a CMS. Respond with a JSON object:
{"categories": [...], "tags": [...], "seo_description": "...", "seo_keywords": [...]}`

// GenerateMetadata returns the provider's raw payload; the pipeline owns
// unwrapping and fallback because providers decorate the JSON unpredictably.
func (c *AIClient) GenerateMetadata(ctx context.Context, title, body string) (string, error) {
	prompt := fmt.Sprintf("Title: %s\n\nBody:\n%s", title, truncateString(body, 6000))
	return c.complete(ctx, metadataSystemPrompt, prompt)
}

func truncateString(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

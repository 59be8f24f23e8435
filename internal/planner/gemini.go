package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	defaultGeminiModel   = "gemini-pro"
	geminiTimeout        = 2 * time.Minute
)

// Gemini calls the generateContent REST endpoint.
type Gemini struct {
	key     string
	model   string
	baseURL string
	client  *http.Client
}

func NewGemini(apiKey, model, baseURL string) *Gemini {
	if model == "" {
		model = defaultGeminiModel
	}
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	return &Gemini{
		key:     apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: geminiTimeout},
	}
}

func (g *Gemini) Generate(ctx context.Context, subtitles string) ([]byte, error) {
	payload := map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]any{{"text": BuildPrompt(subtitles)}}},
		},
		"generationConfig": map[string]any{
			"maxOutputTokens": 2048,
			"temperature":     0.7,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshal request")
	}

	endpoint := g.baseURL + "/v1beta/models/" + url.PathEscape(g.model) + ":generateContent?key=" + url.QueryEscape(g.key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, errors.New(redact(err.Error(), g.key))
	}
	defer resp.Body.Close()

	rb, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read gemini response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("gemini status %d: %s", resp.StatusCode, truncate(redact(string(rb), g.key), 400))
	}

	text := gjson.GetBytes(rb, "candidates.0.content.parts.0.text")
	if !text.Exists() || strings.TrimSpace(text.String()) == "" {
		return nil, errors.Errorf("gemini response has no candidate text: %s", truncate(string(rb), 400))
	}
	return []byte(text.String()), nil
}

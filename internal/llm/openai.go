package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fastertools/devlaunch/internal/apperr"
)

type openAI struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

func newOpenAI(cfg Config) (*openAI, error) {
	if cfg.APIKey == "" {
		return nil, missing(ProviderOpenAI, "api_key", "run 'devlaunch config llm' or set DEVLAUNCH_LLM_API_KEY")
	}
	baseURL := cfg.URL
	if baseURL == "" {
		baseURL = DefaultOpenAIURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &openAI{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   model,
		client:  &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (p *openAI) Name() string { return ProviderOpenAI }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (p *openAI) Generate(ctx context.Context, system, prompt string) (string, error) {
	payload := map[string]any{
		"model": p.model,
		"messages": []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", apperr.Wrap(apperr.KindBackend, "llm.openai", "request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", apperr.New(apperr.KindBackend, "llm.openai",
			fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))))
	}

	var result struct {
		Choices []struct {
			Message chatMessage `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", apperr.Wrap(apperr.KindBackend, "llm.openai", "invalid response", err)
	}
	if len(result.Choices) == 0 {
		return "", apperr.New(apperr.KindBackend, "llm.openai", "response has no choices")
	}
	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}

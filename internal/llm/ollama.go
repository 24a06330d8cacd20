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

type ollama struct {
	endpoint string
	model    string
	client   *http.Client
}

func newOllama(cfg Config) (*ollama, error) {
	if cfg.Model == "" {
		return nil, missing(ProviderOllama, "model", "run 'devlaunch config llm' or set DEVLAUNCH_LLM_MODEL")
	}
	if err := CheckOllama(); err != nil {
		return nil, err
	}
	base := cfg.URL
	if base == "" {
		base = DefaultOllamaURL
	}
	return &ollama{
		endpoint: generateEndpoint(base),
		model:    cfg.Model,
		client:   &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// generateEndpoint accepts either a server base URL or the full generate
// endpoint.
func generateEndpoint(url string) string {
	url = strings.TrimSuffix(url, "/")
	if strings.HasSuffix(url, "/api/generate") {
		return url
	}
	return url + "/api/generate"
}

func (p *ollama) Name() string { return ProviderOllama }

func (p *ollama) Generate(ctx context.Context, system, prompt string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"model":  p.model,
		"prompt": system + "\nUser: " + prompt,
		"stream": false,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", apperr.Wrap(apperr.KindBackend, "llm.ollama", "request failed", err).
			WithFix("start the Ollama server with 'ollama serve'")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", apperr.New(apperr.KindBackend, "llm.ollama",
			fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))))
	}

	var result struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", apperr.Wrap(apperr.KindBackend, "llm.ollama", "invalid response", err)
	}
	return strings.TrimSpace(result.Response), nil
}

// Package llm provides the generation backends used to write new templates.
//
// Two backends exist: "openai" talks to an OpenAI-compatible chat completions
// API, "ollama" talks to a local Ollama server. Both are built by New from a
// Config and are checked for completeness before any request is made.
package llm

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/fastertools/devlaunch/internal/apperr"
)

// Backend kinds.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// Defaults applied by New.
const (
	DefaultOpenAIURL   = "https://api.openai.com/v1"
	DefaultOpenAIModel = "gpt-4"
	DefaultOllamaURL   = "http://localhost:11434"
	DefaultTimeout     = 120 * time.Second
)

// ExecCommand is the command constructor used for the ollama probe. Tests
// replace it.
var ExecCommand = exec.Command

// Backend generates text from a system instruction and a user prompt.
type Backend interface {
	// Name returns the backend kind.
	Name() string
	// Generate returns the raw completion text.
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Config selects and configures a backend.
type Config struct {
	Provider string        `yaml:"provider" json:"provider"`
	Model    string        `yaml:"model,omitempty" json:"model,omitempty"`
	URL      string        `yaml:"url,omitempty" json:"url,omitempty"`
	APIKey   string        `yaml:"api_key,omitempty" json:"-"`
	Timeout  time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// New builds the backend selected by cfg.Provider. A missing setting is an
// apperr.KindBackend error that names it.
func New(cfg Config) (Backend, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderOpenAI:
		return newOpenAI(cfg)
	case ProviderOllama, "local":
		return newOllama(cfg)
	case "":
		return nil, apperr.New(apperr.KindBackend, "llm", "no LLM provider configured").
			WithFix("run 'devlaunch config llm' or set DEVLAUNCH_LLM_PROVIDER")
	default:
		return nil, apperr.New(apperr.KindBackend, "llm", "unknown LLM provider "+cfg.Provider).
			WithFix("supported providers: openai, ollama")
	}
}

func missing(provider, setting, fix string) error {
	return apperr.New(apperr.KindBackend, "llm."+provider, "missing "+setting).WithFix(fix)
}

// CheckOllama reports whether the ollama binary is installed.
func CheckOllama() error {
	cmd := ExecCommand("ollama", "-v")
	if err := cmd.Run(); err != nil {
		return apperr.Wrap(apperr.KindBackend, "llm.ollama", "ollama is not installed", err).
			WithFix("install Ollama from https://ollama.com and make sure it is on PATH")
	}
	return nil
}

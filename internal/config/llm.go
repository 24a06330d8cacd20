package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/fastertools/devlaunch/internal/apperr"
	"github.com/fastertools/devlaunch/internal/llm"
)

// LLMFile is the backend document inside Dir.
const LLMFile = "llm.yaml"

// LLMPath returns the location of the backend document.
func LLMPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, LLMFile), nil
}

// LoadLLM reads the backend document. A missing file yields a zero Config.
func LoadLLM() (llm.Config, error) {
	path, err := LLMPath()
	if err != nil {
		return llm.Config{}, err
	}
	data, err := os.ReadFile(path) // #nosec G304 - path is controlled via LLMPath()
	if errors.Is(err, fs.ErrNotExist) {
		return llm.Config{}, nil
	}
	if err != nil {
		return llm.Config{}, fmt.Errorf("failed to read %s: %w", LLMFile, err)
	}

	var cfg llm.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return llm.Config{}, apperr.Wrap(apperr.KindFormat, "config", "invalid "+LLMFile, err)
	}
	return cfg, nil
}

// SaveLLM writes the backend document atomically.
func SaveLLM(cfg llm.Config) error {
	path, err := LLMPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", LLMFile, err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", LLMFile, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to save %s: %w", LLMFile, err)
	}
	return nil
}

// MergeLLM layers the backend settings. Non-empty fields of override win
// over file. When no API key is set anywhere, the keyring is consulted.
func MergeLLM(file, override llm.Config, secrets SecretStore) llm.Config {
	out := file
	if override.Provider != "" {
		out.Provider = override.Provider
	}
	if override.Model != "" {
		out.Model = override.Model
	}
	if override.URL != "" {
		out.URL = override.URL
	}
	if override.APIKey != "" {
		out.APIKey = override.APIKey
	}
	if override.Timeout > 0 {
		out.Timeout = override.Timeout
	}
	if out.APIKey == "" && secrets != nil {
		if key, err := secrets.Get(OpenAIKeyUser); err == nil {
			out.APIKey = key
		}
	}
	return out
}

// StoreLLM saves cfg, moving its API key into the keyring when possible.
// It reports whether the key ended up in the keyring.
func StoreLLM(cfg llm.Config, secrets SecretStore) (bool, error) {
	inKeyring := false
	if cfg.APIKey != "" && secrets != nil {
		if err := secrets.Set(OpenAIKeyUser, cfg.APIKey); err == nil {
			cfg.APIKey = ""
			inKeyring = true
		}
	}
	return inKeyring, SaveLLM(cfg)
}

// ForgetLLMKey removes the stored API key from the keyring and from the
// backend document. The rest of the document is kept.
func ForgetLLMKey(secrets SecretStore) error {
	if secrets != nil {
		if err := secrets.Delete(OpenAIKeyUser); err != nil {
			return err
		}
	}
	cfg, err := LoadLLM()
	if err != nil {
		return err
	}
	if cfg.APIKey == "" {
		return nil
	}
	cfg.APIKey = ""
	return SaveLLM(cfg)
}

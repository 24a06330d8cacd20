package cli

import (
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fastertools/devlaunch/internal/apperr"
	"github.com/fastertools/devlaunch/internal/config"
	"github.com/fastertools/devlaunch/internal/llm"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change devlaunch settings",
	}
	cmd.AddCommand(newConfigLLMCmd(), newConfigShowCmd())
	return cmd
}

func newConfigLLMCmd() *cobra.Command {
	var provider, model, url string
	var forgetKey bool

	cmd := &cobra.Command{
		Use:   "llm",
		Short: "Choose the LLM backend used to generate templates",
		Long: `Choose the LLM backend used to generate templates and save it to llm.yaml
in the user config directory. An OpenAI API key is kept in the OS keyring
when one is available.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if forgetKey {
				if err := config.ForgetLLMKey(config.NewKeyringStore()); err != nil {
					return err
				}
				Success("Removed the stored API key")
				return nil
			}

			current, err := config.LoadLLM()
			if err != nil {
				return err
			}
			cfg := llm.Config{Provider: provider, Model: model, URL: url, Timeout: current.Timeout}
			if err := askLLM(&cfg, current); err != nil {
				return err
			}

			inKeyring, err := config.StoreLLM(cfg, config.NewKeyringStore())
			if err != nil {
				return err
			}
			path, _ := config.LLMPath()
			Success("Saved %s backend to %s", cfg.Provider, path)
			if cfg.APIKey != "" && !inKeyring {
				Warn("Keyring unavailable; the API key was written to %s", path)
			}
			if cfg.Provider == llm.ProviderOllama {
				if err := llm.CheckOllama(); err != nil {
					Warn("%v", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "backend: openai or ollama")
	cmd.Flags().StringVar(&model, "model", "", "model name")
	cmd.Flags().StringVar(&url, "url", "", "API base URL")
	cmd.Flags().BoolVar(&forgetKey, "forget-key", false, "remove the stored API key and exit")
	return cmd
}

// askLLM fills the unset fields of cfg, prompting when a terminal is
// attached and falling back to current and the backend defaults otherwise.
func askLLM(cfg *llm.Config, current llm.Config) error {
	interactive := isInteractive()

	if cfg.Provider == "" {
		cfg.Provider = current.Provider
		if interactive {
			def := cfg.Provider
			if def == "" {
				def = llm.ProviderOpenAI
			}
			if err := askOne(&survey.Select{
				Message: "LLM provider:",
				Options: []string{llm.ProviderOpenAI, llm.ProviderOllama},
				Default: def,
			}, &cfg.Provider); err != nil {
				return err
			}
		}
	}
	cfg.Provider = strings.ToLower(cfg.Provider)
	if cfg.Provider != llm.ProviderOpenAI && cfg.Provider != llm.ProviderOllama {
		return apperr.Input("config", "unknown provider %q", cfg.Provider).
			WithFix("use --provider openai or --provider ollama")
	}
	sameProvider := cfg.Provider == current.Provider

	defModel, defURL := llm.DefaultOpenAIModel, llm.DefaultOpenAIURL
	if cfg.Provider == llm.ProviderOllama {
		defModel, defURL = "llama3", llm.DefaultOllamaURL
	}
	if sameProvider && current.Model != "" {
		defModel = current.Model
	}
	if sameProvider && current.URL != "" {
		defURL = current.URL
	}

	if err := askDefault(interactive, &cfg.Model, "Model:", defModel); err != nil {
		return err
	}
	if err := askDefault(interactive, &cfg.URL, "API URL:", defURL); err != nil {
		return err
	}

	if cfg.Provider == llm.ProviderOpenAI && interactive {
		if err := askOne(&survey.Password{Message: "OpenAI API key (leave empty to keep the stored one):"}, &cfg.APIKey); err != nil {
			return err
		}
	}
	return nil
}

func askDefault(interactive bool, value *string, message, def string) error {
	if *value != "" {
		return nil
	}
	*value = def
	if !interactive {
		return nil
	}
	return askOne(&survey.Input{Message: message, Default: def}, value)
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			llmCfg, err := effectiveLLM(cfg.LLM)
			if err != nil {
				return err
			}

			key := "(not set)"
			if llmCfg.APIKey != "" {
				key = "(set)"
			}
			file := viper.ConfigFileUsed()
			if file == "" {
				file = "(none)"
			}

			return NewKeyValueBuilder("Settings").
				Add("Config file", file).
				Add(config.KeyStorageBackend, cfg.Storage.Backend).
				AddIf(cfg.Storage.Backend == config.BackendS3, config.KeyStorageBucket, cfg.Storage.Bucket).
				AddIf(cfg.Storage.Backend == config.BackendS3, config.KeyStorageRegion, cfg.Storage.Region).
				Add(config.KeyStorageEndpoint, cfg.Storage.Endpoint).
				AddIf(cfg.Storage.Backend == config.BackendLocal, config.KeyStorageLocalRoot, cfg.Storage.LocalRoot).
				Add(config.KeyStoragePrefix, cfg.Storage.Prefix).
				Add(config.KeyAPIURL, cfg.APIURL).
				Add(config.KeyTemplatesDir, cfg.TemplatesDir).
				Add(config.KeyProjectsDir, cfg.ProjectsDir).
				Add(config.KeyServerAddr, cfg.ServerAddr).
				Add(config.KeyLLMProvider, llmCfg.Provider).
				Add(config.KeyLLMModel, llmCfg.Model).
				Add(config.KeyLLMURL, llmCfg.URL).
				Add(config.KeyLLMAPIKey, key).
				Add(config.KeyComposeBinary, cfg.ComposeBinary).
				Write(NewDataWriter(cmd.OutOrStdout(), outputFormat))
		},
	}
}

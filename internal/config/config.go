// Package config manages devlaunch settings: the viper-backed settings tree
// read from devlaunch.yaml and DEVLAUNCH_* variables, the llm.yaml backend
// document written by 'devlaunch config llm', and keyring-held secrets.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/fastertools/devlaunch/internal/llm"
)

// AppName names the config directory, config file and env prefix.
const AppName = "devlaunch"

// Setting keys.
const (
	KeyStorageBackend   = "storage.backend"
	KeyStorageBucket    = "storage.bucket"
	KeyStorageRegion    = "storage.region"
	KeyStorageEndpoint  = "storage.endpoint"
	KeyStoragePrefix    = "storage.prefix"
	KeyStorageLocalRoot = "storage.local_root"
	KeyStorageTimeout   = "storage.timeout"
	KeyStorageAccessKey = "storage.access_key_id"
	KeyStorageSecretKey = "storage.secret_access_key"
	KeyAPIURL           = "api.url"
	KeyTemplatesDir     = "paths.templates"
	KeyProjectsDir      = "paths.projects"
	KeyServerAddr       = "server.addr"
	KeyLLMProvider      = "llm.provider"
	KeyLLMModel         = "llm.model"
	KeyLLMURL           = "llm.url"
	KeyLLMAPIKey        = "llm.api_key"
	KeyLLMTimeout       = "llm.timeout"
	KeyComposeBinary    = "compose.binary"
)

// Storage backends.
const (
	BackendS3    = "s3"
	BackendLocal = "local"
)

// Config is the resolved settings tree.
type Config struct {
	Storage Storage
	// APIURL, when set, routes catalog reads through a devlaunch server.
	APIURL        string
	TemplatesDir  string
	ProjectsDir   string
	ServerAddr    string
	LLM           llm.Config
	ComposeBinary string
}

// Storage selects the blob store holding the catalog.
type Storage struct {
	Backend   string
	Bucket    string
	Region    string
	Endpoint  string
	Prefix    string
	LocalRoot string
	Timeout   time.Duration
	// AccessKeyID and SecretAccessKey select static S3 credentials instead
	// of the AWS default chain.
	AccessKeyID     string
	SecretAccessKey string
}

// Dir returns the devlaunch directory inside the user config dir.
// XDG_CONFIG_HOME wins over the platform default.
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		var err error
		base, err = os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("failed to get config directory: %w", err)
		}
	}
	return filepath.Join(base, AppName), nil
}

// SetDefaults registers the default value of every setting.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyStorageBackend, BackendS3)
	v.SetDefault(KeyStorageRegion, "us-east-1")
	v.SetDefault(KeyStorageLocalRoot, "catalog")
	v.SetDefault(KeyStorageTimeout, 30*time.Second)
	v.SetDefault(KeyTemplatesDir, filepath.Join("templates", "scaffolds"))
	v.SetDefault(KeyProjectsDir, "projects")
	v.SetDefault(KeyServerAddr, ":8080")
	v.SetDefault(KeyComposeBinary, "docker")
}

// Init points v at the config file and the environment. cfgFile overrides
// the search for devlaunch.yaml in the working directory and Dir. A missing
// config file is not an error; the returned path is empty then.
func Init(v *viper.Viper, cfgFile string) (string, error) {
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		if dir, err := Dir(); err == nil {
			v.AddConfigPath(dir)
		}
		v.SetConfigType("yaml")
		v.SetConfigName(AppName)
	}

	v.SetEnvPrefix(strings.ToUpper(AppName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read config file: %w", err)
	}
	return v.ConfigFileUsed(), nil
}

// FromViper reads the settings tree out of v.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Storage: Storage{
			Backend:   strings.ToLower(v.GetString(KeyStorageBackend)),
			Bucket:    v.GetString(KeyStorageBucket),
			Region:    v.GetString(KeyStorageRegion),
			Endpoint:  v.GetString(KeyStorageEndpoint),
			Prefix:    v.GetString(KeyStoragePrefix),
			LocalRoot: v.GetString(KeyStorageLocalRoot),
			Timeout:   v.GetDuration(KeyStorageTimeout),

			AccessKeyID:     v.GetString(KeyStorageAccessKey),
			SecretAccessKey: v.GetString(KeyStorageSecretKey),
		},
		APIURL:       v.GetString(KeyAPIURL),
		TemplatesDir: v.GetString(KeyTemplatesDir),
		ProjectsDir:  v.GetString(KeyProjectsDir),
		ServerAddr:   v.GetString(KeyServerAddr),
		LLM: llm.Config{
			Provider: v.GetString(KeyLLMProvider),
			Model:    v.GetString(KeyLLMModel),
			URL:      v.GetString(KeyLLMURL),
			APIKey:   v.GetString(KeyLLMAPIKey),
			Timeout:  v.GetDuration(KeyLLMTimeout),
		},
		ComposeBinary: v.GetString(KeyComposeBinary),
	}
}

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted as YAML in the user scope.
// Environment variables are read-only overrides applied at load time.
// The API key is never written to the file; it lives in the OS keyring.
//
// config_version: bump when the structure changes in a backward-incompatible way.
type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	LLM           LLMConfig     `yaml:"llm"`
	Storage       StorageConfig `yaml:"storage"`
	Deck          DeckConfig    `yaml:"deck"`
	Logging       LoggingConfig `yaml:"logging"`
	Metrics       MetricsConfig `yaml:"metrics"`
}

type LLMConfig struct {
	Provider         string  `yaml:"provider"` // "deepseek" | "openai" | "ollama"
	BaseURL          string  `yaml:"base_url"`
	Model            string  `yaml:"model"`
	Temperature      float64 `yaml:"temperature"`
	MaxTokens        int     `yaml:"max_tokens"`
	TopP             float64 `yaml:"top_p"`
	PresencePenalty  float64 `yaml:"presence_penalty"`
	FrequencyPenalty float64 `yaml:"frequency_penalty"`
	TimeoutMs        int     `yaml:"timeout_ms"`
	RetryAttempts    int     `yaml:"retry_attempts"`
	RetryDelayMs     int     `yaml:"retry_delay_ms"`
}

type StorageConfig struct {
	Driver      string `yaml:"driver"` // "file" | "postgres"
	DataDir     string `yaml:"data_dir"`
	PostgresDSN string `yaml:"postgres_dsn"`
	MaxBackups  int    `yaml:"max_backups"`
	// HistoryKeep is how many script revisions per project survive a prune. 0 keeps all.
	HistoryKeep int `yaml:"history_keep"`
}

type DeckConfig struct {
	OutputDir string `yaml:"output_dir"`
	FontFile  string `yaml:"font_file"` // TTF with CJK glyphs; empty uses the built-in Go fonts
	Language  string `yaml:"language"`  // "zh" | "en", selects the script schema
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables the /metrics listener
}

// providerDefaults holds the endpoint and model used when the config leaves them empty.
var providerDefaults = map[string]struct{ BaseURL, Model string }{
	"deepseek": {"https://api.deepseek.com/v1", "deepseek-chat"},
	"openai":   {"https://api.openai.com/v1", "gpt-4o-mini"},
	"ollama":   {"http://localhost:11434", "qwen2.5"},
}

// ProviderDefaults returns the default base URL and model of provider.
// Unknown providers get the DeepSeek values.
func ProviderDefaults(provider string) (baseURL, model string) {
	d, ok := providerDefaults[strings.ToLower(strings.TrimSpace(provider))]
	if !ok {
		d = providerDefaults["deepseek"]
	}
	return d.BaseURL, d.Model
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	cfg := baseDefaults()
	fillProviderDefaults(&cfg.LLM)
	return cfg
}

// baseDefaults leaves base_url and model empty so they follow the provider chosen
// by the file or the environment.
func baseDefaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		LLM: LLMConfig{
			Provider:      "deepseek",
			Temperature:   0.7,
			MaxTokens:     2000,
			TopP:          0.95,
			TimeoutMs:     60000,
			RetryAttempts: 3,
			RetryDelayMs:  2000,
		},
		Storage: StorageConfig{Driver: "file", MaxBackups: 10, HistoryKeep: 50},
		Deck:    DeckConfig{OutputDir: ".", Language: "zh"},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvAPIKey        = "SCRIPTDECK_API_KEY"
	EnvProvider      = "SCRIPTDECK_LLM_PROVIDER"
	EnvBaseURL       = "SCRIPTDECK_LLM_BASE_URL"
	EnvModel         = "SCRIPTDECK_LLM_MODEL"
	EnvTimeoutMs     = "SCRIPTDECK_LLM_TIMEOUT_MS"
	EnvStorageDriver = "SCRIPTDECK_STORAGE_DRIVER"
	EnvDataDir       = "SCRIPTDECK_DATA_DIR"
	EnvPostgresDSN   = "SCRIPTDECK_PG_DSN"
	EnvOutputDir     = "SCRIPTDECK_OUTPUT_DIR"
	EnvFontFile      = "SCRIPTDECK_FONT_FILE"
	EnvMetricsAddr   = "SCRIPTDECK_METRICS_ADDR"
	EnvLogLevel      = "SCRIPTDECK_LOG_LEVEL"
	EnvLogFormat     = "SCRIPTDECK_LOG_FORMAT"
	EnvLogSource     = "SCRIPTDECK_LOG_SOURCE"
	EnvLogFile       = "SCRIPTDECK_LOG_FILE"
)

// envKeys maps dotted config keys to the env var overriding them.
var envKeys = map[string]string{
	"llm.provider":         EnvProvider,
	"llm.base_url":         EnvBaseURL,
	"llm.model":            EnvModel,
	"llm.timeout_ms":       EnvTimeoutMs,
	"storage.driver":       EnvStorageDriver,
	"storage.data_dir":     EnvDataDir,
	"storage.postgres_dsn": EnvPostgresDSN,
	"deck.output_dir":      EnvOutputDir,
	"deck.font_file":       EnvFontFile,
	"metrics.addr":         EnvMetricsAddr,
	"logging.level":        EnvLogLevel,
	"logging.format":       EnvLogFormat,
	"logging.source":       EnvLogSource,
	"logging.file":         EnvLogFile,
}

// Keyring service/user for the API key.
const (
	keyringService = "scriptdeck"
	keyringUser    = "llm_api_key"
)

// KeyStore abstracts the OS keyring so tests can stub it.
type KeyStore interface {
	Get(service, user string) (string, error)
	Set(service, user, secret string) error
	Delete(service, user string) error
}

type osKeyring struct{}

func (osKeyring) Get(service, user string) (string, error) { return keyring.Get(service, user) }
func (osKeyring) Set(service, user, secret string) error   { return keyring.Set(service, user, secret) }
func (osKeyring) Delete(service, user string) error        { return keyring.Delete(service, user) }

var keyStore KeyStore = osKeyring{}

// baseDir resolves the per-user directory for kind "config" or "data".
func baseDir(kind string) (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "scriptdeck")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "scriptdeck")
	default:
		home := os.Getenv("HOME")
		if kind == "data" {
			if x := os.Getenv("XDG_DATA_HOME"); x != "" {
				return filepath.Join(x, "scriptdeck"), nil
			}
			base = filepath.Join(home, ".local", "share", "scriptdeck")
		} else {
			if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
				return filepath.Join(x, "scriptdeck"), nil
			}
			base = filepath.Join(home, ".config", "scriptdeck")
		}
	}
	if base == "" || base == "scriptdeck" {
		return "", errors.New("cannot resolve user directory")
	}
	return base, nil
}

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	dir, err := baseDir("config")
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// DefaultDataDir returns where projects and history live when storage.data_dir is empty.
func DefaultDataDir() (string, error) { return baseDir("data") }

// Load reads the user config file (if present) and returns the merged config and API key.
func Load() (AppConfig, string, error) {
	path, err := ConfigPath()
	if err != nil {
		return Defaults(), "", err
	}
	return LoadFrom(path)
}

// LoadFrom is Load with an explicit file path. A missing file is not an error;
// a file that exists but does not parse is.
func LoadFrom(path string) (AppConfig, string, error) {
	cfg := baseDefaults()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, "", fmt.Errorf("parse %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	case !errors.Is(err, os.ErrNotExist):
		return cfg, "", fmt.Errorf("read %s: %w", path, err)
	}
	applyEnvOverrides(&cfg)
	fillProviderDefaults(&cfg.LLM)
	if cfg.Storage.DataDir == "" {
		if dir, err := DefaultDataDir(); err == nil {
			cfg.Storage.DataDir = dir
		}
	}
	return cfg, APIKey(), nil
}

// APIKey returns the env override or the keyring value. Keyring errors read as "no key".
func APIKey() string {
	if v := strings.TrimSpace(os.Getenv(EnvAPIKey)); v != "" {
		return v
	}
	k, err := keyStore.Get(keyringService, keyringUser)
	if err != nil {
		return ""
	}
	return k
}

// SetAPIKey stores key in the OS keyring; an empty key removes it.
func SetAPIKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		err := keyStore.Delete(keyringService, keyringUser)
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return err
	}
	return keyStore.Set(keyringService, keyringUser, key)
}

// Save writes the config YAML to the user config path.
func Save(cfg AppConfig) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(path, cfg)
}

// SaveTo writes cfg as YAML to path.
func SaveTo(path string, cfg AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	// llm
	if v := strings.ToLower(strings.TrimSpace(src.LLM.Provider)); v != "" {
		dst.LLM.Provider = v
	}
	if v := strings.TrimSpace(src.LLM.BaseURL); v != "" {
		dst.LLM.BaseURL = v
	}
	if v := strings.TrimSpace(src.LLM.Model); v != "" {
		dst.LLM.Model = v
	}
	if src.LLM.Temperature != 0 {
		dst.LLM.Temperature = src.LLM.Temperature
	}
	if src.LLM.MaxTokens != 0 {
		dst.LLM.MaxTokens = src.LLM.MaxTokens
	}
	if src.LLM.TopP != 0 {
		dst.LLM.TopP = src.LLM.TopP
	}
	dst.LLM.PresencePenalty = src.LLM.PresencePenalty
	dst.LLM.FrequencyPenalty = src.LLM.FrequencyPenalty
	if src.LLM.TimeoutMs != 0 {
		dst.LLM.TimeoutMs = src.LLM.TimeoutMs
	}
	if src.LLM.RetryAttempts != 0 {
		dst.LLM.RetryAttempts = src.LLM.RetryAttempts
	}
	if src.LLM.RetryDelayMs != 0 {
		dst.LLM.RetryDelayMs = src.LLM.RetryDelayMs
	}
	// storage
	if v := strings.ToLower(strings.TrimSpace(src.Storage.Driver)); v != "" {
		dst.Storage.Driver = v
	}
	if v := strings.TrimSpace(src.Storage.DataDir); v != "" {
		dst.Storage.DataDir = v
	}
	if v := strings.TrimSpace(src.Storage.PostgresDSN); v != "" {
		dst.Storage.PostgresDSN = v
	}
	if src.Storage.MaxBackups != 0 {
		dst.Storage.MaxBackups = src.Storage.MaxBackups
	}
	if src.Storage.HistoryKeep != 0 {
		dst.Storage.HistoryKeep = src.Storage.HistoryKeep
	}
	// deck
	if v := strings.TrimSpace(src.Deck.OutputDir); v != "" {
		dst.Deck.OutputDir = v
	}
	if v := strings.TrimSpace(src.Deck.FontFile); v != "" {
		dst.Deck.FontFile = v
	}
	if v := strings.ToLower(strings.TrimSpace(src.Deck.Language)); v != "" {
		dst.Deck.Language = v
	}
	// logging
	if v := strings.ToLower(strings.TrimSpace(src.Logging.Level)); v != "" {
		dst.Logging.Level = v
	}
	if v := strings.ToLower(strings.TrimSpace(src.Logging.Format)); v != "" {
		dst.Logging.Format = v
	}
	dst.Logging.Source = src.Logging.Source
	if v := strings.TrimSpace(src.Logging.File); v != "" {
		dst.Logging.File = v
	}
	// metrics
	if v := strings.TrimSpace(src.Metrics.Addr); v != "" {
		dst.Metrics.Addr = v
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	str := func(env string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			*dst = v
		}
	}
	str(EnvProvider, &cfg.LLM.Provider)
	cfg.LLM.Provider = strings.ToLower(cfg.LLM.Provider)
	str(EnvBaseURL, &cfg.LLM.BaseURL)
	str(EnvModel, &cfg.LLM.Model)
	if v := strings.TrimSpace(os.Getenv(EnvTimeoutMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LLM.TimeoutMs = n
		}
	}
	str(EnvStorageDriver, &cfg.Storage.Driver)
	str(EnvDataDir, &cfg.Storage.DataDir)
	str(EnvPostgresDSN, &cfg.Storage.PostgresDSN)
	str(EnvOutputDir, &cfg.Deck.OutputDir)
	str(EnvFontFile, &cfg.Deck.FontFile)
	str(EnvMetricsAddr, &cfg.Metrics.Addr)
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		lv := strings.ToLower(v)
		cfg.Logging.Source = lv == "1" || lv == "true" || lv == "on" || lv == "yes"
	}
	str(EnvLogFile, &cfg.Logging.File)
}

func fillProviderDefaults(c *LLMConfig) {
	url, model := ProviderDefaults(c.Provider)
	if c.BaseURL == "" {
		c.BaseURL = url
	}
	if c.Model == "" {
		c.Model = model
	}
}

// EnvOverrideFor returns the env var name if the dotted key is currently overridden.
func EnvOverrideFor(key string) (string, bool) {
	env, ok := envKeys[key]
	if !ok || os.Getenv(env) == "" {
		return "", false
	}
	return env, true
}

// Timeout is the per-call deadline for one generation attempt.
func (c LLMConfig) Timeout() time.Duration {
	if c.TimeoutMs <= 0 {
		return time.Duration(Defaults().LLM.TimeoutMs) * time.Millisecond
	}
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// RetryDelay is the fixed pause between attempts.
func (c LLMConfig) RetryDelay() time.Duration {
	if c.RetryDelayMs < 0 {
		return 0
	}
	return time.Duration(c.RetryDelayMs) * time.Millisecond
}

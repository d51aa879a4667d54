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
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zalando/go-keyring"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv(EnvAPIKey, "")
	keyring.MockInit()
	return home
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	isolate(t)
	cfg, key, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadFrom() error: %v", err)
	}
	if key != "" {
		t.Fatalf("unexpected api key %q", key)
	}
	if cfg.LLM.Model != "deepseek-chat" || cfg.LLM.Temperature != 0.7 || cfg.LLM.MaxTokens != 2000 || cfg.LLM.TopP != 0.95 {
		t.Fatalf("llm defaults wrong: %#v", cfg.LLM)
	}
	if cfg.LLM.RetryAttempts != 3 || cfg.LLM.RetryDelay() != 2*time.Second {
		t.Fatalf("retry defaults wrong: %#v", cfg.LLM)
	}
	if cfg.Storage.DataDir == "" {
		t.Fatalf("data dir not resolved")
	}
}

func TestLoadMergesFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := "llm:\n  provider: Ollama\n  model: qwen2.5\n  timeout_ms: 5000\nstorage:\n  data_dir: /srv/scripts\ndeck:\n  language: EN\nlogging:\n  level: DEBUG\n"
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, _, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error: %v", err)
	}
	if cfg.LLM.Provider != "ollama" || cfg.LLM.Model != "qwen2.5" || cfg.LLM.Timeout() != 5*time.Second {
		t.Fatalf("llm not merged: %#v", cfg.LLM)
	}
	if cfg.LLM.MaxTokens != 2000 {
		t.Fatalf("unset field lost its default: %d", cfg.LLM.MaxTokens)
	}
	if cfg.Storage.DataDir != "/srv/scripts" || cfg.Deck.Language != "en" || cfg.Logging.Level != "debug" {
		t.Fatalf("sections not merged: %#v", cfg)
	}
}

func TestLoadRejectsBrokenYAML(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("llm: [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := LoadFrom(path); err == nil || !strings.Contains(err.Error(), "parse") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv(EnvModel, "gpt-4o-mini")
	t.Setenv(EnvStorageDriver, "postgres")
	t.Setenv(EnvLogSource, "1")
	t.Setenv(EnvLogFile, "/tmp/sd.log")

	cfg, _, err := LoadFrom(filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil {
		t.Fatalf("LoadFrom() error: %v", err)
	}
	if cfg.LLM.Model != "gpt-4o-mini" || cfg.Storage.Driver != "postgres" {
		t.Fatalf("env overrides not applied: %#v", cfg)
	}
	if !cfg.Logging.Source || cfg.Logging.File != "/tmp/sd.log" {
		t.Fatalf("logging overrides not applied: %#v", cfg.Logging)
	}
	if env, ok := EnvOverrideFor("llm.model"); !ok || env != EnvModel {
		t.Fatalf("EnvOverrideFor(llm.model) = %q, %v", env, ok)
	}
	if _, ok := EnvOverrideFor("llm.base_url"); ok {
		t.Fatalf("base_url reported as overridden")
	}
}

func TestAPIKeyFromKeyringAndEnv(t *testing.T) {
	isolate(t)
	if err := SetAPIKey("sk-from-keyring"); err != nil {
		t.Fatalf("SetAPIKey() error: %v", err)
	}
	if got := APIKey(); got != "sk-from-keyring" {
		t.Fatalf("APIKey() = %q", got)
	}
	t.Setenv(EnvAPIKey, "sk-from-env")
	if got := APIKey(); got != "sk-from-env" {
		t.Fatalf("env override ignored: %q", got)
	}
	t.Setenv(EnvAPIKey, "")
	if err := SetAPIKey(""); err != nil {
		t.Fatalf("clearing key: %v", err)
	}
	if err := SetAPIKey(""); err != nil {
		t.Fatalf("clearing a missing key should be a no-op: %v", err)
	}
	if got := APIKey(); got != "" {
		t.Fatalf("key not removed: %q", got)
	}
}

func TestSaveRoundTripKeepsKeyOutOfFile(t *testing.T) {
	isolate(t)
	cfg := Defaults()
	cfg.LLM.Model = "deepseek-reasoner"
	if err := Save(cfg); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	_ = SetAPIKey("sk-secret")
	path, _ := ConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read saved config: %v", err)
	}
	if strings.Contains(string(data), "sk-secret") {
		t.Fatalf("api key leaked into config file")
	}
	got, key, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got.LLM.Model != "deepseek-reasoner" || key != "sk-secret" {
		t.Fatalf("Load() = %#v, key %q", got.LLM, key)
	}
}

func TestProviderSelectsEndpointDefaults(t *testing.T) {
	isolate(t)
	t.Setenv(EnvProvider, "ollama")
	cfg, _, err := LoadFrom(filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil {
		t.Fatalf("LoadFrom() error: %v", err)
	}
	if cfg.LLM.BaseURL != "http://localhost:11434" || cfg.LLM.Model != "qwen2.5" {
		t.Fatalf("ollama defaults not applied: %#v", cfg.LLM)
	}

	t.Setenv(EnvProvider, "openai")
	t.Setenv(EnvBaseURL, "https://proxy.example/v1")
	cfg, _, err = LoadFrom(filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil {
		t.Fatalf("LoadFrom() error: %v", err)
	}
	if cfg.LLM.BaseURL != "https://proxy.example/v1" || cfg.LLM.Model != "gpt-4o-mini" {
		t.Fatalf("explicit base url or openai model lost: %#v", cfg.LLM)
	}
	if url, model := ProviderDefaults("unknown"); url != "https://api.deepseek.com/v1" || model != "deepseek-chat" {
		t.Fatalf("ProviderDefaults(unknown) = %q, %q", url, model)
	}
}

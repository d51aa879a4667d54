/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package llm

import (
	"context"
	"time"

	"scriptdeck/internal/config"
)

// Config is the explicit configuration of a Client. Nothing in this package reads globals.
type Config struct {
	Provider         string // "deepseek", "openai" or "ollama"
	BaseURL          string
	APIKey           string
	Model            string
	Temperature      float64
	MaxTokens        int
	TopP             float64
	PresencePenalty  float64
	FrequencyPenalty float64
	// Timeout bounds a single attempt.
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// DefaultConfig matches the stock DeepSeek setup.
func DefaultConfig() Config {
	return FromAppConfig(config.Defaults().LLM, "")
}

// FromAppConfig converts the user configuration section.
func FromAppConfig(c config.LLMConfig, apiKey string) Config {
	return Config{
		Provider:         c.Provider,
		BaseURL:          c.BaseURL,
		APIKey:           apiKey,
		Model:            c.Model,
		Temperature:      c.Temperature,
		MaxTokens:        c.MaxTokens,
		TopP:             c.TopP,
		PresencePenalty:  c.PresencePenalty,
		FrequencyPenalty: c.FrequencyPenalty,
		Timeout:          c.Timeout(),
		RetryAttempts:    c.RetryAttempts,
		RetryDelay:       c.RetryDelay(),
	}
}

// Request is one chat exchange handed to a provider.
type Request struct {
	System string
	User   string
}

// Completion is the text a provider returned plus token usage when reported.
type Completion struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// Provider performs a single attempt against one upstream API.
// Errors are *UpstreamError or wrap ErrMalformedPayload; anything else is
// treated as a network failure by the Client.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (Completion, error)
}

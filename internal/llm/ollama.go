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
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

// ollamaProvider uses the native Ollama chat endpoint, non-streaming.
type ollamaProvider struct {
	client *api.Client
	cfg    Config
}

func newOllamaProvider(cfg Config, hc *http.Client) (*ollamaProvider, error) {
	base := strings.TrimSuffix(strings.TrimSuffix(cfg.BaseURL, "/"), "/v1")
	if base == "" {
		base = "http://localhost:11434"
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse ollama base url %q: %w", base, err)
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	return &ollamaProvider{client: api.NewClient(u, hc), cfg: cfg}, nil
}

func (p *ollamaProvider) Name() string { return "ollama" }

func (p *ollamaProvider) Complete(ctx context.Context, req Request) (Completion, error) {
	stream := false
	chat := &api.ChatRequest{
		Model: p.cfg.Model,
		Messages: []api.Message{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		Stream: &stream,
		Options: map[string]any{
			"temperature":       p.cfg.Temperature,
			"top_p":             p.cfg.TopP,
			"num_predict":       p.cfg.MaxTokens,
			"presence_penalty":  p.cfg.PresencePenalty,
			"frequency_penalty": p.cfg.FrequencyPenalty,
		},
	}

	var last api.ChatResponse
	var text strings.Builder
	err := p.client.Chat(ctx, chat, func(r api.ChatResponse) error {
		text.WriteString(r.Message.Content)
		last = r
		return nil
	})
	if err != nil {
		return Completion{}, classifyOllama(err)
	}
	if strings.TrimSpace(text.String()) == "" {
		return Completion{}, malformed("ollama returned empty content")
	}
	return Completion{
		Text:             text.String(),
		PromptTokens:     last.PromptEvalCount,
		CompletionTokens: last.EvalCount,
	}, nil
}

func classifyOllama(err error) error {
	var se api.StatusError
	if errors.As(err, &se) {
		return &UpstreamError{Kind: kindForStatus(se.StatusCode), StatusCode: se.StatusCode, Err: err}
	}
	return classifyTransport(err)
}

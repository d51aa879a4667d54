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
	"log/slog"
	"net/http"
	"strings"
	"time"

	applog "scriptdeck/internal/log"
	"scriptdeck/internal/script"
)

// Client turns a story into raw script text. It owns the retry policy:
// a fixed number of attempts with a fixed pause, each bounded by Config.Timeout.
type Client struct {
	provider Provider
	cfg      Config
	prompt   Prompt
	log      *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// Option customizes a Client.
type Option func(*Client)

// WithPrompt replaces the default Chinese prompt.
func WithPrompt(p Prompt) Option { return func(c *Client) { c.prompt = p } }

// WithSchema selects the prompt matching a script schema.
func WithSchema(s *script.Schema) Option { return func(c *Client) { c.prompt = PromptFor(s) } }

// New builds a Client for cfg.Provider. hc may be nil.
func New(cfg Config, hc *http.Client, opts ...Option) (*Client, error) {
	var p Provider
	switch name := strings.ToLower(strings.TrimSpace(cfg.Provider)); name {
	case "", "deepseek", "openai":
		if name == "" {
			name = "deepseek"
		}
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, &UpstreamError{Kind: KindUnauthorized, Err: errors.New("no api key configured")}
		}
		p = newOpenAIProvider(name, cfg, hc)
	case "ollama":
		op, err := newOllamaProvider(cfg, hc)
		if err != nil {
			return nil, err
		}
		p = op
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
	return NewWithProvider(p, cfg, opts...), nil
}

// NewWithProvider wraps an existing Provider with the retry policy from cfg.
func NewWithProvider(p Provider, cfg Config, opts ...Option) *Client {
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 1
	}
	c := &Client{
		provider: p,
		cfg:      cfg,
		prompt:   DefaultPrompt,
		log:      applog.WithComponent("llm").With(slog.String("provider", p.Name()), slog.String("model", cfg.Model)),
		sleep:    sleepCtx,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// GenerateScript asks the model for a script of story and returns the raw completion text.
// Callers parse the result with script.Parse.
func (c *Client) GenerateScript(ctx context.Context, title, story string) (string, error) {
	req := Request{System: c.prompt.System(), User: c.prompt.UserMessage(title, story)}
	log := applog.WithOperation(c.log, "generate")

	var lastErr error
	for attempt := 1; attempt <= c.cfg.RetryAttempts; attempt++ {
		comp, err := c.attempt(ctx, req)
		if err == nil {
			log.InfoContext(ctx, "script generated", slog.Int("attempt", attempt), slog.Int("chars", len([]rune(comp.Text))))
			return comp.Text, nil
		}
		if ctx.Err() != nil {
			return "", fmt.Errorf("generate script: %w", ctx.Err())
		}
		var ue *UpstreamError
		if !errors.As(err, &ue) {
			return "", fmt.Errorf("generate script: %w", err)
		}
		ue.Attempts = attempt
		lastErr = ue
		if !ue.Kind.Retryable() || attempt == c.cfg.RetryAttempts {
			break
		}
		retriesTotal.WithLabelValues(c.provider.Name(), ue.Kind.String()).Inc()
		log.WarnContext(ctx, "attempt failed, retrying", slog.Int("attempt", attempt), slog.String("kind", ue.Kind.String()), slog.Duration("delay", c.cfg.RetryDelay), slog.Any("err", ue.Err))
		if err := c.sleep(ctx, c.cfg.RetryDelay); err != nil {
			return "", fmt.Errorf("generate script: %w", err)
		}
	}
	log.ErrorContext(ctx, "generation failed", slog.Any("err", lastErr))
	return "", lastErr
}

func (c *Client) attempt(ctx context.Context, req Request) (Completion, error) {
	actx := ctx
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}
	start := time.Now()
	comp, err := c.provider.Complete(actx, req)
	if err != nil && !errors.Is(err, ErrMalformedPayload) && !errors.Is(err, ErrUpstreamUnavailable) && ctx.Err() == nil {
		// Provider returned something unclassified.
		if actx.Err() != nil {
			err = &UpstreamError{Kind: KindTimeout, Err: err}
		} else {
			err = &UpstreamError{Kind: KindNetwork, Err: err}
		}
	}
	name, model := c.provider.Name(), c.cfg.Model
	requestsTotal.WithLabelValues(name, model, statusLabel(err)).Inc()
	requestDuration.WithLabelValues(name, model).Observe(time.Since(start).Seconds())
	if err == nil {
		if comp.PromptTokens > 0 {
			promptTokens.WithLabelValues(name, model).Observe(float64(comp.PromptTokens))
		}
		if comp.CompletionTokens > 0 {
			completionTokens.WithLabelValues(name, model).Observe(float64(comp.CompletionTokens))
		}
	}
	return comp, err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

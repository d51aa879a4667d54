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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scriptdeck_llm_requests_total",
			Help: "Generation attempts by provider, model and outcome.",
		},
		[]string{"provider", "model", "status"},
	)
	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scriptdeck_llm_request_duration_seconds",
			Help:    "Duration of single generation attempts.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10), // 0.25s .. ~2min
		},
		[]string{"provider", "model"},
	)
	retriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scriptdeck_llm_retries_total",
			Help: "Retries scheduled after a failed attempt, by failure kind.",
		},
		[]string{"provider", "kind"},
	)
	promptTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scriptdeck_llm_prompt_tokens",
			Help:    "Prompt token counts reported by the upstream.",
			Buckets: prometheus.LinearBuckets(250, 250, 20),
		},
		[]string{"provider", "model"},
	)
	completionTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scriptdeck_llm_completion_tokens",
			Help:    "Completion token counts reported by the upstream.",
			Buckets: prometheus.LinearBuckets(100, 100, 20),
		},
		[]string{"provider", "model"},
	)
)

// statusLabel is the "status" label value for an attempt outcome.
func statusLabel(err error) string {
	if err == nil {
		return "success"
	}
	var ue *UpstreamError
	switch {
	case errors.As(err, &ue):
		return ue.Kind.String()
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "malformed"
	}
}

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
	"errors"
	"fmt"
)

// ErrUpstreamUnavailable is matched by every *UpstreamError.
var ErrUpstreamUnavailable = errors.New("llm: upstream unavailable")

// ErrMalformedPayload means the upstream answered but the answer carried no usable text.
// It is never retried.
var ErrMalformedPayload = errors.New("llm: malformed payload")

// Kind classifies an upstream failure.
type Kind int

const (
	KindUnauthorized Kind = iota + 1
	KindRateLimited
	KindServerError
	KindServiceUnavailable
	KindTimeout
	KindNetwork
	// KindRejected covers other 4xx answers (bad request, unknown model).
	KindRejected
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindRateLimited:
		return "rate_limited"
	case KindServerError:
		return "server_error"
	case KindServiceUnavailable:
		return "service_unavailable"
	case KindTimeout:
		return "timeout"
	case KindNetwork:
		return "network"
	case KindRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Retryable reports whether another attempt can change the outcome.
func (k Kind) Retryable() bool {
	switch k {
	case KindUnauthorized, KindRejected:
		return false
	default:
		return true
	}
}

// Message is the user-facing hint for the kind.
func (k Kind) Message() string {
	switch k {
	case KindUnauthorized:
		return "API密钥无效或已过期，请检查API密钥设置"
	case KindRateLimited:
		return "API调用次数超限，请稍后重试"
	case KindServerError:
		return "API服务器内部错误，请稍后重试"
	case KindServiceUnavailable:
		return "API服务暂时不可用，请稍后重试"
	case KindTimeout:
		return "API请求超时，请检查网络连接或稍后重试"
	case KindNetwork:
		return "无法连接到API服务器，请检查网络连接和API地址"
	case KindRejected:
		return "API拒绝了请求，请检查模型名称和参数设置"
	default:
		return "API请求失败"
	}
}

// UpstreamError is returned when the provider could not produce a completion.
type UpstreamError struct {
	Kind       Kind
	StatusCode int // 0 when no HTTP answer was received
	Attempts   int
	Err        error
}

func (e *UpstreamError) Error() string {
	msg := e.Kind.Message()
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
	}
	if e.Attempts > 1 {
		msg = fmt.Sprintf("%s, after %d attempts", msg, e.Attempts)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstreamUnavailable }

// kindForStatus maps an HTTP status to a failure kind.
func kindForStatus(code int) Kind {
	switch {
	case code == 401 || code == 403:
		return KindUnauthorized
	case code == 429:
		return KindRateLimited
	case code == 503 || code == 502 || code == 504:
		return KindServiceUnavailable
	case code >= 500:
		return KindServerError
	case code == 408:
		return KindTimeout
	default:
		return KindRejected
	}
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedPayload, fmt.Sprintf(format, args...))
}

// Copyright 2025 The Authors (see AUTHORS file)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package discourse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/go-querystring/query"
	"github.com/sethvargo/go-retry"

	"github.com/abcxyz/pkg/logging"
)

const (
	// DefaultMaxRetries is how many times a rate-limited call is retried.
	DefaultMaxRetries = 15
	// DefaultBackoffBase is the first retry delay. Each retry doubles it.
	DefaultBackoffBase = 500 * time.Millisecond
	// DefaultBackoffCap bounds a single retry delay.
	DefaultBackoffCap = time.Minute

	headerAPIKey      = "Api-Key"
	headerAPIUsername = "Api-Username"

	contentTypeJSON = "application/json"
	contentTypeForm = "application/x-www-form-urlencoded"

	userAgent = "discourse-link"

	// maxErrorMessage bounds a non-JSON error body kept in an APIError.
	maxErrorMessage = 256

	// maxBodyBytes bounds how much of a response is read.
	maxBodyBytes = 16 << 20
)

// Response describes a completed call.
type Response struct {
	StatusCode int
	// Retries is the number of rate-limited attempts that were retried.
	Retries int
}

// Transport issues authenticated calls against the forum's REST API and
// retries rate-limited responses with exponential backoff.
type Transport struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	apiUsername string
	maxRetries  uint64
	backoffBase time.Duration
	backoffCap  time.Duration
}

// NewTransport creates a Transport for the forum at baseURL.
func NewTransport(httpClient *http.Client, baseURL, apiKey, apiUsername string) *Transport {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Transport{
		httpClient:  httpClient,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		apiKey:      apiKey,
		apiUsername: apiUsername,
		maxRetries:  DefaultMaxRetries,
		backoffBase: DefaultBackoffBase,
		backoffCap:  DefaultBackoffCap,
	}
}

// Get issues a GET. opts, when non-nil, is encoded into the query string
// using its `url` struct tags.
func (t *Transport) Get(ctx context.Context, path string, opts, out any) (*Response, error) {
	if opts != nil {
		v, err := query.Values(opts)
		if err != nil {
			return nil, fmt.Errorf("failed to encode query for %s: %w", path, err)
		}
		if q := v.Encode(); q != "" {
			path += "?" + q
		}
	}
	return t.do(ctx, http.MethodGet, path, "", nil, out)
}

// Post issues a POST with a JSON body.
func (t *Transport) Post(ctx context.Context, path string, body, out any) (*Response, error) {
	b, err := marshalBody(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode body for %s: %w", path, err)
	}
	return t.do(ctx, http.MethodPost, path, contentTypeJSON, b, out)
}

// Put issues a PUT with a JSON body.
func (t *Transport) Put(ctx context.Context, path string, body, out any) (*Response, error) {
	b, err := marshalBody(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode body for %s: %w", path, err)
	}
	return t.do(ctx, http.MethodPut, path, contentTypeJSON, b, out)
}

// Delete issues a DELETE.
func (t *Transport) Delete(ctx context.Context, path string, out any) (*Response, error) {
	return t.do(ctx, http.MethodDelete, path, "", nil, out)
}

// PutForm issues a PUT whose body is the url-form-encoded form.
func (t *Transport) PutForm(ctx context.Context, path string, form url.Values, out any) (*Response, error) {
	return t.do(ctx, http.MethodPut, path, contentTypeForm, []byte(form.Encode()), out)
}

func (t *Transport) do(ctx context.Context, method, path, contentType string, body []byte, out any) (*Response, error) {
	logger := logging.FromContext(ctx)

	backoff := retry.NewExponential(t.backoffBase)
	backoff = retry.WithCappedDuration(t.backoffCap, backoff)
	backoff = retry.WithMaxRetries(t.maxRetries, backoff)

	resp := &Response{}
	attempts := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if attempts > 0 {
			resp.Retries++
		}
		attempts++

		status, err := t.roundTrip(ctx, method, path, contentType, body, out)
		resp.StatusCode = status
		if err == nil {
			return nil
		}
		if ClassifyError(err) == OutcomeRateLimited {
			logger.WarnContext(ctx, "rate limited by discourse",
				"method", method,
				"path", path,
				"attempt", attempts,
			)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return resp, err //nolint:wrapcheck // Want passthrough
	}
	return resp, nil
}

func (t *Transport) roundTrip(ctx context.Context, method, path, contentType string, body []byte, out any) (int, error) {
	logger := logging.FromContext(ctx)
	logger.DebugContext(ctx, "calling discourse",
		"method", method,
		"path", path,
	)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to build request %s %s: %w", method, path, err)
	}
	req.Header.Set(headerAPIKey, t.apiKey)
	req.Header.Set(headerAPIUsername, t.apiUsername)
	req.Header.Set("Accept", contentTypeJSON)
	req.Header.Set("User-Agent", userAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	httpResp, err := t.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to call %s %s: %w", method, path, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	if err != nil {
		return httpResp.StatusCode, fmt.Errorf("failed to read response of %s %s: %w", method, path, err)
	}

	if Classify(httpResp.StatusCode) != OutcomeSuccess {
		return httpResp.StatusCode, newAPIError(method, path, httpResp.StatusCode, respBody)
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return httpResp.StatusCode, nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return httpResp.StatusCode, fmt.Errorf("failed to decode response of %s %s: %w", method, path, err)
	}
	return httpResp.StatusCode, nil
}

func newAPIError(method, path string, status int, body []byte) *APIError {
	apiErr := &APIError{
		Method:     method,
		Path:       path,
		StatusCode: status,
	}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && len(eb.Errors) > 0 {
		apiErr.Messages = eb.Errors
	} else if s := strings.TrimSpace(string(body)); s != "" {
		s = truncate(s, maxErrorMessage)
		apiErr.Messages = []string{s}
	}
	return apiErr
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func marshalBody(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal json: %w", err)
	}
	return b, nil
}

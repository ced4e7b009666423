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
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Outcome classifies the result of a remote call.
type Outcome int

const (
	// OutcomeSuccess is any 2xx response.
	OutcomeSuccess Outcome = iota
	// OutcomeBenignConflict is a 422 from a mutation endpoint. The forum
	// sends it when the target is already in the requested state.
	OutcomeBenignConflict
	// OutcomeRateLimited is a 429. It is retried by the transport.
	OutcomeRateLimited
	// OutcomeFatal is everything else.
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeBenignConflict:
		return "benign_conflict"
	case OutcomeRateLimited:
		return "rate_limited"
	default:
		return "fatal"
	}
}

// Classify maps an HTTP status code to an Outcome.
func Classify(status int) Outcome {
	switch {
	case status >= 200 && status < 300:
		return OutcomeSuccess
	case status == http.StatusUnprocessableEntity:
		return OutcomeBenignConflict
	case status == http.StatusTooManyRequests:
		return OutcomeRateLimited
	default:
		return OutcomeFatal
	}
}

// ClassifyError maps an error returned by the transport to an Outcome.
// A nil error is a success and errors that did not come from a response,
// such as network failures, are fatal.
func ClassifyError(err error) Outcome {
	if err == nil {
		return OutcomeSuccess
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return Classify(apiErr.StatusCode)
	}
	return OutcomeFatal
}

// APIError is a non-2xx response from the forum.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	// Messages holds the forum's "errors" array when the body had one,
	// otherwise the trimmed body.
	Messages []string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s %s returned %d", e.Method, e.Path, e.StatusCode)
	if len(e.Messages) > 0 {
		msg += ": " + strings.Join(e.Messages, "; ")
	}
	return msg
}

// errorBody is the forum's error envelope.
type errorBody struct {
	Errors    []string `json:"errors"`
	ErrorType string   `json:"error_type"`
}

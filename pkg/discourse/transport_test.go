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
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"

	"github.com/abcxyz/pkg/testutil"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status int
		want   Outcome
	}{
		{status: http.StatusOK, want: OutcomeSuccess},
		{status: http.StatusNoContent, want: OutcomeSuccess},
		{status: http.StatusUnprocessableEntity, want: OutcomeBenignConflict},
		{status: http.StatusTooManyRequests, want: OutcomeRateLimited},
		{status: http.StatusNotFound, want: OutcomeFatal},
		{status: http.StatusInternalServerError, want: OutcomeFatal},
		{status: http.StatusFound, want: OutcomeFatal},
	}

	for _, tc := range cases {
		if got := Classify(tc.status); got != tc.want {
			t.Errorf("Classify(%d) = %s, want %s", tc.status, got, tc.want)
		}
	}
}

func TestClassifyError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want Outcome
	}{
		{name: "nil", err: nil, want: OutcomeSuccess},
		{name: "conflict", err: &APIError{StatusCode: 422}, want: OutcomeBenignConflict},
		{name: "wrapped_conflict", err: fmt.Errorf("outer: %w", &APIError{StatusCode: 422}), want: OutcomeBenignConflict},
		{name: "rate_limited", err: &APIError{StatusCode: 429}, want: OutcomeRateLimited},
		{name: "server_error", err: &APIError{StatusCode: 500}, want: OutcomeFatal},
		{name: "network", err: errors.New("connection refused"), want: OutcomeFatal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := ClassifyError(tc.err); got != tc.want {
				t.Errorf("ClassifyError(%v) = %s, want %s", tc.err, got, tc.want)
			}
		})
	}
}

func TestTransport_Retry(t *testing.T) {
	t.Parallel()

	const path = "/admin/users/list/active.json"

	cases := []struct {
		name        string
		statuses    []int
		maxRetries  uint64
		wantRetries int
		wantCalls   int
		wantStatus  int
		wantErr     string
	}{
		{
			name:        "no_failures",
			maxRetries:  15,
			wantRetries: 0,
			wantCalls:   1,
			wantStatus:  200,
		},
		{
			name:        "three_rate_limits_then_success",
			statuses:    []int{429, 429, 429},
			maxRetries:  15,
			wantRetries: 3,
			wantCalls:   4,
			wantStatus:  200,
		},
		{
			name:        "retries_exhausted",
			statuses:    []int{429, 429, 429},
			maxRetries:  2,
			wantRetries: 2,
			wantCalls:   3,
			wantStatus:  429,
			wantErr:     "GET " + path + " returned 429",
		},
		{
			name:        "server_error_not_retried",
			statuses:    []int{500, 429},
			maxRetries:  15,
			wantRetries: 0,
			wantCalls:   1,
			wantStatus:  500,
			wantErr:     "GET " + path + " returned 500: injected failure",
		},
		{
			name:        "conflict_not_retried",
			statuses:    []int{422},
			maxRetries:  15,
			wantRetries: 0,
			wantCalls:   1,
			wantStatus:  422,
			wantErr:     "returned 422",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			forum := NewFakeForum()
			forum.FailNext(http.MethodGet, path, tc.statuses...)
			server := forum.Server()
			defer server.Close()

			transport := NewTransport(server.Client(), server.URL, FakeAPIKey, FakeAPIUsername)
			transport.maxRetries = tc.maxRetries
			transport.backoffBase = time.Millisecond
			transport.backoffCap = time.Millisecond

			resp, err := transport.Get(t.Context(), path, nil, nil)
			if diff := testutil.DiffErrString(err, tc.wantErr); diff != "" {
				t.Error(diff)
			}
			if got := resp.Retries; got != tc.wantRetries {
				t.Errorf("Retries = %d, want %d", got, tc.wantRetries)
			}
			if got := resp.StatusCode; got != tc.wantStatus {
				t.Errorf("StatusCode = %d, want %d", got, tc.wantStatus)
			}
			if got := len(forum.Calls()); got != tc.wantCalls {
				t.Errorf("calls = %d, want %d", got, tc.wantCalls)
			}
		})
	}
}

func TestTransport_Requests(t *testing.T) {
	t.Parallel()

	type seen struct {
		Method      string
		Path        string
		Query       string
		ContentType string
		APIKey      string
		APIUsername string
		Body        string
	}

	var (
		mu  sync.Mutex
		got seen
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		defer mu.Unlock()
		got = seen{
			Method:      r.Method,
			Path:        r.URL.Path,
			Query:       r.URL.RawQuery,
			ContentType: r.Header.Get("Content-Type"),
			APIKey:      r.Header.Get("Api-Key"),
			APIUsername: r.Header.Get("Api-Username"),
			Body:        string(body),
		}
		fmt.Fprint(w, `{"success":"OK"}`)
	}))
	defer server.Close()

	transport := NewTransport(server.Client(), server.URL+"/", "key", "admin")

	cases := []struct {
		name string
		call func() error
		want seen
	}{
		{
			name: "get_with_query",
			call: func() error {
				_, err := transport.Get(t.Context(), "/groups/staff/members.json", &memberListOptions{Offset: 50, Limit: 25}, nil)
				return err
			},
			want: seen{Method: "GET", Path: "/groups/staff/members.json", Query: "limit=25&offset=50", APIKey: "key", APIUsername: "admin"},
		},
		{
			name: "post_json",
			call: func() error {
				_, err := transport.Post(t.Context(), "/session/forgot_password.json", &forgotPasswordRequest{Login: "alice"}, nil)
				return err
			},
			want: seen{Method: "POST", Path: "/session/forgot_password.json", ContentType: "application/json", APIKey: "key", APIUsername: "admin", Body: `{"login":"alice"}`},
		},
		{
			name: "put_form",
			call: func() error {
				_, err := transport.PutForm(t.Context(), "/u/alice/preferences/email.json", url.Values{"email": {"a@example.com"}}, nil)
				return err
			},
			want: seen{Method: "PUT", Path: "/u/alice/preferences/email.json", ContentType: "application/x-www-form-urlencoded", APIKey: "key", APIUsername: "admin", Body: "email=a%40example.com"},
		},
		{
			name: "delete",
			call: func() error {
				_, err := transport.Delete(t.Context(), "/admin/users/7.json", nil)
				return err
			},
			want: seen{Method: "DELETE", Path: "/admin/users/7.json", APIKey: "key", APIUsername: "admin"},
		},
	}

	// Subtests share the server's recorded request, so they run in order.
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.call(); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			mu.Lock()
			defer mu.Unlock()
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("unexpected request (-want, +got):\n%s", diff)
			}
		})
	}
}

func TestTransport_DecodeErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/plain":
			w.WriteHeader(http.StatusBadGateway)
			fmt.Fprint(w, "upstream unavailable")
		case "/long":
			w.WriteHeader(http.StatusBadGateway)
			fmt.Fprint(w, strings.Repeat("a", 255)+"é…"+strings.Repeat("b", 10))
		case "/garbage":
			fmt.Fprint(w, "{not json")
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer server.Close()

	transport := NewTransport(server.Client(), server.URL, "key", "admin")

	var out map[string]any
	_, err := transport.Get(t.Context(), "/plain", nil, &out)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if diff := cmp.Diff([]string{"upstream unavailable"}, apiErr.Messages); diff != "" {
		t.Errorf("unexpected messages (-want, +got):\n%s", diff)
	}

	_, err = transport.Get(t.Context(), "/long", nil, &out)
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if diff := cmp.Diff([]string{strings.Repeat("a", 255)}, apiErr.Messages); diff != "" {
		t.Errorf("unexpected messages (-want, +got):\n%s", diff)
	}

	_, err = transport.Get(t.Context(), "/garbage", nil, &out)
	if diff := testutil.DiffErrString(err, "failed to decode response of GET /garbage"); diff != "" {
		t.Error(diff)
	}

	resp, err := transport.Get(t.Context(), "/empty", nil, &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{name: "short", in: "abc", n: 5, want: "abc"},
		{name: "exact", in: "abcde", n: 5, want: "abcde"},
		{name: "ascii", in: "abcdef", n: 3, want: "abc"},
		{name: "inside_two_byte_rune", in: "abé", n: 3, want: "ab"},
		{name: "after_two_byte_rune", in: "abéd", n: 4, want: "abé"},
		{name: "inside_three_byte_rune", in: "a…b", n: 3, want: "a"},
		{name: "leading_rune", in: "…", n: 2, want: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := truncate(tc.in, tc.n)
			if got != tc.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tc.in, tc.n, got, tc.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("truncate(%q, %d) = %q is not valid UTF-8", tc.in, tc.n, got)
			}
		})
	}
}

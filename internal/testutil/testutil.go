// Package testutil provides common test utilities and helpers for DossierPipe tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/BTreeMap/DossierPipe/internal/genai"
)

// T is the subset of testing.TB used by the helpers, so they can be
// exercised with a recording fake.
type T interface {
	Helper()
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
}

// Envelope is the decoded API response with the result kept raw.
type Envelope struct {
	Status    string          `json:"status"`
	Message   string          `json:"message,omitempty"`
	Retryable bool            `json:"retryable,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes the response envelope and validates the status field.
func AssertJSONResponse(t T, rr *httptest.ResponseRecorder, expectedStatus string) Envelope {
	t.Helper()
	var env Envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to decode JSON response: %v (body %q)", err, rr.Body.String())
		return env
	}
	if env.Status != expectedStatus {
		t.Errorf("expected status '%s', got '%s' (message %q)", expectedStatus, env.Status, env.Message)
	}
	return env
}

// DecodeResult unmarshals the envelope result into target.
func DecodeResult(t T, env Envelope, target interface{}) {
	t.Helper()
	if len(env.Result) == 0 {
		t.Fatalf("response has no result")
		return
	}
	MustUnmarshalJSON(t, env.Result, target)
}

// CreateHTTPRequest creates an HTTP request with an optional JSON body and
// the member id header set when userID is not empty.
func CreateHTTPRequest(t T, method, url, userID string, body interface{}) *http.Request {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		reqBody = bytes.NewBuffer(MustMarshalJSON(t, body))
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
		return nil
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	return req
}

// MustMarshalJSON marshals an object to JSON and fails test on error.
func MustMarshalJSON(t T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}

// MustUnmarshalJSON unmarshals JSON data into target and fails test on error.
func MustUnmarshalJSON(t T, data []byte, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}
}

// FakeGenerator is a genai.Generator returning a canned response.
type FakeGenerator struct {
	Response string
	Err      error

	mu       sync.Mutex
	requests []genai.Request
}

// Generate records req and returns the canned response or error.
func (g *FakeGenerator) Generate(ctx context.Context, req genai.Request) (string, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	g.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return g.Response, g.Err
}

// Requests returns the requests received so far.
func (g *FakeGenerator) Requests() []genai.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]genai.Request(nil), g.requests...)
}

// Notification is one message captured by FakeNotifier.
type Notification struct {
	To   string
	Body string
}

// FakeNotifier records notifications and optionally fails them.
type FakeNotifier struct {
	Err error

	mu   sync.Mutex
	sent []Notification
}

// Notify records the notification and returns Err.
func (n *FakeNotifier) Notify(ctx context.Context, to string, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, Notification{To: to, Body: body})
	return n.Err
}

// Sent returns the notifications received so far.
func (n *FakeNotifier) Sent() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.sent...)
}

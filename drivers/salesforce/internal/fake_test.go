package driver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
)

const testAPIVersion = "v60.0"

// fakeSalesforce is an in-process Salesforce: an OAuth token endpoint plus
// REST routes registered per test. Requests carrying anything but the most
// recently issued token are answered with 401.
type fakeSalesforce struct {
	t      *testing.T
	server *httptest.Server

	mu        sync.Mutex
	issued    int
	valid     string
	rejectAll bool
	calls     map[string]int
	routes    map[string]http.HandlerFunc
	// tokenHandler replaces the default token endpoint when set
	tokenHandler http.HandlerFunc
	limitInfo    string
}

func newFakeSalesforce(t *testing.T) *fakeSalesforce {
	t.Helper()

	fake := &fakeSalesforce{
		t:      t,
		calls:  make(map[string]int),
		routes: make(map[string]http.HandlerFunc),
	}
	fake.server = httptest.NewServer(http.HandlerFunc(fake.serve))
	t.Cleanup(fake.server.Close)

	return fake
}

func (f *fakeSalesforce) serve(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path

	f.mu.Lock()
	f.calls[key]++
	tokenHandler := f.tokenHandler
	f.mu.Unlock()

	if r.URL.Path == "/services/oauth2/token" {
		if tokenHandler != nil {
			tokenHandler(w, r)
			return
		}
		f.issueToken(w)
		return
	}

	f.mu.Lock()
	authorized := !f.rejectAll && r.Header.Get("Authorization") == "Bearer "+f.valid
	route, found := f.routes[key]
	limitInfo := f.limitInfo
	f.mu.Unlock()

	if limitInfo != "" {
		w.Header().Set("Sforce-Limit-Info", limitInfo)
	}
	if !authorized {
		writeJSON(w, http.StatusUnauthorized, []map[string]string{{"message": "Session expired or invalid", "errorCode": "INVALID_SESSION_ID"}})
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, []map[string]string{{"message": "The requested resource does not exist", "errorCode": "NOT_FOUND"}})
		return
	}

	route(w, r)
}

func (f *fakeSalesforce) issueToken(w http.ResponseWriter) {
	f.mu.Lock()
	f.issued++
	f.valid = fmt.Sprintf("token-%d", f.issued)
	token := f.valid
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{
		"access_token": token,
		"instance_url": f.server.URL,
		"token_type":   "Bearer",
	})
}

func (f *fakeSalesforce) handle(method, path string, handler http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.routes[method+" "+path] = handler
}

// expire invalidates the token currently held by clients
func (f *fakeSalesforce) expire() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.valid = "expired"
}

func (f *fakeSalesforce) setRejectAll(reject bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.rejectAll = reject
}

func (f *fakeSalesforce) tokensIssued() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.issued
}

func (f *fakeSalesforce) count(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls[method+" "+path]
}

func (f *fakeSalesforce) config() *Config {
	return &Config{
		ClientID:          "client-id",
		ClientSecret:      "client-secret",
		RefreshToken:      "refresh-token",
		LoginURL:          f.server.URL,
		APIVersion:        testAPIVersion,
		StartDate:         "2024-01-01T00:00:00Z",
		EndDate:           "2024-06-01T00:00:00Z",
		RequestsPerSecond: 1000,
	}
}

// client returns a client with validated defaults and no real waiting
func (f *fakeSalesforce) client(config *Config) *Client {
	f.t.Helper()

	require.NoError(f.t, config.Validate())
	session, err := NewSession(config, f.server.Client())
	require.NoError(f.t, err)

	governor := NewGovernor(config.RequestsPerSecond, config.QuotaPercentTotal)
	governor.sleep = noSleep

	return NewClient(f.server.Client(), session, governor, config)
}

func dataPath(parts string) string {
	return "/services/data/" + testAPIVersion + "/" + parts
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func noSleep(_ context.Context, _ time.Duration) error {
	return nil
}

func zeroBackOff() backoff.BackOff {
	return &backoff.ZeroBackOff{}
}

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/testrunner/dashboard/internal/app"
)

const (
	DefaultBaseURL       = "http://localhost:5000/api"
	DefaultTimeout       = 30 * time.Second
	DefaultHealthTimeout = 5 * time.Second
)

// Options configures a RealClient. Zero values fall back to the defaults.
type Options struct {
	BaseURL       string
	Token         string
	Timeout       time.Duration
	HealthTimeout time.Duration
}

type RealClient struct {
	baseURL      string
	token        string
	httpClient   *http.Client
	healthClient *http.Client
	now          func() time.Time
}

// NewRealClient creates a client for the test-execution backend REST API
func NewRealClient(opts Options) *RealClient {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	healthTimeout := opts.HealthTimeout
	if healthTimeout <= 0 {
		healthTimeout = DefaultHealthTimeout
	}

	return &RealClient{
		baseURL:      baseURL,
		token:        opts.Token,
		httpClient:   &http.Client{Timeout: timeout},
		healthClient: &http.Client{Timeout: healthTimeout},
		now:          time.Now,
	}
}

// healthURL drops a trailing /api from the base URL; the health endpoint
// lives at the server root.
func (c *RealClient) healthURL() string {
	return strings.TrimSuffix(c.baseURL, "/api") + "/health"
}

type availableTestsResponse struct {
	Success bool     `json:"success"`
	Tests   []string `json:"tests"`
}

type runTestResponse struct {
	Success bool    `json:"success"`
	Result  *Record `json:"result,omitempty"`
	Error   string  `json:"error,omitempty"`
}

type resultsResponse struct {
	Success bool     `json:"success"`
	Results []Record `json:"results"`
	Total   int      `json:"total"`
}

func (c *RealClient) ListTests(ctx context.Context) ([]string, error) {
	var resp availableTestsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/tests", nil, &resp); err != nil {
		log.Printf("backend.list_tests: request failed error=%v", err)
		return nil, app.NewAPIError("Failed to fetch available tests", err)
	}
	if !resp.Success {
		log.Printf("backend.list_tests: backend reported failure")
		return nil, app.NewAPIError("Failed to fetch available tests", nil)
	}
	if resp.Tests == nil {
		return []string{}, nil
	}
	return resp.Tests, nil
}

func (c *RealClient) RunTest(ctx context.Context, name string) app.RunOutcome {
	if name == "" {
		return app.Skipped("empty test name")
	}

	payload := struct {
		TestName string `json:"testName"`
	}{TestName: name}

	var resp runTestResponse
	if err := c.doJSON(ctx, http.MethodPost, "/run-tests", payload, &resp); err != nil {
		log.Printf("backend.run_test: request failed name=%s error=%v", name, err)
		return app.Skipped(err.Error())
	}
	if !resp.Success || resp.Result == nil {
		reason := resp.Error
		if reason == "" {
			reason = "backend returned no result"
		}
		log.Printf("backend.run_test: failed name=%s reason=%s", name, reason)
		return app.Skipped(reason)
	}

	return app.Ran(Convert(*resp.Result))
}

func (c *RealClient) Results(ctx context.Context) (*app.TestResultsResponse, error) {
	var resp resultsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/results", nil, &resp); err != nil {
		if isUnreachable(err) {
			log.Printf("backend.results: backend is not available, returning empty results error=%v", err)
			return Summarize(nil, c.now()), nil
		}
		log.Printf("backend.results: request failed error=%v", err)
		return nil, app.NewAPIError(err.Error(), err)
	}
	if !resp.Success {
		log.Printf("backend.results: backend reported failure")
		return nil, app.NewAPIError("Failed to fetch test results from backend", nil)
	}

	results := convertAll(resp.Results)
	log.Printf("backend.results: fetched total=%d", len(results))
	return Summarize(results, c.now()), nil
}

func (c *RealClient) ResultsByName(ctx context.Context, name string) ([]app.TestResult, error) {
	message := fmt.Sprintf("Failed to fetch results for test: %s", name)

	var resp resultsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/results/test/"+url.PathEscape(name), nil, &resp); err != nil {
		log.Printf("backend.results_by_name: request failed name=%s error=%v", name, err)
		return nil, app.NewAPIError(message, err)
	}
	if !resp.Success {
		log.Printf("backend.results_by_name: backend reported failure name=%s", name)
		return nil, app.NewAPIError(message, nil)
	}
	return convertAll(resp.Results), nil
}

func (c *RealClient) ClearResults(ctx context.Context) error {
	if err := c.doJSON(ctx, http.MethodDelete, "/results", nil, nil); err != nil {
		log.Printf("backend.clear_results: request failed error=%v", err)
		return app.NewAPIError("Failed to clear test results", err)
	}
	log.Printf("backend.clear_results: test results cleared")
	return nil
}

// Health reports whether the backend answers its health endpoint with a 2xx.
func (c *RealClient) Health(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.healthURL(), nil)
	if err != nil {
		log.Printf("backend.health: failed to create request: %v", err)
		return false
	}
	resp, err := c.healthClient.Do(req)
	if err != nil {
		log.Printf("backend.health: check failed: %v", err)
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func (c *RealClient) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("API returned %d: %s", resp.StatusCode, TruncateDefault(strings.TrimSpace(string(data))))
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// isUnreachable reports whether err means no connection to the backend could
// be made at all. Timeouts and HTTP-level failures are not included.
func isUnreachable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return false
	}
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

package backend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/testrunner/dashboard/internal/app"
)

// MockTest scripts how the mock backend answers a run of one test.
type MockTest struct {
	Name        string
	Status      app.Status
	Output      string
	ErrorOutput string
	Duration    int64
	ScriptType  string
	// Unavailable makes the run report failure, so no result is produced.
	Unavailable bool
}

type MockClient struct {
	mu      sync.Mutex
	tests   []MockTest
	records []Record
	now     func() time.Time
}

func NewMockClient() *MockClient {
	c := NewMockClientWithTests(nil)
	c.generateMockData()
	return c
}

// NewMockClientWithTests creates a mock backend exposing exactly the given tests
// and no stored results.
func NewMockClientWithTests(tests []MockTest) *MockClient {
	return &MockClient{
		tests: tests,
		now:   time.Now,
	}
}

func (c *MockClient) generateMockData() {
	c.tests = []MockTest{
		{Name: "api_smoke.py", Status: app.StatusPass, Output: "GET /users -> 200\nGET /orders -> 200\nOK", Duration: 820, ScriptType: "python"},
		{Name: "db_migrations.sh", Status: app.StatusPass, Output: "applied 14 migrations", Duration: 2300, ScriptType: "bash"},
		{Name: "login_flow.py", Status: app.StatusFail, Output: "step 3/5: submit credentials", ErrorOutput: "AssertionError: expected 302, got 500", Duration: 4100, ScriptType: "python"},
		{Name: "disk_check.sh", Status: app.StatusError, Output: "", ErrorOutput: "df: /data: No such file or directory", Duration: 35, ScriptType: "shell"},
	}

	// Seed one previous run so the dashboard is not empty on first load
	start := c.now().Add(-1 * time.Hour)
	for i, t := range c.tests {
		c.records = append(c.records, c.record(t, start.Add(time.Duration(i)*time.Minute)))
	}
}

func (c *MockClient) record(t MockTest, at time.Time) Record {
	duration := t.Duration
	return Record{
		ID:          uuid.NewString(),
		TestName:    t.Name,
		Status:      t.Status,
		Timestamp:   FormatTimestamp(at),
		Output:      t.Output,
		ErrorOutput: t.ErrorOutput,
		Duration:    &duration,
		ScriptType:  t.ScriptType,
	}
}

func (c *MockClient) ListTests(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.tests))
	for _, t := range c.tests {
		names = append(names, t.Name)
	}
	return names, nil
}

func (c *MockClient) RunTest(ctx context.Context, name string) app.RunOutcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, t := range c.tests {
		if t.Name != name {
			continue
		}
		if t.Unavailable {
			return app.Skipped(fmt.Sprintf("test %s could not be executed", name))
		}
		rec := c.record(t, c.now())
		c.records = append(c.records, rec)
		return app.Ran(Convert(rec))
	}
	return app.Skipped(fmt.Sprintf("test %s not found", name))
}

func (c *MockClient) Results(ctx context.Context) (*app.TestResultsResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Summarize(convertAll(c.records), c.now()), nil
}

func (c *MockClient) ResultsByName(ctx context.Context, name string) ([]app.TestResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var filtered []Record
	for _, r := range c.records {
		if r.TestName == name {
			filtered = append(filtered, r)
		}
	}
	return convertAll(filtered), nil
}

func (c *MockClient) ClearResults(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.records = nil
	return nil
}

func (c *MockClient) Health(ctx context.Context) bool {
	return true
}

package app

import "context"

// Backend defines the operations we need from the test-execution service
type Backend interface {
	ListTests(ctx context.Context) ([]string, error)
	RunTest(ctx context.Context, name string) RunOutcome
	Results(ctx context.Context) (*TestResultsResponse, error)
	ResultsByName(ctx context.Context, name string) ([]TestResult, error)
	ClearResults(ctx context.Context) error
	Health(ctx context.Context) bool
}

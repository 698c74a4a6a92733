package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/testrunner/dashboard/internal/app"
	"github.com/testrunner/dashboard/internal/backend"
	"github.com/testrunner/dashboard/internal/config"
	"github.com/testrunner/dashboard/internal/history"
	"github.com/testrunner/dashboard/internal/report"
)

// openHistory is replaced in tests.
var openHistory = history.Open

type options struct {
	apiURL  string
	token   string
	useMock bool

	cfg     *config.Config
	backend app.Backend
}

// NewRootCommand builds the dashctl command tree writing to out.
func NewRootCommand(out io.Writer) *cobra.Command {
	o := &options{}

	root := &cobra.Command{
		Use:           "dashctl",
		Short:         "Run and inspect automated tests from the terminal",
		Long:          "dashctl talks to the same test-execution backend as the dashboard. Configuration is read from the environment, a .env file and DASHBOARD_CONFIG, and can be overridden with flags.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.setup(cmd)
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&o.apiURL, "api-url", "", "test backend API base URL (overrides API_URL)")
	root.PersistentFlags().StringVar(&o.token, "token", "", "bearer token for the test backend (overrides API_TOKEN)")
	root.PersistentFlags().BoolVar(&o.useMock, "mock", false, "use the built-in mock backend")

	root.AddCommand(
		o.testsCommand(),
		o.runCommand(),
		o.resultsCommand(),
		o.testResultsCommand(),
		o.clearCommand(),
		o.healthCommand(),
		o.runsCommand(),
	)
	return root
}

func (o *options) setup(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if o.apiURL != "" {
		cfg.APIURL = o.apiURL
	}
	if o.token != "" {
		cfg.APIToken = o.token
	}
	if cmd.Flags().Changed("mock") {
		cfg.UseMock = o.useMock
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	o.cfg = cfg
	o.backend = backend.FromConfig(cfg)
	return nil
}

func (o *options) testsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tests",
		Short: "List the tests the backend can run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tests, err := o.backend.ListTests(cmd.Context())
			if err != nil {
				return err
			}
			report.Tests(cmd.OutOrStdout(), tests)
			return nil
		},
	}
}

func (o *options) runCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run every available test, one after another",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			resp, err := backend.RunBatch(cmd.Context(), o.backend, backend.BatchOptions{
				Pause: o.cfg.TestPause,
				OnStart: func(runID string, tests []string) {
					fmt.Fprintf(out, "Starting %s with %d tests\n", runID, len(tests))
				},
				OnResult: func(name string, outcome app.RunOutcome) {
					if outcome.OK {
						fmt.Fprintf(out, "  %-6s %s\n", outcome.Result.Status, name)
						return
					}
					fmt.Fprintf(out, "  %-6s %s (%s)\n", "SKIP", name, outcome.Reason)
				},
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s (Run ID: %s)\n", resp.Message, resp.RunID)

			// give the backend time to persist the last results
			select {
			case <-cmd.Context().Done():
				return cmd.Context().Err()
			case <-time.After(o.cfg.RefreshDelay):
			}
			results, err := o.backend.Results(cmd.Context())
			if err != nil {
				return err
			}
			report.Results(out, results)
			return nil
		},
	}
}

func (o *options) resultsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "results",
		Short: "Show all stored results and totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := o.backend.Results(cmd.Context())
			if err != nil {
				return err
			}
			report.Results(cmd.OutOrStdout(), results)
			return nil
		},
	}
}

func (o *options) testResultsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "test-results [name]",
		Short: "Show stored results of one test",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := o.backend.ResultsByName(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			report.Results(cmd.OutOrStdout(), backend.Summarize(results, time.Now()))
			return nil
		},
	}
}

func (o *options) clearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all stored results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.backend.ClearResults(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Test results cleared")
			return nil
		},
	}
}

func (o *options) healthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check whether the test backend is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !o.backend.Health(cmd.Context()) {
				return fmt.Errorf("test backend is unreachable")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Test backend is healthy")
			return nil
		},
	}
}

func (o *options) runsCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recorded batch runs from the run history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
			}
			store, err := openHistory(o.cfg.Database.Driver, o.cfg.Database.URL)
			if err != nil {
				return fmt.Errorf("open run history: %w", err)
			}
			defer store.Close()

			runs, err := store.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("load run history: %w", err)
			}
			report.Runs(cmd.OutOrStdout(), runs)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to show")
	return cmd
}

func Execute() {
	log.Printf("cli.execute: running root command")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand(os.Stdout).ExecuteContext(ctx); err != nil {
		stop()
		log.Printf("cli.execute: root command failed error=%v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	log.Printf("cli.execute: root command completed")
}

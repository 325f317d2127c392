package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jxucoder/autopr/internal/config"
	"github.com/jxucoder/autopr/internal/engine"
	"github.com/jxucoder/autopr/internal/eventbus"
	"github.com/jxucoder/autopr/internal/generator"
	"github.com/jxucoder/autopr/internal/gitcli"
	"github.com/jxucoder/autopr/internal/github"
	"github.com/jxucoder/autopr/internal/llm"
	"github.com/jxucoder/autopr/internal/notify"
	"github.com/jxucoder/autopr/internal/planner"
	"github.com/jxucoder/autopr/internal/reviewer"
	"github.com/jxucoder/autopr/internal/snapshot"
	"github.com/jxucoder/autopr/internal/store"
	"github.com/jxucoder/autopr/internal/testgen"
	"github.com/jxucoder/autopr/internal/testrunner"
)

var runCmd = &cobra.Command{
	Use:   "run [feature request]",
	Short: "Run the pipeline for a feature request",
	Long: `Plan the feature, apply each step as a commit with an AI review,
then run the final review and test pass. The feature request can be given
as an argument or via the FEATURE_REQUEST environment variable.

Example:
  autopr run "add a contact page with a form"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if len(args) == 1 {
		cfg.FeatureRequest = args[0]
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	client, err := llm.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("creating LLM client: %w", err)
	}
	gh, err := github.NewClient(cfg.GitHubToken, cfg.Repository)
	if err != nil {
		return fmt.Errorf("creating GitHub client: %w", err)
	}

	var tests engine.TestRunner
	if cfg.TestCommand != "" {
		tests = testrunner.New(cfg.RepoDir, cfg.TestCommand)
	}

	eng := engine.New(
		cfg,
		gitcli.New(cfg.RepoDir),
		gh,
		planner.New(client),
		generator.New(client),
		reviewer.New(client),
		testgen.New(client),
		tests,
		snapshot.Text,
	)

	// Run history, live events, and chat notifications are all
	// observational; a failing store never blocks a run.
	var runStore engine.RunStore
	if st, err := store.Open(cfg.DatabasePath); err != nil {
		log.Printf("autopr: opening run store failed: %v", err)
	} else {
		defer st.Close()
		runStore = st
	}
	eng.SetObservers(runStore, eventbus.New(), notify.NewFromConfig(cfg))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	outcome, err := eng.Execute(ctx)
	switch outcome {
	case engine.OutcomeReadyForReview:
		fmt.Println("PR is ready for final review.")
		return nil
	case engine.OutcomeNoPlan:
		fmt.Println("No usable plan was produced; nothing was pushed.")
		return nil
	case engine.OutcomeTestsExhausted:
		return fmt.Errorf("tests failing after %d fix attempts", cfg.MaxTestFixAttempts)
	default:
		return err
	}
}

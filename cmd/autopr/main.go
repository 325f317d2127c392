// autopr - autonomous pull request agent
//
// Turns a natural-language feature request into a reviewed,
// test-verified pull request.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	serverURL string
)

var rootCmd = &cobra.Command{
	Use:   "autopr",
	Short: "autopr - autonomous pull request agent",
	Long: `autopr turns a natural-language feature request into a reviewed,
test-verified pull request.

  autopr run "add a contact page"    Run the pipeline against the current repo
  autopr serve                       Start the run-history API server
  autopr list                        List past runs
  autopr status <id>                 Check a run's status
  autopr logs <id> --follow          Stream a run's event log`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("AUTOPR_SERVER", "http://localhost:7080"), "autopr server URL")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all runs",
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	resp, err := http.Get(serverURL + "/api/runs")
	if err != nil {
		return fmt.Errorf("connecting to server: %w\nIs the server running? Start it with: autopr serve", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server error (%d): %s", resp.StatusCode, string(body))
	}

	var runs []struct {
		ID        string `json:"id"`
		Feature   string `json:"feature"`
		Status    string `json:"status"`
		PRUrl     string `json:"pr_url"`
		CreatedAt string `json:"created_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&runs); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}

	if len(runs) == 0 {
		fmt.Println("No runs found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tFEATURE\tPR")
	for _, r := range runs {
		feature := r.Feature
		if len(feature) > 50 {
			feature = feature[:47] + "..."
		}
		pr := r.PRUrl
		if pr == "" {
			pr = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, statusIcon(r.Status), feature, pr)
	}
	return w.Flush()
}

func statusIcon(status string) string {
	switch status {
	case "pending":
		return "⏳ pending"
	case "planning":
		return "🗺 planning"
	case "stepping":
		return "🔄 stepping"
	case "final_review":
		return "🔎 final review"
	case "complete":
		return "✅ complete"
	case "error":
		return "❌ error"
	default:
		return status
	}
}

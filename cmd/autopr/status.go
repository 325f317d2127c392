package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status [run-id]",
	Short: "Get the status of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var logsFollow bool

var logsCmd = &cobra.Command{
	Use:   "logs [run-id]",
	Short: "View a run's event log",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogs,
}

func init() {
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output")
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(logsCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	id := args[0]

	resp, err := http.Get(serverURL + "/api/runs/" + id)
	if err != nil {
		return fmt.Errorf("connecting to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server error (%d): %s", resp.StatusCode, string(body))
	}

	var run struct {
		ID        string `json:"id"`
		Feature   string `json:"feature"`
		Status    string `json:"status"`
		Branch    string `json:"branch"`
		PRUrl     string `json:"pr_url"`
		PRNumber  int    `json:"pr_number"`
		Steps     int    `json:"steps"`
		Error     string `json:"error"`
		CreatedAt string `json:"created_at"`
		UpdatedAt string `json:"updated_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}

	fmt.Printf("Run:      %s\n", run.ID)
	fmt.Printf("Status:   %s\n", statusIcon(run.Status))
	fmt.Printf("Branch:   %s\n", run.Branch)
	fmt.Printf("Feature:  %s\n", run.Feature)
	if run.Steps > 0 {
		fmt.Printf("Steps:    %d\n", run.Steps)
	}
	fmt.Printf("Created:  %s\n", run.CreatedAt)
	fmt.Printf("Updated:  %s\n", run.UpdatedAt)
	if run.PRUrl != "" {
		fmt.Printf("PR:       %s\n", run.PRUrl)
	}
	if run.Error != "" {
		fmt.Printf("Error:    %s\n", run.Error)
	}

	return nil
}

func runLogs(cmd *cobra.Command, args []string) error {
	return streamEvents(args[0])
}

func streamEvents(runID string) error {
	req, _ := http.NewRequest("GET", serverURL+"/api/runs/"+runID+"/events", nil)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("connecting to event stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server error (%d): %s", resp.StatusCode, string(body))
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")
		var event struct {
			Type string `json:"type"`
			Data string `json:"data"`
		}
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			continue
		}

		switch event.Type {
		case "status":
			fmt.Printf("\033[36m[status]\033[0m %s\n", event.Data)
		case "output":
			fmt.Println(event.Data)
		case "error":
			fmt.Fprintf(os.Stderr, "\033[31m[error]\033[0m %s\n", event.Data)
		case "done":
			fmt.Printf("\n\033[32m✓ PR ready:\033[0m %s\n", event.Data)
			if !logsFollow {
				return nil
			}
		}
	}

	return scanner.Err()
}

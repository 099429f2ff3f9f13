package app

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/blackwell-systems/sessionwatch/internal/config"
	"github.com/blackwell-systems/sessionwatch/internal/monitor"
	"github.com/blackwell-systems/sessionwatch/internal/output"
	"github.com/blackwell-systems/sessionwatch/internal/stream"
	"github.com/blackwell-systems/sessionwatch/internal/tailer"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <session-id>",
	Short: "Replay a transcript and show reconstructed session state",
	Long: `Read a session transcript from disk, replay every record through the
event classifier, and print the resulting session state: message count,
tools still running, and subagents still active.

Examples:
  sessionwatch status abc123
  sessionwatch status abc123 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	applyColorPrefs()

	sessionID := args[0]
	path, ok := tailer.FindSessionFile(cfg.ClaudeHome, sessionID, cfg.SearchDepth)
	if !ok {
		return fmt.Errorf("no transcript found for session %q under %s", sessionID, cfg.ClaudeHome)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading transcript: %w", err)
	}

	parser := stream.NewParser()
	recs := parser.Feed(string(data))
	recs = append(recs, parser.Flush()...)

	st := monitor.Replay(sessionID, recs)
	if st == nil {
		fmt.Printf(" %s\n", output.StyleMuted.Render("No classifiable events in transcript."))
		return nil
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}

	fmt.Println(output.Section("Session State"))
	fmt.Println()
	renderState(st)
	fmt.Println()
	fmt.Printf(" %s\n", output.StyleMuted.Render("Transcript: "+path))
	return nil
}

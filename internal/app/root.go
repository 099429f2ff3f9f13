// Package app contains the Cobra command tree for sessionwatch.
package app

import (
	"fmt"
	"os"

	"github.com/blackwell-systems/sessionwatch/internal/output"
	"github.com/spf13/cobra"
)

var appVersion = "dev"

// SetVersion sets the application version (called from main with ldflags value).
func SetVersion(v string) {
	appVersion = v
	rootCmd.Version = v
}

var (
	flagNoColor bool
	flagJSON    bool
	flagConfig  string
)

var rootCmd = &cobra.Command{
	Use:   "sessionwatch",
	Short: "Live monitoring for Claude Code session transcripts",
	Long: `sessionwatch tails Claude Code transcript files and reconstructs
session state as it evolves. It follows appends in real time, classifies
transcript records into session events, and tracks messages, tool calls,
and subagent activity per session or across a managed group of sessions.

Run 'sessionwatch' with no arguments for an overview of subcommands.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("sessionwatch", appVersion)
		fmt.Println()
		fmt.Println("Use a subcommand:")
		fmt.Println("  watch     Stream live session events for a session or group")
		fmt.Println("  tail      Poll a session transcript and print raw appends")
		fmt.Println("  status    Replay a transcript and show reconstructed session state")
		fmt.Println("  sessions  List discovered transcripts")
		fmt.Println("  group     Manage session groups")
		return nil
	},
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// applyColorPrefs disables styling for --no-color or non-terminal stdout.
func applyColorPrefs() {
	if flagNoColor || !output.StdoutIsTerminal() {
		output.SetNoColor(true)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file path (default: ~/.config/sessionwatch/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Output as JSON")
}

package app

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/blackwell-systems/sessionwatch/internal/config"
	"github.com/blackwell-systems/sessionwatch/internal/output"
	"github.com/blackwell-systems/sessionwatch/internal/tailer"
	"github.com/spf13/cobra"
)

var sessionsLimit int

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List discovered transcripts",
	Long: `Scan the Claude Code data directory for session transcripts and list
them most recently modified first.

Examples:
  sessionwatch sessions             # recent transcripts
  sessionwatch sessions --limit 5   # only the five newest
  sessionwatch sessions --json      # machine output`,
	RunE: runSessions,
}

func init() {
	sessionsCmd.Flags().IntVar(&sessionsLimit, "limit", 20, "Maximum transcripts to display (0 for all)")
	rootCmd.AddCommand(sessionsCmd)
}

func runSessions(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	applyColorPrefs()

	transcripts, err := tailer.ListTranscripts(cfg.ClaudeHome)
	if err != nil {
		return fmt.Errorf("listing transcripts: %w", err)
	}

	if sessionsLimit > 0 && len(transcripts) > sessionsLimit {
		transcripts = transcripts[:sessionsLimit]
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(transcripts)
	}

	if len(transcripts) == 0 {
		fmt.Println(" No transcripts found.")
		return nil
	}

	fmt.Println(output.Section("Transcripts"))
	fmt.Println()

	tbl := output.NewTable("Session", "Modified", "Size")
	for _, tr := range transcripts {
		tbl.AddRow(
			tr.SessionID,
			tr.ModTime.Local().Format("Jan 02 15:04"),
			formatSize(tr.Size),
		)
	}
	tbl.Print()

	fmt.Println()
	fmt.Printf(" %s\n", output.StyleMuted.Render(fmt.Sprintf("%d transcripts under %s", len(transcripts), cfg.ClaudeHome)))
	return nil
}

// formatSize renders a byte count in human units.
func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

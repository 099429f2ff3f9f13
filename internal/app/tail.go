package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/blackwell-systems/sessionwatch/internal/config"
	"github.com/blackwell-systems/sessionwatch/internal/tailer"
	"github.com/spf13/cobra"
)

var tailInterval string

var tailCmd = &cobra.Command{
	Use:   "tail <session-id>",
	Short: "Poll a session transcript and print raw appends",
	Long: `Poll a session transcript on an interval and print each newly
appended chunk to stdout as-is, with no parsing or classification. Useful
for piping transcript content into other tools.

Examples:
  sessionwatch tail abc123                 # print appends as they land
  sessionwatch tail abc123 --interval 1s   # poll once per second`,
	Args: cobra.ExactArgs(1),
	RunE: runTail,
}

func init() {
	tailCmd.Flags().StringVar(&tailInterval, "interval", "", "Poll interval as duration string (default from config)")
	rootCmd.AddCommand(tailCmd)
}

func runTail(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	opts := tailer.PullOptions{
		Interval:    cfg.PollInterval,
		SearchDepth: cfg.SearchDepth,
	}
	if tailInterval != "" {
		d, err := time.ParseDuration(tailInterval)
		if err != nil {
			return fmt.Errorf("invalid interval %q: %w", tailInterval, err)
		}
		opts.Interval = d
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, shutdownSignals...)
	go func() {
		<-sigCh
		cancel()
	}()

	pt := tailer.NewPullTailer(cfg.ClaudeHome, args[0], opts)
	defer pt.Close()

	for {
		delta, err := pt.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		fmt.Print(delta.Content)
	}
}

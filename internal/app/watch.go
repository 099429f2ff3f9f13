package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"time"

	"github.com/blackwell-systems/sessionwatch/internal/config"
	"github.com/blackwell-systems/sessionwatch/internal/groupstore"
	"github.com/blackwell-systems/sessionwatch/internal/monitor"
	"github.com/blackwell-systems/sessionwatch/internal/output"
	"github.com/blackwell-systems/sessionwatch/internal/stream"
	"github.com/spf13/cobra"
)

var (
	watchGroup        string
	watchSkipExisting bool
	watchDebounce     string
	watchDaemon       bool
	watchStop         bool
	watchQuiet        bool
)

var watchCmd = &cobra.Command{
	Use:   "watch [session-id]",
	Short: "Stream live session events for a session or group",
	Long: `Follow one session transcript (or every transcript in a group) and
print semantic events as they happen: messages, tool starts and ends, and
subagent activity. The transcript does not need to exist yet; watching
starts delivering events as soon as the file appears.

Examples:
  sessionwatch watch abc123                # follow one session
  sessionwatch watch --group release-7     # follow every session in a group
  sessionwatch watch abc123 --skip-existing  # only new events, no backlog
  sessionwatch watch --group release-7 --daemon  # log events in background
  sessionwatch watch --stop                # stop the background daemon`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchGroup, "group", "", "Watch all sessions in the named group")
	watchCmd.Flags().BoolVar(&watchSkipExisting, "skip-existing", false, "Skip transcript content already on disk; deliver only new events")
	watchCmd.Flags().StringVar(&watchDebounce, "debounce", "", "Write coalescing window as duration string (e.g. 50ms)")
	watchCmd.Flags().BoolVar(&watchDaemon, "daemon", false, "Run in background mode (write PID file, log to file)")
	watchCmd.Flags().BoolVar(&watchStop, "stop", false, "Stop a running background daemon")
	watchCmd.Flags().BoolVar(&watchQuiet, "quiet", false, "Suppress per-event output; print only the final state summary")
	rootCmd.AddCommand(watchCmd)
}

// pidFilePath returns the path to the daemon PID file.
func pidFilePath() string {
	return filepath.Join(config.ConfigDir(), "watch.pid")
}

// logFilePath returns the path to the daemon log file.
func logFilePath() string {
	return filepath.Join(config.ConfigDir(), "watch.log")
}

func runWatch(cmd *cobra.Command, args []string) error {
	if watchStop {
		return stopDaemon()
	}

	if watchGroup == "" && len(args) == 0 {
		return fmt.Errorf("a session id or --group is required")
	}
	if watchGroup != "" && len(args) > 0 {
		return fmt.Errorf("give either a session id or --group, not both")
	}

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	applyColorPrefs()

	opts := monitor.DefaultOptions()
	opts.IncludeExisting = !watchSkipExisting
	opts.Debounce = cfg.Debounce
	opts.SearchDepth = cfg.SearchDepth
	if watchDebounce != "" {
		d, err := time.ParseDuration(watchDebounce)
		if err != nil {
			return fmt.Errorf("invalid debounce %q: %w", watchDebounce, err)
		}
		opts.Debounce = d
	}

	if watchDaemon {
		return runDaemon(cfg, opts, args)
	}
	return runForeground(cfg, opts, args)
}

// runForeground streams events to the terminal until interrupted.
func runForeground(cfg *config.Config, opts monitor.Options, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle SIGINT/SIGTERM for graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, shutdownSignals...)
	go func() {
		<-sigCh
		cancel()
	}()

	events, states, stop, err := startMonitor(ctx, cfg, opts, args)
	if err != nil {
		return err
	}
	defer stop()

	showSession := watchGroup != ""
	for ev := range events {
		if watchQuiet {
			continue
		}
		fmt.Println(formatEvent(ev, showSession))
	}

	printStates(states())
	return nil
}

// runDaemon sets up PID and log files, then streams events into the log.
// The actual backgrounding should be done by the caller (nohup, &, etc.)
// since Go cannot reliably fork.
func runDaemon(cfg *config.Config, opts monitor.Options, args []string) error {
	configDir := config.ConfigDir()
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	// Check for existing daemon.
	if pid, err := readPID(); err == nil {
		if processExists(pid) {
			return fmt.Errorf("daemon already running (PID %d). Use --stop to stop it", pid)
		}
		// Stale PID file, remove it.
		_ = os.Remove(pidFilePath())
	}

	pid := os.Getpid()
	if err := os.WriteFile(pidFilePath(), []byte(strconv.Itoa(pid)), 0o644); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer func() { _ = os.Remove(pidFilePath()) }()

	logFile, err := os.OpenFile(logFilePath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer func() { _ = logFile.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, shutdownSignals...)
	go func() {
		<-sigCh
		cancel()
	}()

	target := watchGroup
	if target == "" {
		target = args[0]
	}
	writeLog(logFile, "sessionwatch daemon started (PID %d, watching %s)", pid, target)

	events, _, stop, err := startMonitor(ctx, cfg, opts, args)
	if err != nil {
		return err
	}
	defer stop()

	for ev := range events {
		writeLog(logFile, "%s", formatEventPlain(ev))
	}

	writeLog(logFile, "daemon stopped")
	return nil
}

// startMonitor wires up either a single-session or a group monitor and
// returns its event stream, a state snapshot accessor, and a stop func.
func startMonitor(ctx context.Context, cfg *config.Config, opts monitor.Options, args []string) (<-chan monitor.Event, func() map[string]*monitor.SessionState, func(), error) {
	if watchGroup == "" {
		mon := monitor.NewSessionMonitor(cfg.ClaudeHome, opts)
		events, err := mon.Watch(ctx, args[0])
		if err != nil {
			return nil, nil, nil, err
		}
		states := func() map[string]*monitor.SessionState {
			out := map[string]*monitor.SessionState{}
			if st := mon.State(); st != nil {
				out[st.SessionID] = st
			}
			return out
		}
		return events, states, mon.Stop, nil
	}

	db, err := groupstore.Open(config.DBPath())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening group database: %w", err)
	}

	mon := monitor.NewGroupMonitor(cfg.ClaudeHome, db, opts)
	events, err := mon.Watch(ctx, watchGroup)
	if err != nil {
		_ = db.Close()
		return nil, nil, nil, err
	}
	stop := func() {
		mon.Stop()
		_ = db.Close()
	}
	return events, mon.States, stop, nil
}

// readPID reads the daemon PID from the PID file.
func readPID() (int, error) {
	data, err := os.ReadFile(pidFilePath())
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(string(data))
}

// writeLog writes a timestamped line to the log file.
func writeLog(f *os.File, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	_, _ = fmt.Fprintf(f, "[%s] %s\n", timestamp, msg)
}

// formatEvent renders one event as a styled terminal line.
func formatEvent(ev monitor.Event, showSession bool) string {
	ts := eventClock(ev)
	line := fmt.Sprintf("[%s] %s %s", ts, output.EventGlyph(string(ev.Type)), eventDetail(ev))
	if showSession {
		line = fmt.Sprintf("[%s] %s %s %s", ts,
			output.StyleMuted.Render(shortID(ev.SessionID)),
			output.EventGlyph(string(ev.Type)),
			eventDetail(ev))
	}
	return line
}

// formatEventPlain renders one event without styling, for log files.
func formatEventPlain(ev monitor.Event) string {
	return fmt.Sprintf("%s %s %s", shortID(ev.SessionID), ev.Type, eventDetail(ev))
}

// eventDetail describes the event payload in a few words.
func eventDetail(ev monitor.Event) string {
	switch ev.Type {
	case monitor.EventMessage:
		return "message"
	case monitor.EventToolStart:
		return fmt.Sprintf("tool %s started", ev.Tool)
	case monitor.EventToolEnd:
		return fmt.Sprintf("tool %s finished", ev.Tool)
	case monitor.EventSubagentStart:
		return fmt.Sprintf("subagent %s [%s] started", ev.TaskID, ev.SubagentType)
	case monitor.EventSubagentEnd:
		return fmt.Sprintf("subagent %s %s", ev.TaskID, output.StatusBadge(ev.Status))
	default:
		return string(ev.Type)
	}
}

// eventClock picks a display time: the record timestamp when parseable,
// wall clock otherwise.
func eventClock(ev monitor.Event) string {
	if t := stream.ParseTimestamp(ev.Timestamp); !t.IsZero() {
		return t.Local().Format("15:04:05")
	}
	return time.Now().Format("15:04:05")
}

// shortID truncates a session id for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// printStates renders final state summaries after the stream ends.
func printStates(states map[string]*monitor.SessionState) {
	if len(states) == 0 {
		return
	}
	fmt.Println(output.Section("Session State"))
	fmt.Println()
	for _, st := range states {
		renderState(st)
		fmt.Println()
	}
}

// renderState prints one session state snapshot.
func renderState(st *monitor.SessionState) {
	label := func(l, v string) {
		fmt.Printf(" %s  %s\n", output.StyleLabel.Render(l), v)
	}
	label("Session", output.StyleBold.Render(st.SessionID))
	label("Messages", fmt.Sprintf("%d", st.MessageCount))

	if len(st.ActiveTools) == 0 {
		label("Active tools", output.StyleMuted.Render("none"))
	} else {
		for tool := range st.ActiveTools {
			label("Active tool", output.StyleWarning.Render(tool))
		}
	}

	if len(st.Subagents) == 0 {
		label("Subagents", output.StyleMuted.Render("none"))
	} else {
		for taskID, info := range st.Subagents {
			label("Subagent", fmt.Sprintf("%s [%s] %s", taskID, info.SubagentType, output.StatusBadge(info.Status)))
		}
	}

	if !st.LastUpdated.IsZero() {
		label("Last updated", st.LastUpdated.Local().Format("2006-01-02 15:04:05"))
	}
}

package app

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/blackwell-systems/sessionwatch/internal/config"
	"github.com/blackwell-systems/sessionwatch/internal/groupstore"
	"github.com/blackwell-systems/sessionwatch/internal/output"
	"github.com/spf13/cobra"
)

var (
	groupName       string
	groupTranscript string
)

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Manage session groups",
	Long: `Create and maintain named groups of sessions. Groups let 'watch
--group' follow a set of related sessions (for example the workers of one
orchestrated run) as a single merged event stream.`,
}

var groupCreateCmd = &cobra.Command{
	Use:   "create <group-id>",
	Short: "Create a new group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openGroupDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.CreateGroup(args[0], groupName); err != nil {
			return err
		}
		fmt.Printf("Created group %s\n", args[0])
		return nil
	},
}

var groupAddCmd = &cobra.Command{
	Use:   "add <group-id> <session-id>",
	Short: "Add a session to a group",
	Long: `Add a member session to a group. Use --transcript to bind the member
to a transcript session id; members without one are tracked but not
watched until a transcript is bound.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openGroupDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.AddSession(args[0], args[1], groupTranscript); err != nil {
			return err
		}
		fmt.Printf("Added %s to %s\n", args[1], args[0])
		return nil
	},
}

var groupRemoveCmd = &cobra.Command{
	Use:   "remove <group-id> <session-id>",
	Short: "Remove a session from a group",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openGroupDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.RemoveSession(args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("Removed %s from %s\n", args[1], args[0])
		return nil
	},
}

var groupStatusCmd = &cobra.Command{
	Use:   "set-status <group-id> <session-id> <status>",
	Short: "Set a member session's status",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openGroupDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.UpdateSessionStatus(args[0], args[1], args[2]); err != nil {
			return err
		}
		fmt.Printf("Set %s to %s\n", args[1], args[2])
		return nil
	},
}

var groupListCmd = &cobra.Command{
	Use:   "list [group-id]",
	Short: "List groups, or the members of one group",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runGroupList,
}

func init() {
	groupCreateCmd.Flags().StringVar(&groupName, "name", "", "Human readable group name")
	groupAddCmd.Flags().StringVar(&groupTranscript, "transcript", "", "Transcript session id the member maps to")

	groupCmd.AddCommand(groupCreateCmd)
	groupCmd.AddCommand(groupAddCmd)
	groupCmd.AddCommand(groupRemoveCmd)
	groupCmd.AddCommand(groupStatusCmd)
	groupCmd.AddCommand(groupListCmd)
	rootCmd.AddCommand(groupCmd)
}

// openGroupDB opens the group database, creating its directory if needed.
func openGroupDB() (*groupstore.DB, error) {
	db, err := groupstore.Open(config.DBPath())
	if err != nil {
		return nil, fmt.Errorf("opening group database: %w", err)
	}
	return db, nil
}

func runGroupList(cmd *cobra.Command, args []string) error {
	applyColorPrefs()

	db, err := openGroupDB()
	if err != nil {
		return err
	}
	defer db.Close()

	if len(args) == 1 {
		return listGroupMembers(db, args[0])
	}

	groups, err := db.ListGroups()
	if err != nil {
		return err
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(groups)
	}

	if len(groups) == 0 {
		fmt.Println(" No groups. Create one with 'sessionwatch group create <id>'.")
		return nil
	}

	fmt.Println(output.Section("Groups"))
	fmt.Println()

	tbl := output.NewTable("Group", "Name", "Sessions", "Bound", "Created")
	for _, g := range groups {
		tbl.AddRow(
			g.ID,
			g.Name,
			fmt.Sprintf("%d", g.SessionCount),
			fmt.Sprintf("%d", g.ActiveCount),
			g.CreatedAt.Local().Format("Jan 02 15:04"),
		)
	}
	tbl.Print()
	return nil
}

func listGroupMembers(db *groupstore.DB, groupID string) error {
	g, err := db.FindByID(groupID)
	if err != nil {
		return err
	}
	if g == nil {
		return fmt.Errorf("group %q not found", groupID)
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(g)
	}

	title := g.ID
	if g.Name != "" {
		title = fmt.Sprintf("%s (%s)", g.ID, g.Name)
	}
	fmt.Println(output.Section("Group " + title))
	fmt.Println()

	if len(g.Sessions) == 0 {
		fmt.Println(" No member sessions.")
		return nil
	}

	tbl := output.NewTable("Session", "Transcript", "Status")
	for _, s := range g.Sessions {
		transcript := s.TranscriptSessionID
		if transcript == "" {
			transcript = output.StyleMuted.Render("(unbound)")
		}
		tbl.AddRow(s.ID, transcript, output.StatusBadge(s.Status))
	}
	tbl.Print()
	return nil
}

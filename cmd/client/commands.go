package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iudanet/gophsync/internal/client/cli"
)

var (
	putID       string
	putUnset    []string
	getJSON     bool
	forceFlag   bool
	resolveTake string
)

var putCmd = &cobra.Command{
	Use:   "put <type> key=value...",
	Short: "Create a record or update its fields",
	Long: "Create a record or update fields of an existing one. Values are parsed as JSON " +
		"literals (numbers, true/false, null, lists, objects), anything else is a string.",
	Example: "  gophsync put note title=groceries done=false\n" +
		"  gophsync put note --id 42 'tags=[\"home\"]' --unset done",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return current.cli.RunPut(cmd.Context(), args[0], putID, args[1:], putUnset)
	},
}

var getCmd = &cobra.Command{
	Use:   "get <type> <id>",
	Short: "Show a record",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return current.cli.RunGet(cmd.Context(), args[0], args[1], getJSON)
	},
}

var listCmd = &cobra.Command{
	Use:   "list <type>",
	Short: "List records of a type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return current.cli.RunList(cmd.Context(), args[0])
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <type> <id>",
	Short: "Delete a record (soft delete)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return current.cli.RunDelete(cmd.Context(), args[0], args[1], forceFlag)
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize local data with server once",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return current.cli.RunSync(cmd.Context())
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Synchronize periodically until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return current.cli.RunDaemon(cmd.Context())
	},
}

var conflictsCmd = &cobra.Command{
	Use:   "conflicts [type]",
	Short: "List conflicts waiting for manual resolution",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entityType := ""
		if len(args) == 1 {
			entityType = args[0]
		}
		return current.cli.RunConflicts(cmd.Context(), entityType)
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <type> <id> [key=value...]",
	Short: "Resolve a conflict",
	Long: "Resolve an open conflict. --take keeps one side as a whole; without it every " +
		"conflicting field is asked for interactively. key=value overrides are applied last.",
	Example: "  gophsync resolve note 42 --take remote\n" +
		"  gophsync resolve note 42 title='merged title'",
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return current.cli.RunResolve(cmd.Context(), args[0], args[1], resolveTake, args[2:])
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pending changes, checkpoints and open conflicts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return current.cli.RunStatus(cmd.Context())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "GophSync Client\n")
		fmt.Fprintf(out, "Version:    %s\n", Version)
		fmt.Fprintf(out, "Build Date: %s\n", BuildDate)
		fmt.Fprintf(out, "Git Commit: %s\n", GitCommit)
	},
}

func init() {
	putCmd.Flags().StringVar(&putID, "id", "", "Record ID (default: generated UUID for new records)")
	putCmd.Flags().StringSliceVar(&putUnset, "unset", nil, "Fields to remove")
	getCmd.Flags().BoolVar(&getJSON, "json", false, "Print the record as JSON")
	deleteCmd.Flags().BoolVarP(&forceFlag, "force", "f", false, "Do not ask for confirmation")
	resolveCmd.Flags().StringVar(&resolveTake, "take", "", fmt.Sprintf("Keep one side: %s or %s", cli.TakeLocal, cli.TakeRemote))
}

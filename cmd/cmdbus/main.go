// Command cmdbus hosts a command bus in a terminal: an interactive chat
// simulation plus one-shot subcommands for invoking, listing and searching
// commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cmdbus/internal/config"
	"cmdbus/internal/logging"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// Loaded configuration
	cfg *config.Config

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "cmdbus",
	Short: "cmdbus - structured chat commands with confirmation and permissions",
	Long: `cmdbus registers structured commands, parses free-text invocations into typed
arguments, asks for confirmation before side effects and dispatches to handlers
behind room and role checks.

Run without arguments to start the interactive chat simulation.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("invalid config %s: %w", configPath, err)
		}
		cfg = loaded

		opts := cfg.Logging.Options()
		if verbose {
			opts.Level = "debug"
		}
		if err := logging.Initialize(opts); err != nil {
			return err
		}
		logger = logging.Base().Named(string(logging.CategoryCLI))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runREPL,
}

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start the interactive chat simulation",
	Long: `Reads chat lines from stdin and routes them through the bus as the given user
and room. Lines starting with ':' control the session:

  :user <id>   speak as another user
  :room <name> move to another room
  :quit        leave`,
	RunE: runREPL,
}

var invokeCmd = &cobra.Command{
	Use:   "invoke [text...]",
	Short: "Invoke one command and print the outcome",
	Example: `  cmdbus invoke echo text:hello
  cmdbus invoke --yes tickets.create --title "VPN down"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInvoke,
}

var listCmd = &cobra.Command{
	Use:   "list [prefix]",
	Short: "List registered commands",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runList,
}

var searchCmd = &cobra.Command{
	Use:   "search [query...]",
	Short: "Rank commands against a query",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

var describeCmd = &cobra.Command{
	Use:   "describe [id]",
	Short: "Show help for a command",
	Args:  cobra.ExactArgs(1),
	RunE:  runDescribe,
}

var collisionsCmd = &cobra.Command{
	Use:   "collisions",
	Short: "Show aliases shared by more than one command",
	Args:  cobra.NoArgs,
	RunE:  runCollisions,
}

var initConfigCmd = &cobra.Command{
	Use:   "init-config",
	Short: "Write a default cmdbus.yaml",
	Args:  cobra.NoArgs,
	RunE:  runInitConfig,
}

var (
	userID      string
	room        string
	autoConfirm bool
	searchLimit int
	showEvents  bool
	forceWrite  bool
)

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to cmdbus.yaml")

	// Identity flags for anything that runs commands
	for _, c := range []*cobra.Command{rootCmd, replCmd, invokeCmd} {
		c.Flags().StringVar(&userID, "user", "local", "User id to act as")
		c.Flags().StringVar(&room, "room", "#local", "Room to act in")
	}
	rootCmd.Flags().BoolVar(&showEvents, "events", false, "Print bus events as they happen")
	replCmd.Flags().BoolVar(&showEvents, "events", false, "Print bus events as they happen")

	invokeCmd.Flags().BoolVarP(&autoConfirm, "yes", "y", false, "Confirm a proposal immediately")
	invokeCmd.Flags().SetInterspersed(false)
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 5, "Maximum results")
	initConfigCmd.Flags().BoolVar(&forceWrite, "force", false, "Overwrite an existing file")

	rootCmd.AddCommand(replCmd)
	rootCmd.AddCommand(invokeCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(describeCmd)
	rootCmd.AddCommand(collisionsCmd)
	rootCmd.AddCommand(initConfigCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

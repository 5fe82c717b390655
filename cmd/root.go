package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teemow/calendaragent/internal/config"
)

var (
	configPath string
	envFile    string
	debugMode  bool
)

// rootCmd represents the base command for the calendaragent application
var rootCmd = &cobra.Command{
	Use:   "calendaragent",
	Short: "Multi-agent calendar assistant",
	Long: `calendaragent manages a personal calendar through a team of agents: a
scheduler that books and changes events, a planner that turns goals into
time-blocked plans you confirm before they are written, and a summary agent
that reports how your time is spent.

It can run as:
  - An interactive chat (default)
  - An MCP (Model Context Protocol) server exposing the calendar operations`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if envFile != "" {
			return config.LoadDotEnv(envFile)
		}
		return config.LoadDotEnv()
	},
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "calendaragent version %s\n" .Version}}`)

	// If no subcommand is provided, start the chat
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "chat")
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "calendaragent version %s\n", version)
		},
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CALENDARAGENT_CONFIG"), "Path to the YAML config file. Can also use CALENDARAGENT_CONFIG env var.")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to a .env file (default: ./.env if present)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newChatCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newCleanupCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newImportCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
	rootCmd.AddCommand(newVersionCmd())
}

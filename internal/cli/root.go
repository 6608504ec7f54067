package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/topicgate/topicgate/internal/cli.version=1.2.3"
	version = "1.4.0"
	logo    = "\n" +
		"  _              _                 _\n" +
		" | |_ ___  _ __ (_) ___ __ _  __ _| |_ ___\n" +
		" | __/ _ \\| '_ \\| |/ __/ _` |/ _` | __/ _ \\\n" +
		" | || (_) | |_) | | (_| (_| | (_| | ||  __/\n" +
		"  \\__\\___/| .__/|_|\\___\\__, |\\__,_|\\__\\___|\n" +
		"          |_|          |___/\n"
)

var rootCmd = &cobra.Command{
	Use:   "topicgate",
	Short: "topicgate - forum topic relay",
	Long:  color.CyanString(logo) + "\nMirrors many source conversations into one forum, one topic per thread.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(sourcesCmd)
}

package cli

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/topicgate/topicgate/internal/config"
	"github.com/topicgate/topicgate/internal/mapping"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Inspect and toggle relayed sources",
}

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all known source mappings",
	RunE:  runSourcesList,
}

var sourcesEnableCmd = &cobra.Command{
	Use:   "enable <chat-id> [thread-id]",
	Short: "Enable relaying for a source",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSourcesToggle(cmd, args, true)
	},
}

var sourcesDisableCmd = &cobra.Command{
	Use:   "disable <chat-id> [thread-id]",
	Short: "Disable relaying for a source",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSourcesToggle(cmd, args, false)
	},
}

var sourcesMappingFile string

func init() {
	sourcesCmd.PersistentFlags().StringVar(&sourcesMappingFile, "mapping", "", "Mapping file path (default from config)")
	sourcesCmd.AddCommand(sourcesListCmd, sourcesEnableCmd, sourcesDisableCmd)
}

func openSourcesStore() (*mapping.Store, error) {
	path := sourcesMappingFile
	if path == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		path = cfg.Paths.MappingFile
	}
	return mapping.NewStore(path)
}

func parseSourceKey(args []string) (mapping.SourceKey, error) {
	chatID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return mapping.SourceKey{}, fmt.Errorf("invalid chat id %q", args[0])
	}
	key := mapping.SourceKey{ChatID: chatID}
	if len(args) == 2 {
		threadID, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return mapping.SourceKey{}, fmt.Errorf("invalid thread id %q", args[1])
		}
		key.ThreadID = threadID
	}
	return key, nil
}

func runSourcesList(cmd *cobra.Command, args []string) error {
	store, err := openSourcesStore()
	if err != nil {
		return err
	}
	all, err := store.All()
	if err != nil {
		return fmt.Errorf("read mappings: %w", err)
	}
	if len(all) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No sources recorded yet.")
		return nil
	}

	keys := make([]mapping.SourceKey, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ChatID != keys[j].ChatID {
			return keys[i].ChatID < keys[j].ChatID
		}
		return keys[i].ThreadID < keys[j].ThreadID
	})

	for _, k := range keys {
		m := all[k]
		state := color.GreenString("enabled")
		if !m.Enabled {
			state = color.RedString("disabled")
		}
		topic := strconv.FormatInt(m.TopicID, 10)
		if m.TopicID == 0 {
			topic = "-"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-20s  topic=%-8s  %-10s  %s\n", k.String(), topic, state, m.Title)
	}
	return nil
}

func runSourcesToggle(cmd *cobra.Command, args []string, enabled bool) error {
	store, err := openSourcesStore()
	if err != nil {
		return err
	}
	key, err := parseSourceKey(args)
	if err != nil {
		return err
	}
	if err := store.SetEnabled(key, enabled); err != nil {
		return err
	}
	verb := "enabled"
	if !enabled {
		verb = "disabled"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Source %s %s\n", key.String(), verb)
	return nil
}

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/topicgate/topicgate/internal/config"
	"github.com/topicgate/topicgate/internal/correlation"
	"github.com/topicgate/topicgate/internal/mapping"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("🏷️ topicgate Version")
		fmt.Printf("Version: %s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show relay status",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("📊 topicgate Status")
		fmt.Printf("Version: %s\n", version)

		configPath, err := config.ConfigPath()
		if err == nil {
			if _, statErr := os.Stat(configPath); statErr == nil {
				fmt.Println("Config:  ✓ Found (" + configPath + ")")
			} else {
				fmt.Println("Config:  ✗ Not found (" + configPath + ")")
			}
		}

		cfg, err := config.Load()
		if err != nil {
			fmt.Printf("Config load error: %v\n", err)
			return
		}

		if cfg.Transport.BotToken != "" {
			fmt.Println("Token:   ✓ Found")
		} else {
			fmt.Println("Token:   ✗ Not found")
		}
		if cfg.Destination.ChatID != 0 {
			fmt.Printf("Forum:   %d\n", cfg.Destination.ChatID)
		} else {
			fmt.Println("Forum:   ✗ Not configured")
		}

		if store, err := mapping.NewStore(cfg.Paths.MappingFile); err == nil {
			if all, err := store.All(); err == nil {
				enabled := 0
				for _, m := range all {
					if m.Enabled {
						enabled++
					}
				}
				fmt.Printf("Sources: %d mapped (%d enabled)\n", len(all), enabled)
			}
		}
		if _, err := os.Stat(cfg.Paths.CorrelateDB); err == nil {
			if store, err := correlation.NewStore(cfg.Paths.CorrelateDB); err == nil {
				if n, err := store.Count(); err == nil {
					fmt.Printf("Edits window: %d correlated message(s)\n", n)
				}
				store.Close()
			}
		}
		if cfg.Stream.Enabled {
			fmt.Printf("Audit:   ✓ Kafka → %s\n", cfg.Stream.Topic)
		} else {
			fmt.Println("Audit:   ✗ Disabled")
		}
		fmt.Println("Status:  Ready")
	},
}

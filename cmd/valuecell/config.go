package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhangtao0212/my-valuecell-sub001/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the resolved configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		key, _ := config.GetAPIKey(cfg)

		fmt.Printf("config file:     %s\n", config.GetUserConfigPath())
		fmt.Printf("api key:         %s\n", config.MaskAPIKey(key))
		fmt.Printf("model:           %s\n", orDefault(cfg.Anthropic.Model, "(sdk default)"))
		fmt.Printf("bedrock:         %v\n", cfg.Anthropic.UseAWSBedrock)
		fmt.Printf("locale:          %s / %s\n", cfg.Locale.Language, cfg.Locale.Timezone)
		fmt.Printf("db path:         %s\n", orDefault(cfg.Storage.DBPath, "(xdg default)"))
		fmt.Printf("agent manifest:  %s\n", orDefault(cfg.Agents.ManifestPath, "(built-ins only)"))
		fmt.Printf("context timeout: %s\n", cfg.Orchestrator.ContextTimeout)
		fmt.Printf("metrics:         %s\n", orDefault(cfg.Metrics.Addr, "(disabled)"))
		return nil
	},
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

package main

import (
	"fmt"
	"log"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/zhangtao0212/my-valuecell-sub001/internal/agents"
	"github.com/zhangtao0212/my-valuecell-sub001/internal/config"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List the available analyst agents",
	RunE:  runAgents,
}

func runAgents(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	registry := agents.NewRegistry()
	defer registry.Close()

	if cfg.Agents.ManifestPath != "" {
		if err := registry.LoadManifest(cfg.Agents.ManifestPath); err != nil {
			log.Printf("agent manifest: %v", err)
		}
	}

	name := color.New(color.FgCyan, color.Bold)
	for _, card := range registry.List() {
		name.Printf("%s", card.Name)
		fmt.Printf("  (%s)\n", card.DisplayName)
		fmt.Printf("  %s\n", card.Description)
		if len(card.Capabilities) > 0 {
			fmt.Printf("  capabilities: %s\n", strings.Join(card.Capabilities, ", "))
		}
		fmt.Printf("  endpoint: %s\n\n", card.URL)
	}
	return nil
}

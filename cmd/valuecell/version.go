package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhangtao0212/my-valuecell-sub001/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("valuecell version %s\n", version.Get())
	},
}

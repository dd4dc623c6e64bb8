package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cryptboot/cryptboot/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the cryptboot version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("cryptboot " + version.Version)
	},
}

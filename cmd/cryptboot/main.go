package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "cryptboot",
	Short: "GRUB boot-image builder for LUKS2-encrypted /boot",
	Long: `cryptboot rebuilds the GRUB boot image so its firmware stage can
unlock a LUKS2-encrypted boot volume on its own. It resolves the block
device stack under /boot (partitions, RAID, LVM, the LUKS container),
derives the GRUB modules that stack and the container's crypto
parameters require, and links them into a new boot image.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05",
		})
		if verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/cryptboot/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log external tool invocations")

	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

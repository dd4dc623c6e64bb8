package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cryptboot/cryptboot/internal/config"
	"github.com/cryptboot/cryptboot/internal/pipeline"
)

var installCmd = &cobra.Command{
	Use:   "install [disk]",
	Short: "Rebuild and install the boot image",
	Long: `Rebuild the GRUB boot image with the modules needed to unlock the
encrypted boot volume, then install it.

On UEFI firmware no argument is needed; the image replaces the one
grub-install stages on the EFI system partition.

On legacy (BIOS) firmware the disk argument names the device whose boot
sector is rewritten, e.g.:

  cryptboot install /dev/sda`,
	Args: cobra.MaximumNArgs(1),
	Run:  runInstall,
}

func init() {
	installCmd.Flags().BoolP("yes", "y", false, "Skip confirmation prompts")
	installCmd.Flags().Bool("keep-log", false, "Keep the grub-install log even on success")
}

func runInstall(cmd *cobra.Command, args []string) {
	yes, _ := cmd.Flags().GetBool("yes")
	keepLog, _ := cmd.Flags().GetBool("keep-log")

	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	opts := pipeline.Options{
		Yes:     yes,
		KeepLog: keepLog,
	}
	if len(args) > 0 {
		opts.BootDisk = args[0]
	}

	if err := pipeline.Run(cfg, opts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

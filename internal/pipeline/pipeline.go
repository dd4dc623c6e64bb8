// Package pipeline sequences a full run: preconditions, topology
// resolution, header introspection, staging, module selection, image
// assembly and (legacy firmware) the boot-sector install. Every step's
// output feeds the next; the first failure aborts the run, and the
// cleanup stack releases whatever the run acquired on every exit path.
package pipeline

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/cryptboot/cryptboot/internal/blockdev"
	"github.com/cryptboot/cryptboot/internal/config"
	"github.com/cryptboot/cryptboot/internal/image"
	"github.com/cryptboot/cryptboot/internal/installer"
	"github.com/cryptboot/cryptboot/internal/luks"
	"github.com/cryptboot/cryptboot/internal/modules"
	"github.com/cryptboot/cryptboot/internal/mountpoint"
	"github.com/cryptboot/cryptboot/internal/sector"
	"github.com/cryptboot/cryptboot/internal/sysinfo"
)

// Options are the per-run knobs from the CLI.
type Options struct {
	// BootDisk is the disk for the legacy boot-sector install. Required
	// on BIOS firmware, ignored on UEFI.
	BootDisk string
	// Yes skips the interactive confirmations.
	Yes bool
	// KeepLog preserves the staging log on success.
	KeepLog bool
}

// Run executes the whole pipeline.
func Run(cfg *config.Config, opts Options) error {
	if err := sysinfo.CheckRoot(); err != nil {
		return err
	}
	if err := sysinfo.CheckArch(); err != nil {
		return err
	}

	fw := sysinfo.DetectFirmware()
	logrus.Infof("firmware: %s", fw)

	if fw == sysinfo.FirmwareBIOS && opts.BootDisk == "" {
		return errors.New("legacy (BIOS) firmware needs the boot disk as an argument, e.g. `cryptboot install /dev/sda`")
	}

	cleanup := mountpoint.NewCleanupStack()
	defer cleanup.Run()
	cleanup.HandleSignals()

	inspector := &blockdev.Inspector{
		Lsblk:      cfg.Tools.Lsblk,
		Mdadm:      cfg.Tools.Mdadm,
		Cryptsetup: cfg.Tools.Cryptsetup,
	}

	if fw == sysinfo.FirmwareBIOS {
		if err := checkWholeDisk(inspector, opts); err != nil {
			return err
		}
	}

	table, err := mountpoint.ReadTable()
	if err != nil {
		return err
	}
	bootDevice, separateBoot, err := table.BootDevice()
	if err != nil {
		return err
	}
	logrus.Infof("boot files live on %s (separate /boot: %v)", bootDevice, separateBoot)

	if fw == sysinfo.FirmwareUEFI {
		if err := ensureESP(cfg, table, opts, cleanup); err != nil {
			return err
		}
	}

	// ResolveTopology
	stack, err := inspector.ResolveStack(bootDevice)
	if err != nil {
		return err
	}
	container, err := inspector.FindCryptContainer(stack)
	if err != nil {
		return err
	}

	// IntrospectCrypto: the KDF gate sits here, before anything mutates.
	introspector := &luks.Introspector{Cryptsetup: cfg.Tools.Cryptsetup}
	params, err := introspector.Describe(container.Path)
	if err != nil {
		return err
	}
	if err := params.CompatibleKDF(); err != nil {
		return err
	}

	if err := confirmPlan(stack, container, params, fw, opts); err != nil {
		return err
	}

	// StageFiles
	orch := &installer.Orchestrator{
		GrubInstall: cfg.Tools.GrubInstall,
		BootDir:     filepath.Dir(cfg.GrubDir),
		ESPDir:      cfg.ESPDir,
		DiagDir:     cfg.DiagDir,
		KeepLog:     opts.KeepLog,
	}
	staged, err := orch.Stage(fw, opts.BootDisk, cleanup)
	if err != nil {
		return err
	}
	logrus.Debugf("installer staged %d modules", len(staged.Modules))

	// SelectModules
	set, err := modules.Select(staged.Modules, stack, params)
	if err != nil {
		return err
	}

	// AssembleImage
	output := staged.ImagePath
	if fw == sysinfo.FirmwareBIOS {
		output = filepath.Join(cfg.GrubDir, "i386-pc", "core.img")
	}
	plan := image.NewBuildPlan(stack, params, separateBoot, fw, output, set)
	builder := &image.Builder{GrubMkimage: cfg.Tools.GrubMkimage}
	if err := builder.Assemble(plan, cleanup); err != nil {
		return err
	}

	// InstallSector (legacy only)
	if fw == sysinfo.FirmwareBIOS {
		inst := &sector.Installer{
			GrubBiosSetup: cfg.Tools.GrubBiosSetup,
			DiagDir:       cfg.DiagDir,
		}
		bootImg := filepath.Join(cfg.GrubDir, "i386-pc", "boot.img")
		if err := inst.Install(opts.BootDisk, bootImg, plan.Output, cleanup); err != nil {
			return err
		}
	}

	logrus.Infof("done: %s can now unlock %s at boot", plan.Output, container.Path)
	return nil
}

// checkWholeDisk warns when the legacy boot disk argument names a
// partition. Unusual, but not categorically wrong, so the operator gets
// to decide.
func checkWholeDisk(inspector *blockdev.Inspector, opts Options) error {
	kind, err := inspector.DeviceType(opts.BootDisk)
	if err != nil {
		return fmt.Errorf("checking %s: %w", opts.BootDisk, err)
	}
	if kind == "disk" {
		return nil
	}

	ok, err := confirm(fmt.Sprintf("%s is a %s, not a whole disk; install the boot sector there anyway?", opts.BootDisk, kind), opts)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("aborted: %s is not a whole disk", opts.BootDisk)
	}
	return nil
}

// ensureESP makes sure the EFI system partition is mounted, mounting it
// from the configured device when the operator agrees.
func ensureESP(cfg *config.Config, table *mountpoint.Table, opts Options, cleanup *mountpoint.CleanupStack) error {
	if table.Find(cfg.ESPDir) != nil {
		return nil
	}
	if cfg.ESPDevice == "" {
		return fmt.Errorf("no filesystem mounted at %s; mount the EFI system partition there (or set esp_device in the config) and retry", cfg.ESPDir)
	}

	ok, err := confirm(fmt.Sprintf("mount %s at %s for the duration of the run?", cfg.ESPDevice, cfg.ESPDir), opts)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("aborted: %s must be mounted to stage boot files", cfg.ESPDir)
	}

	return mountpoint.Ensure(cfg.ESPDevice, cfg.ESPDir, "vfat", cleanup)
}

// confirmPlan shows the operator what was resolved and what is about to
// happen, before the first mutating step.
func confirmPlan(stack []blockdev.Node, container blockdev.Node, params luks.Params, fw sysinfo.Firmware, opts Options) error {
	fmt.Println("Resolved device stack (boot device first):")
	for _, line := range blockdev.Summary(stack) {
		fmt.Println("  " + line)
	}
	fmt.Printf("LUKS container: %s\n", container.Path)
	fmt.Printf("  UUID:   %s\n", params.UUID)
	fmt.Printf("  cipher: %s  hash: %s  kdf: %s\n", params.Cipher, params.Hash, params.KDF)
	fmt.Printf("Firmware: %s\n", fw)

	ok, err := confirm("proceed with staging and image build?", opts)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("aborted by operator")
	}
	return nil
}

// confirm asks the operator a yes/no question. Without a terminal there
// is nobody to ask: --yes proceeds, anything else refuses rather than
// hang or guess.
func confirm(prompt string, opts Options) (bool, error) {
	if opts.Yes {
		return true, nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false, errors.New("not running on a terminal; pass --yes to proceed without confirmation")
	}

	fmt.Printf("%s [y/N] ", prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}

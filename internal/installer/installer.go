// Package installer runs grub-install to stage the generic boot files
// and recovers, from its verbose log, the module set it decided on and
// (on UEFI) where it wrote the boot image. The log scraping is the one
// place this tool depends on another tool's human-readable output; it
// is kept behind ParseLog so a structured installer output would only
// ever touch that function.
package installer

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/cryptboot/cryptboot/internal/mountpoint"
	"github.com/cryptboot/cryptboot/internal/sysinfo"
)

// StageResult is what the installer run contributes to the pipeline.
type StageResult struct {
	// Modules are the module basenames grub-install reported reading,
	// first-seen order, deduplicated.
	Modules []string
	// ImagePath is where grub-install wrote the boot image. Set on
	// UEFI only; the BIOS core image path is fixed by convention.
	ImagePath string
}

// ExecutionError points the operator at the preserved diagnostic log.
type ExecutionError struct {
	Tool    string
	LogPath string
	Err     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s failed (%v); full output preserved at %s", e.Tool, e.Err, e.LogPath)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Orchestrator drives grub-install.
type Orchestrator struct {
	GrubInstall string
	BootDir     string // parent of the grub directory, normally /boot
	ESPDir      string
	DiagDir     string
	// KeepLog preserves the staging log on success too.
	KeepLog bool
}

// Stage invokes grub-install in verbose mode with output captured to a
// scoped temp log. On failure the log is moved to the diagnostic
// directory, made world-readable, and the returned error names it; on
// success the log is scraped and then discarded (unless KeepLog).
func (o *Orchestrator) Stage(fw sysinfo.Firmware, bootDisk string, cleanup *mountpoint.CleanupStack) (StageResult, error) {
	args := []string{"-v", "--recheck", "--boot-directory=" + o.BootDir}
	switch fw {
	case sysinfo.FirmwareUEFI:
		args = append(args,
			"--target=x86_64-efi",
			"--efi-directory="+o.ESPDir,
			"--bootloader-id=GRUB")
	case sysinfo.FirmwareBIOS:
		args = append(args, "--target=i386-pc", bootDisk)
	}

	logFile, err := os.CreateTemp("", "cryptboot-grub-install-*.log")
	if err != nil {
		return StageResult{}, fmt.Errorf("creating staging log: %w", err)
	}
	removal := cleanup.PushFile(logFile.Name())

	logrus.Infof("staging boot files: %s %s", o.GrubInstall, strings.Join(args, " "))

	cmd := exec.Command(o.GrubInstall, args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	runErr := cmd.Run()
	logFile.Close()

	if runErr != nil {
		diagPath := o.preserveLog(logFile.Name(), "cryptboot-grub-install.log", removal)
		return StageResult{}, &ExecutionError{Tool: o.GrubInstall, LogPath: diagPath, Err: runErr}
	}

	logText, err := os.ReadFile(logFile.Name())
	if err != nil {
		return StageResult{}, fmt.Errorf("reading staging log: %w", err)
	}

	result, err := ParseLog(fw, string(logText))
	if err != nil {
		diagPath := o.preserveLog(logFile.Name(), "cryptboot-grub-install.log", removal)
		return StageResult{}, fmt.Errorf("%w; full output preserved at %s", err, diagPath)
	}

	if o.KeepLog {
		diagPath := o.preserveLog(logFile.Name(), "cryptboot-grub-install.log", removal)
		logrus.Infof("staging log kept at %s", diagPath)
	}

	return result, nil
}

// preserveLog moves the temp log to a stable world-readable path and
// drops its scheduled removal. Rename failures fall back to the temp
// path: a log in the wrong place still beats no log.
func (o *Orchestrator) preserveLog(tmpPath, name string, removal *mountpoint.CleanupAction) string {
	removal.Preserve()

	diagPath := filepath.Join(o.DiagDir, name)
	if err := os.Rename(tmpPath, diagPath); err != nil {
		logrus.WithError(err).Warnf("could not move log to %s", diagPath)
		return tmpPath
	}
	if err := os.Chmod(diagPath, 0o644); err != nil {
		logrus.WithError(err).Warnf("could not chmod %s", diagPath)
	}
	return diagPath
}

var (
	reModuleRead = regexp.MustCompile(`(?m)reading (\S+\.mod)`)
	reImageCopy  = regexp.MustCompile(`(?m)copying \x60?([^']+?/core\.efi)'? -> \x60?([^']+?)'?\.?$`)
)

// ParseLog extracts the implicitly selected modules and (UEFI) the
// written image path from grub-install's verbose output.
func ParseLog(fw sysinfo.Firmware, logText string) (StageResult, error) {
	var result StageResult

	seen := make(map[string]bool)
	for _, m := range reModuleRead.FindAllStringSubmatch(logText, -1) {
		name := strings.TrimSuffix(filepath.Base(m[1]), ".mod")
		if seen[name] {
			continue
		}
		seen[name] = true
		result.Modules = append(result.Modules, name)
	}

	if fw == sysinfo.FirmwareUEFI {
		m := reImageCopy.FindStringSubmatch(logText)
		if m == nil {
			return result, fmt.Errorf("grub-install output has no core image copy line; cannot determine where to write the final image")
		}
		result.ImagePath = m[2]
	}

	return result, nil
}

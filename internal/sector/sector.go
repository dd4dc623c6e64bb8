// Package sector finishes a legacy-firmware install by embedding the
// freshly built core image into the boot disk with grub-bios-setup.
package sector

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/cryptboot/cryptboot/internal/mountpoint"
)

// Installer invokes grub-bios-setup.
type Installer struct {
	GrubBiosSetup string
	DiagDir       string
}

// Install writes the boot sector referencing bootImg and coreImg onto
// disk. Both images must already exist in the same directory; a missing
// boot.img after a nominally successful staging step means the staging
// went wrong in a way grub-install did not report, and stops the run.
func (s *Installer) Install(disk, bootImg, coreImg string, cleanup *mountpoint.CleanupStack) error {
	if _, err := os.Stat(bootImg); err != nil {
		return fmt.Errorf("boot sector image %s is missing even though staging succeeded: %w", bootImg, err)
	}
	if _, err := os.Stat(coreImg); err != nil {
		return fmt.Errorf("core image %s is missing: %w", coreImg, err)
	}

	dir := filepath.Dir(coreImg)
	args := []string{
		"-d", dir,
		"-b", filepath.Base(bootImg),
		"-c", filepath.Base(coreImg),
		disk,
	}

	logFile, err := os.CreateTemp("", "cryptboot-bios-setup-*.log")
	if err != nil {
		return fmt.Errorf("creating bios-setup log: %w", err)
	}
	removal := cleanup.PushFile(logFile.Name())

	logrus.Infof("installing boot sector: %s %s", s.GrubBiosSetup, strings.Join(args, " "))

	cmd := exec.Command(s.GrubBiosSetup, args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	runErr := cmd.Run()
	logFile.Close()

	if runErr != nil {
		removal.Preserve()
		diagPath := filepath.Join(s.DiagDir, "cryptboot-bios-setup.log")
		if err := os.Rename(logFile.Name(), diagPath); err != nil {
			logrus.WithError(err).Warnf("could not move log to %s", diagPath)
			diagPath = logFile.Name()
		} else if err := os.Chmod(diagPath, 0o644); err != nil {
			logrus.WithError(err).Warnf("could not chmod %s", diagPath)
		}
		return fmt.Errorf("%s failed (%v); full output preserved at %s", s.GrubBiosSetup, runErr, diagPath)
	}

	return nil
}

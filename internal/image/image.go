// Package image renders the embedded unlock configuration and links
// the final boot image with grub-mkimage.
package image

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/cryptboot/cryptboot/internal/blockdev"
	"github.com/cryptboot/cryptboot/internal/luks"
	"github.com/cryptboot/cryptboot/internal/modules"
	"github.com/cryptboot/cryptboot/internal/mountpoint"
	"github.com/cryptboot/cryptboot/internal/sysinfo"
)

// BuildPlan is everything grub-mkimage needs, resolved once after all
// inputs are in and immutable from then on.
type BuildPlan struct {
	// Root is how GRUB addresses the boot device once the container is
	// unlocked, e.g. "cryptouuid/<uuid>" or "lvm/vg-root".
	Root string
	// Prefix is the device-qualified path to the GRUB directory,
	// e.g. "(cryptouuid/<uuid>)/grub".
	Prefix string
	// Output is the image path to write.
	Output string
	// Format is the GRUB platform, "x86_64-efi" or "i386-pc".
	Format string
	// ContainerUUID is the dashless LUKS UUID for cryptomount.
	ContainerUUID string
	// Modules is the final ordered module list.
	Modules []string
}

// NewBuildPlan derives the image parameters from the resolved stack and
// container. The root specifier follows the stack's top layer: an LVM
// logical volume is addressed by name, anything else through the
// unlocked container directly. The prefix depends on whether /boot is
// its own filesystem or a directory on root.
func NewBuildPlan(stack []blockdev.Node, params luks.Params, separateBoot bool, fw sysinfo.Firmware, output string, set *modules.Set) BuildPlan {
	root := "cryptouuid/" + params.UUIDNoDashes()
	if len(stack) > 0 && stack[0].Kind == blockdev.KindLVM {
		root = "lvm/" + stack[0].Name
	}

	sub := "/boot/grub"
	if separateBoot {
		sub = "/grub"
	}

	format := "i386-pc"
	if fw == sysinfo.FirmwareUEFI {
		format = "x86_64-efi"
	}

	return BuildPlan{
		Root:          root,
		Prefix:        "(" + root + ")" + sub,
		Output:        output,
		Format:        format,
		ContainerUUID: params.UUIDNoDashes(),
		Modules:       set.List(),
	}
}

// EmbeddedConfig renders the script compiled into the image. It runs
// before any filesystem is readable: unlock the container, point root
// and prefix at it, then hand over to normal.
func EmbeddedConfig(plan BuildPlan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "cryptomount -u %s\n", plan.ContainerUUID)
	fmt.Fprintf(&b, "set root=%s\n", plan.Root)
	fmt.Fprintf(&b, "set prefix=%s\n", plan.Prefix)
	b.WriteString("insmod normal\n")
	b.WriteString("normal\n")
	return b.String()
}

// BuildError carries whatever grub-mkimage wrote to stderr.
type BuildError struct {
	Stderr string
	Err    error
}

func (e *BuildError) Error() string {
	msg := "grub-mkimage failed"
	if e.Err != nil {
		msg += fmt.Sprintf(" (%v)", e.Err)
	}
	if e.Stderr != "" {
		msg += ": " + strings.TrimSpace(e.Stderr)
	}
	return msg
}

func (e *BuildError) Unwrap() error { return e.Err }

// Builder invokes grub-mkimage.
type Builder struct {
	GrubMkimage string
}

// Assemble writes the embedded config to a scoped temp file and links
// the image. grub-mkimage is not consistent about exit codes, so any
// stderr output is treated as failure even on exit 0.
func (b *Builder) Assemble(plan BuildPlan, cleanup *mountpoint.CleanupStack) error {
	cfgFile, err := os.CreateTemp("", "cryptboot-embedded-*.cfg")
	if err != nil {
		return fmt.Errorf("creating embedded config: %w", err)
	}
	cleanup.PushFile(cfgFile.Name())

	if _, err := cfgFile.WriteString(EmbeddedConfig(plan)); err != nil {
		cfgFile.Close()
		return fmt.Errorf("writing embedded config: %w", err)
	}
	if err := cfgFile.Close(); err != nil {
		return fmt.Errorf("writing embedded config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(plan.Output), 0o755); err != nil {
		return fmt.Errorf("creating image directory: %w", err)
	}

	args := []string{
		"-c", cfgFile.Name(),
		"-o", plan.Output,
		"-O", plan.Format,
		"-p", plan.Prefix,
	}
	args = append(args, plan.Modules...)

	logrus.Infof("assembling image: %s %s", b.GrubMkimage, strings.Join(args, " "))

	var stderr bytes.Buffer
	cmd := exec.Command(b.GrubMkimage, args...)
	cmd.Stderr = &stderr
	runErr := cmd.Run()

	if runErr != nil || stderr.Len() > 0 {
		return &BuildError{Stderr: stderr.String(), Err: runErr}
	}

	logrus.Infof("image %s built with modules: %s", plan.Output, strings.Join(plan.Modules, " "))
	return nil
}

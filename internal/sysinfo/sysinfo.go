// Package sysinfo holds the environment preconditions: privilege,
// architecture and firmware kind. Everything here refuses early so the
// pipeline never gets partway into a run it cannot finish.
package sysinfo

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Firmware is the kind of platform firmware the machine booted with.
type Firmware string

const (
	FirmwareUEFI Firmware = "uefi"
	FirmwareBIOS Firmware = "bios"
)

const efiSysfsPath = "/sys/firmware/efi"

// CheckRoot verifies the process runs with elevated privilege.
func CheckRoot() error {
	if os.Geteuid() != 0 {
		return errors.New("cryptboot must run as root: it reads LUKS headers and writes boot images")
	}
	return nil
}

// CheckArch verifies the machine is 64-bit x86. The module mapping
// tables target the i386-pc and x86_64-efi GRUB platforms only.
func CheckArch() error {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return fmt.Errorf("uname: %w", err)
	}

	machine := uts.Machine[:]
	if idx := bytes.IndexByte(machine, 0); idx >= 0 {
		machine = machine[:idx]
	}

	if string(machine) != "x86_64" {
		return fmt.Errorf("unsupported architecture %q: cryptboot targets x86_64 only", machine)
	}
	return nil
}

// DetectFirmware reports whether the running system booted via UEFI.
func DetectFirmware() Firmware {
	if _, err := os.Stat(efiSysfsPath); err == nil {
		return FirmwareUEFI
	}
	return FirmwareBIOS
}

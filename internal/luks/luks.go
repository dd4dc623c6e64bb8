// Package luks reads the LUKS2 header parameters that decide which
// cryptographic GRUB modules the boot image needs.
package luks

import (
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// AcceptedKDF is the only key-derivation function GRUB's firmware stage
// can run. LUKS2 defaults to argon2id, which GRUB cannot compute, so
// this is checked before anything destructive happens.
const AcceptedKDF = "pbkdf2"

// Params are the header fields relevant to module selection.
type Params struct {
	UUID   uuid.UUID
	Cipher string // e.g. "aes-xts-plain64"
	Hash   string // e.g. "sha256"
	KDF    string // e.g. "pbkdf2", "argon2id"
}

// UUIDNoDashes renders the UUID the way GRUB's cryptomount wants it.
func (p Params) UUIDNoDashes() string {
	return strings.ReplaceAll(p.UUID.String(), "-", "")
}

// UnsupportedKDFError is raised when the container's key derivation is
// anything GRUB cannot evaluate at boot time.
type UnsupportedKDFError struct {
	KDF string
}

func (e *UnsupportedKDFError) Error() string {
	return fmt.Sprintf("LUKS keyslot uses the %q KDF, which GRUB cannot unlock; convert a keyslot with "+
		"`cryptsetup luksConvertKey --pbkdf pbkdf2 <device>` and retry", e.KDF)
}

// CompatibleKDF verifies the key derivation is one the bootloader
// supports.
func (p Params) CompatibleKDF() error {
	if p.KDF != AcceptedKDF {
		return &UnsupportedKDFError{KDF: p.KDF}
	}
	return nil
}

// MetadataParseError means the header dump was missing a field this
// tool cannot proceed without.
type MetadataParseError struct {
	Device string
	Field  string
}

func (e *MetadataParseError) Error() string {
	return fmt.Sprintf("cryptsetup luksDump for %s reported no %s", e.Device, e.Field)
}

// Introspector reads LUKS2 headers via cryptsetup.
type Introspector struct {
	Cryptsetup string
}

// NewIntrospector returns an Introspector using the standard tool name.
func NewIntrospector() *Introspector {
	return &Introspector{Cryptsetup: "cryptsetup"}
}

// Describe extracts the UUID, cipher, hash and KDF from the container's
// header.
func (i *Introspector) Describe(devicePath string) (Params, error) {
	out, err := exec.Command(i.Cryptsetup, "luksDump", devicePath).Output()
	if err != nil {
		return Params{}, fmt.Errorf("cryptsetup luksDump %s: %w", devicePath, err)
	}

	return ParseDump(devicePath, string(out))
}

var (
	reUUID   = regexp.MustCompile(`(?m)^UUID:\s*(\S+)`)
	reCipher = regexp.MustCompile(`(?m)^\s*Cipher:\s*(\S+)`)
	reHash   = regexp.MustCompile(`(?m)^\s*(?:AF hash|Hash):\s*(\S+)`)
	reKDF    = regexp.MustCompile(`(?m)^\s*PBKDF:\s*(\S+)`)
)

// ParseDump pulls the four relevant fields out of luksDump output by
// label match. The first keyslot's values are taken; GRUB tries every
// keyslot at boot but module selection only needs one representative.
func ParseDump(device, dump string) (Params, error) {
	var p Params

	m := reUUID.FindStringSubmatch(dump)
	if m == nil {
		return p, &MetadataParseError{Device: device, Field: "UUID"}
	}
	id, err := uuid.Parse(m[1])
	if err != nil {
		return p, fmt.Errorf("cryptsetup luksDump for %s reported a malformed UUID %q: %w", device, m[1], err)
	}
	p.UUID = id

	m = reCipher.FindStringSubmatch(dump)
	if m == nil {
		return p, &MetadataParseError{Device: device, Field: "cipher"}
	}
	p.Cipher = m[1]

	m = reHash.FindStringSubmatch(dump)
	if m == nil {
		return p, &MetadataParseError{Device: device, Field: "hash"}
	}
	p.Hash = m[1]

	m = reKDF.FindStringSubmatch(dump)
	if m == nil {
		return p, &MetadataParseError{Device: device, Field: "PBKDF"}
	}
	p.KDF = m[1]

	return p, nil
}

package blockdev

import "fmt"

// Kind classifies a block-device layer. The enumeration is closed:
// resolution fails on anything lsblk reports that does not map here.
type Kind string

const (
	KindDisk  Kind = "disk"
	KindPart  Kind = "part"
	KindRAID  Kind = "raid"
	KindLVM   Kind = "lvm"
	KindCrypt Kind = "crypt"
)

// Scheme is a partition-table scheme.
type Scheme string

const (
	SchemeGPT Scheme = "gpt"
	SchemeDOS Scheme = "dos"
)

// RAIDInfo holds the mdadm details needed to pick RAID modules.
type RAIDInfo struct {
	Metadata string // e.g. "1.2", "0.90"
	Level    int    // e.g. 1, 5, 6
}

// Node is one layer of a device stack. Stacks are ordered nearest-first:
// the boot device itself, then each layer it is backed by, down to the
// physical disk. Nodes are snapshots of live state and are re-resolved
// on every run.
type Node struct {
	Path   string
	Name   string
	Kind   Kind
	Size   uint64
	FSType string
	UUID   string

	// Scheme is set on part nodes by a secondary query against the
	// parent disk's partition table.
	Scheme Scheme

	// RAID is set on raid nodes from mdadm --detail.
	RAID *RAIDInfo
}

func (n Node) String() string {
	return fmt.Sprintf("%s (%s)", n.Path, n.Kind)
}

// UnknownKindError reports a device type outside the recognized
// enumeration. Guessing a module for it would produce an unbootable
// image, so resolution stops here.
type UnknownKindError struct {
	Path string
	Type string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("device %s has unrecognized type %q; cannot determine boot modules for it", e.Path, e.Type)
}

// UnknownSchemeError reports a partition-table scheme with no known
// GRUB partition module.
type UnknownSchemeError struct {
	Path   string
	Scheme string
}

func (e *UnknownSchemeError) Error() string {
	return fmt.Sprintf("partition %s sits on an unrecognized partition table %q (expected gpt or dos)", e.Path, e.Scheme)
}

// UnknownRAIDMetadataError reports an mdadm metadata version with no
// known GRUB mdraid module.
type UnknownRAIDMetadataError struct {
	Path     string
	Metadata string
}

func (e *UnknownRAIDMetadataError) Error() string {
	return fmt.Sprintf("RAID array %s uses unrecognized metadata version %q (expected 1.x or 0.9)", e.Path, e.Metadata)
}

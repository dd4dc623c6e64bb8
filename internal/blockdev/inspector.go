package blockdev

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// Inspector resolves block-device stacks by querying lsblk, mdadm and
// cryptsetup. Tool names are overridable for configs that ship the
// tools outside PATH.
type Inspector struct {
	Lsblk      string
	Mdadm      string
	Cryptsetup string
}

// NewInspector returns an Inspector using the standard tool names.
func NewInspector() *Inspector {
	return &Inspector{
		Lsblk:      "lsblk",
		Mdadm:      "mdadm",
		Cryptsetup: "cryptsetup",
	}
}

// lsblkOutput represents the JSON output from lsblk
type lsblkOutput struct {
	Blockdevices []lsblkDevice `json:"blockdevices"`
}

// lsblkDevice represents a single device in lsblk output. Size is a
// json.Number: util-linux emits it as a JSON string before 2.37 and as
// a number from then on, even with -b.
type lsblkDevice struct {
	Name     string        `json:"name"`
	Path     string        `json:"path"`
	Type     string        `json:"type"`
	Size     json.Number   `json:"size"`
	FSType   string        `json:"fstype"`
	UUID     string        `json:"uuid"`
	Children []lsblkDevice `json:"children,omitempty"`
}

// NoCryptContainerError means the stack under the boot device holds no
// LUKS container, which defeats the whole point of this tool.
type NoCryptContainerError struct {
	Device string
}

func (e *NoCryptContainerError) Error() string {
	return fmt.Sprintf("no LUKS container found beneath %s; the boot volume does not appear to be encrypted", e.Device)
}

// ResolveStack lists the device at path and every layer it is built on,
// nearest-first, classifying each layer. part and raid nodes get their
// secondary queries (partition-table scheme, mdadm details) resolved
// here so later stages need no further I/O.
func (i *Inspector) ResolveStack(devicePath string) ([]Node, error) {
	// -s inverts the tree: children are the devices this one sits on
	out, err := exec.Command(i.Lsblk, "-J", "-b", "-s", "-o",
		"NAME,PATH,TYPE,SIZE,FSTYPE,UUID", devicePath).Output()
	if err != nil {
		return nil, fmt.Errorf("lsblk %s: %w", devicePath, err)
	}

	var parsed lsblkOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, fmt.Errorf("parsing lsblk output for %s: %w", devicePath, err)
	}
	if len(parsed.Blockdevices) == 0 {
		return nil, fmt.Errorf("device %s not found", devicePath)
	}

	var stack []Node
	if err := i.flatten(parsed.Blockdevices[0], &stack); err != nil {
		return nil, err
	}

	return stack, nil
}

// flatten walks the inverse lsblk tree depth-first, appending each
// layer in stacking order. Every child branch is visited: a layer can
// sit on several devices at once (RAID members, LVM physical volumes),
// and each of them can demand its own modules.
func (i *Inspector) flatten(dev lsblkDevice, stack *[]Node) error {
	node, err := i.classify(dev)
	if err != nil {
		return err
	}
	*stack = append(*stack, node)

	for _, child := range dev.Children {
		if err := i.flatten(child, stack); err != nil {
			return err
		}
	}
	return nil
}

// classify maps an lsblk TYPE to a Kind and runs the secondary queries
// the kind calls for. Anything outside the enumeration is a hard error.
func (i *Inspector) classify(dev lsblkDevice) (Node, error) {
	node := Node{
		Path:   dev.Path,
		Name:   dev.Name,
		FSType: dev.FSType,
		UUID:   dev.UUID,
	}

	// Size is display-only; an unparseable value stays zero rather
	// than fail the resolution.
	if size, err := dev.Size.Int64(); err == nil && size > 0 {
		node.Size = uint64(size)
	}

	switch {
	case dev.Type == "disk":
		node.Kind = KindDisk
	case dev.Type == "part":
		node.Kind = KindPart
		scheme, err := i.partitionScheme(dev.Path)
		if err != nil {
			return node, err
		}
		node.Scheme = scheme
	case dev.Type == "lvm":
		node.Kind = KindLVM
	case dev.Type == "crypt":
		node.Kind = KindCrypt
	case strings.HasPrefix(dev.Type, "raid"):
		node.Kind = KindRAID
		info, err := i.raidDetail(dev.Path)
		if err != nil {
			return node, err
		}
		node.RAID = info
	default:
		return node, &UnknownKindError{Path: dev.Path, Type: dev.Type}
	}

	return node, nil
}

// DeviceType reports the raw lsblk TYPE of a single device, without
// classification. Used for the whole-disk advisory on the legacy boot
// disk argument.
func (i *Inspector) DeviceType(path string) (string, error) {
	out, err := exec.Command(i.Lsblk, "-ndo", "TYPE", path).Output()
	if err != nil {
		return "", fmt.Errorf("lsblk TYPE %s: %w", path, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// partitionScheme reports which partition table the partition lives in.
func (i *Inspector) partitionScheme(path string) (Scheme, error) {
	out, err := exec.Command(i.Lsblk, "-ndo", "PTTYPE", path).Output()
	if err != nil {
		return "", fmt.Errorf("lsblk PTTYPE %s: %w", path, err)
	}

	switch pttype := strings.TrimSpace(string(out)); pttype {
	case "gpt":
		return SchemeGPT, nil
	case "dos":
		return SchemeDOS, nil
	default:
		return "", &UnknownSchemeError{Path: path, Scheme: pttype}
	}
}

var (
	reMDVersion = regexp.MustCompile(`(?m)^\s*Version\s*:\s*(\S+)`)
	reMDLevel   = regexp.MustCompile(`(?m)^\s*Raid Level\s*:\s*raid(\d+)`)
)

// raidDetail scrapes metadata version and RAID level from mdadm.
func (i *Inspector) raidDetail(path string) (*RAIDInfo, error) {
	out, err := exec.Command(i.Mdadm, "--detail", path).Output()
	if err != nil {
		return nil, fmt.Errorf("mdadm --detail %s: %w", path, err)
	}

	return ParseRAIDDetail(path, string(out))
}

// ParseRAIDDetail extracts the metadata version and level from mdadm
// --detail output.
func ParseRAIDDetail(path, detail string) (*RAIDInfo, error) {
	info := &RAIDInfo{}

	m := reMDVersion.FindStringSubmatch(detail)
	if m == nil {
		return nil, fmt.Errorf("mdadm reported no metadata version for %s", path)
	}
	info.Metadata = m[1]

	m = reMDLevel.FindStringSubmatch(detail)
	if m == nil {
		return nil, fmt.Errorf("mdadm reported no RAID level for %s", path)
	}
	level, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, fmt.Errorf("mdadm reported unparseable RAID level for %s: %w", path, err)
	}
	info.Level = level

	return info, nil
}

// FindCryptContainer scans the stack for the first crypt layer and
// returns the device backing it, which is where the LUKS header
// actually lives (the crypt node itself is only the opened mapping).
// The backing device is checked with cryptsetup to rule out other
// device-mapper targets that lsblk also reports as crypt.
func (i *Inspector) FindCryptContainer(stack []Node) (Node, error) {
	for idx, node := range stack {
		if node.Kind != KindCrypt {
			continue
		}
		if idx+1 >= len(stack) {
			return Node{}, fmt.Errorf("crypt device %s has no backing device in the stack", node.Path)
		}

		header := stack[idx+1]
		if err := exec.Command(i.Cryptsetup, "isLuks", header.Path).Run(); err != nil {
			return Node{}, fmt.Errorf("%s backs a crypt mapping but cryptsetup does not recognize it as LUKS: %w", header.Path, err)
		}
		return header, nil
	}

	device := ""
	if len(stack) > 0 {
		device = stack[0].Path
	}
	return Node{}, &NoCryptContainerError{Device: device}
}

// Summary renders one line per stack layer for the operator's
// confirmation, nearest layer first.
func Summary(stack []Node) []string {
	lines := make([]string, 0, len(stack))
	for _, n := range stack {
		desc := fmt.Sprintf("%-6s %s  %s", n.Kind, n.Path, humanize.IBytes(n.Size))
		switch n.Kind {
		case KindPart:
			desc += fmt.Sprintf("  table=%s", n.Scheme)
		case KindRAID:
			if n.RAID != nil {
				desc += fmt.Sprintf("  raid%d metadata=%s", n.RAID.Level, n.RAID.Metadata)
			}
		case KindCrypt:
			if n.FSType != "" {
				desc += fmt.Sprintf("  %s", n.FSType)
			}
		}
		lines = append(lines, desc)
	}
	return lines
}

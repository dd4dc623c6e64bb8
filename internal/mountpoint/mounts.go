// Package mountpoint locates the filesystems a run needs, mounts the
// ones that are missing, and guarantees everything this process mounted
// or created gets released on the way out.
package mountpoint

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

const procMounts = "/proc/self/mounts"

// Entry is one line of the mount table.
type Entry struct {
	Device     string
	Mountpoint string
	FSType     string
}

// Table is a snapshot of the current mount table.
type Table struct {
	entries []Entry
}

// ReadTable parses /proc/self/mounts.
func ReadTable() (*Table, error) {
	f, err := os.Open(procMounts)
	if err != nil {
		return nil, fmt.Errorf("reading mount table: %w", err)
	}
	defer f.Close()

	t := &Table{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		t.entries = append(t.entries, Entry{
			Device:     unescapeMount(fields[0]),
			Mountpoint: unescapeMount(fields[1]),
			FSType:     fields[2],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading mount table: %w", err)
	}
	return t, nil
}

// Find returns the entry mounted exactly at the given path, or nil.
// Later entries win, matching kernel overmount semantics.
func (t *Table) Find(mountpoint string) *Entry {
	var found *Entry
	for i := range t.entries {
		if t.entries[i].Mountpoint == mountpoint {
			found = &t.entries[i]
		}
	}
	return found
}

// BootDevice reports the device backing /boot and whether /boot is a
// mount of its own. When it is not, the boot files live on the root
// filesystem and the device backing / is returned.
func (t *Table) BootDevice() (device string, separate bool, err error) {
	if e := t.Find("/boot"); e != nil {
		return e.Device, true, nil
	}
	if e := t.Find("/"); e != nil {
		return e.Device, false, nil
	}
	return "", false, fmt.Errorf("mount table has no entry for / — cannot locate the boot device")
}

// Ensure mounts device at target unless something is already mounted
// there, and registers the unmount with the cleanup stack.
func Ensure(device, target, fstype string, cleanup *CleanupStack) error {
	table, err := ReadTable()
	if err != nil {
		return err
	}
	if table.Find(target) != nil {
		return nil
	}

	if err := os.MkdirAll(target, 0o755); err != nil {
		return fmt.Errorf("creating mountpoint %s: %w", target, err)
	}
	if err := unix.Mount(device, target, fstype, 0, ""); err != nil {
		return fmt.Errorf("mounting %s at %s: %w", device, target, err)
	}

	cleanup.Push("unmount "+target, func() error {
		return unix.Unmount(target, 0)
	})
	return nil
}

// unescapeMount undoes the octal escapes /proc/self/mounts uses for
// whitespace in paths.
func unescapeMount(s string) string {
	replacer := strings.NewReplacer(
		`\040`, " ",
		`\011`, "\t",
		`\012`, "\n",
		`\134`, `\`,
	)
	return replacer.Replace(s)
}

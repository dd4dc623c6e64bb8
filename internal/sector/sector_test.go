package sector

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptboot/cryptboot/internal/mountpoint"
)

func TestInstallRefusesMissingBootImage(t *testing.T) {
	dir := t.TempDir()
	coreImg := filepath.Join(dir, "core.img")
	require.NoError(t, os.WriteFile(coreImg, []byte("core"), 0o644))

	s := &Installer{GrubBiosSetup: "grub-bios-setup", DiagDir: dir}
	err := s.Install("/dev/sda", filepath.Join(dir, "boot.img"), coreImg, mountpoint.NewCleanupStack())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "boot.img")
	assert.Contains(t, err.Error(), "staging succeeded")
}

func TestInstallRefusesMissingCoreImage(t *testing.T) {
	dir := t.TempDir()
	bootImg := filepath.Join(dir, "boot.img")
	require.NoError(t, os.WriteFile(bootImg, []byte("boot"), 0o644))

	s := &Installer{GrubBiosSetup: "grub-bios-setup", DiagDir: dir}
	err := s.Install("/dev/sda", bootImg, filepath.Join(dir, "core.img"), mountpoint.NewCleanupStack())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "core.img")
}

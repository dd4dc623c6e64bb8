package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tools:\n  grub_install: grub2-install\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	// explicit value kept
	assert.Equal(t, "grub2-install", cfg.Tools.GrubInstall)
	// everything else defaulted
	assert.Equal(t, "grub-mkimage", cfg.Tools.GrubMkimage)
	assert.Equal(t, "lsblk", cfg.Tools.Lsblk)
	assert.Equal(t, "/boot/grub", cfg.GrubDir)
	assert.Equal(t, "/boot/efi", cfg.ESPDir)
	assert.Equal(t, ".", cfg.DiagDir)
}

func TestLoadFullFile(t *testing.T) {
	content := `tools:
  grub_install: /opt/grub/sbin/grub-install
  cryptsetup: /opt/cryptsetup/bin/cryptsetup
grub_dir: /efi/grub
esp_dir: /efi
esp_device: /dev/nvme0n1p1
diag_dir: /var/log/cryptboot
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/opt/grub/sbin/grub-install", cfg.Tools.GrubInstall)
	assert.Equal(t, "/opt/cryptsetup/bin/cryptsetup", cfg.Tools.Cryptsetup)
	assert.Equal(t, "/efi/grub", cfg.GrubDir)
	assert.Equal(t, "/efi", cfg.ESPDir)
	assert.Equal(t, "/dev/nvme0n1p1", cfg.ESPDevice)
	assert.Equal(t, "/var/log/cryptboot", cfg.DiagDir)
}

func TestLoadExplicitPathMustExist(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope.yaml")
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tools: ["), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

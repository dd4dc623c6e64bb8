package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Tools   Tools  `yaml:"tools"`
	GrubDir string `yaml:"grub_dir,omitempty"`
	// ESPDir is where the EFI system partition is (or should be) mounted.
	ESPDir string `yaml:"esp_dir,omitempty"`
	// ESPDevice, when set, is the partition to mount at ESPDir if
	// nothing is mounted there yet.
	ESPDevice string `yaml:"esp_device,omitempty"`
	// DiagDir is where diagnostic logs land when an external tool fails.
	DiagDir string `yaml:"diag_dir,omitempty"`
}

// Tools names the external binaries. Overridable for distributions that
// prefix them (grub2-install) or ship them outside PATH.
type Tools struct {
	GrubInstall   string `yaml:"grub_install,omitempty"`
	GrubMkimage   string `yaml:"grub_mkimage,omitempty"`
	GrubBiosSetup string `yaml:"grub_bios_setup,omitempty"`
	Lsblk         string `yaml:"lsblk,omitempty"`
	Mdadm         string `yaml:"mdadm,omitempty"`
	Cryptsetup    string `yaml:"cryptsetup,omitempty"`
}

var defaultConfig = Config{
	Tools: Tools{
		GrubInstall:   "grub-install",
		GrubMkimage:   "grub-mkimage",
		GrubBiosSetup: "grub-bios-setup",
		Lsblk:         "lsblk",
		Mdadm:         "mdadm",
		Cryptsetup:    "cryptsetup",
	},
	GrubDir: "/boot/grub",
	ESPDir:  "/boot/efi",
	DiagDir: ".",
}

func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		// Try default locations
		candidates := []string{
			"/etc/cryptboot/config.yaml",
			filepath.Join(os.Getenv("HOME"), ".config/cryptboot/config.yaml"),
			"config.yaml",
		}
		for _, c := range candidates {
			if _, err := os.Stat(c); err == nil {
				path = c
				break
			}
		}
	}

	cfg := defaultConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			// A path the operator named must exist; discovered
			// candidates may have raced away.
			if explicit {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else {
			cfg = Config{}
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, err
			}
		}
	}

	// Apply defaults for anything the file left out
	if cfg.Tools.GrubInstall == "" {
		cfg.Tools.GrubInstall = defaultConfig.Tools.GrubInstall
	}
	if cfg.Tools.GrubMkimage == "" {
		cfg.Tools.GrubMkimage = defaultConfig.Tools.GrubMkimage
	}
	if cfg.Tools.GrubBiosSetup == "" {
		cfg.Tools.GrubBiosSetup = defaultConfig.Tools.GrubBiosSetup
	}
	if cfg.Tools.Lsblk == "" {
		cfg.Tools.Lsblk = defaultConfig.Tools.Lsblk
	}
	if cfg.Tools.Mdadm == "" {
		cfg.Tools.Mdadm = defaultConfig.Tools.Mdadm
	}
	if cfg.Tools.Cryptsetup == "" {
		cfg.Tools.Cryptsetup = defaultConfig.Tools.Cryptsetup
	}
	if cfg.GrubDir == "" {
		cfg.GrubDir = defaultConfig.GrubDir
	}
	if cfg.ESPDir == "" {
		cfg.ESPDir = defaultConfig.ESPDir
	}
	if cfg.DiagDir == "" {
		cfg.DiagDir = defaultConfig.DiagDir
	}

	return &cfg, nil
}

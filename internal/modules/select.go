// Package modules holds the policy that decides which GRUB modules a
// boot image needs to unlock and traverse a given device stack. The
// policy is deliberately fail-closed: an unrecognized layer, cipher,
// hash or KDF aborts the run, because a missing module only shows up
// as a machine that no longer boots.
package modules

import (
	"fmt"
	"strings"

	"github.com/cryptboot/cryptboot/internal/blockdev"
	"github.com/cryptboot/cryptboot/internal/luks"
)

// UnsupportedCipherError reports a cipher with no known GRUB crypto
// module.
type UnsupportedCipherError struct {
	Cipher string
}

func (e *UnsupportedCipherError) Error() string {
	return fmt.Sprintf("no GRUB module known for cipher %q", e.Cipher)
}

// UnsupportedHashError reports a hash with no known GRUB crypto module.
type UnsupportedHashError struct {
	Hash string
}

func (e *UnsupportedHashError) Error() string {
	return fmt.Sprintf("no GRUB module known for hash %q", e.Hash)
}

// cipherFamilies maps cipher-name prefixes to GRUB crypto modules.
// LUKS cipher specs look like "aes-xts-plain64" or "aes256-xts-plain64";
// the family prefix alone picks the module.
var cipherFamilies = []struct {
	prefix string
	module string
}{
	{"aes", "gcry_rijndael"},
	{"blowfish", "gcry_blowfish"},
	{"camellia", "gcry_camellia"},
	{"cast5", "gcry_cast5"},
	{"3des", "gcry_des"},
	{"des", "gcry_des"},
	{"serpent", "gcry_serpent"},
	{"twofish", "gcry_twofish"},
}

// hashModules maps LUKS hash names to GRUB crypto modules.
var hashModules = map[string]string{
	"crc32":     "gcry_crc",
	"md4":       "gcry_md4",
	"md5":       "gcry_md5",
	"ripemd160": "gcry_rmd160",
	"sha1":      "gcry_sha1",
	"sha256":    "gcry_sha256",
	"sha512":    "gcry_sha512",
	"whirlpool": "gcry_whirlpool",
}

// kdfModules maps key-derivation functions to GRUB modules. GRUB's
// firmware stage only implements PBKDF2.
var kdfModules = map[string]string{
	"pbkdf2": "pbkdf2",
}

// Select builds the final module set: the modules the installer already
// staged, then one module per stack layer, then the crypto modules the
// container's parameters demand. Insertion is idempotent throughout, so
// overlap between the three sources is harmless.
func Select(staged []string, stack []blockdev.Node, params luks.Params) (*Set, error) {
	set := NewSet()
	set.AddAll(staged)

	if err := addTopologyModules(set, stack); err != nil {
		return nil, err
	}

	// Generic unlocking support, regardless of stack shape.
	set.Add("cryptodisk")
	set.Add("luks2")

	if err := addCryptoModules(set, params); err != nil {
		return nil, err
	}

	return set, nil
}

// addTopologyModules walks the stack and adds the module each layer
// needs at boot time. The crypt layer is skipped: its support modules
// are unconditional and added by the caller.
func addTopologyModules(set *Set, stack []blockdev.Node) error {
	for _, node := range stack {
		switch node.Kind {
		case blockdev.KindDisk, blockdev.KindCrypt:
			// nothing to add
		case blockdev.KindPart:
			switch node.Scheme {
			case blockdev.SchemeGPT:
				set.Add("part_gpt")
			case blockdev.SchemeDOS:
				set.Add("part_msdos")
			default:
				return &blockdev.UnknownSchemeError{Path: node.Path, Scheme: string(node.Scheme)}
			}
		case blockdev.KindLVM:
			set.Add("lvm")
		case blockdev.KindRAID:
			if node.RAID == nil {
				return fmt.Errorf("RAID layer %s has no mdadm details", node.Path)
			}
			switch {
			case strings.HasPrefix(node.RAID.Metadata, "1."):
				set.Add("mdraid1x")
			case strings.HasPrefix(node.RAID.Metadata, "0.9"):
				set.Add("mdraid09")
			default:
				return &blockdev.UnknownRAIDMetadataError{Path: node.Path, Metadata: node.RAID.Metadata}
			}
			switch node.RAID.Level {
			case 5:
				set.Add("raid5rec")
			case 6:
				set.Add("raid6rec")
			}
		default:
			return &blockdev.UnknownKindError{Path: node.Path, Type: string(node.Kind)}
		}
	}
	return nil
}

// addCryptoModules maps the container's cipher, hash and KDF each to
// exactly one module.
func addCryptoModules(set *Set, params luks.Params) error {
	cipher := strings.ToLower(params.Cipher)
	matched := false
	for _, fam := range cipherFamilies {
		if strings.HasPrefix(cipher, fam.prefix) {
			set.Add(fam.module)
			matched = true
			break
		}
	}
	if !matched {
		return &UnsupportedCipherError{Cipher: params.Cipher}
	}

	hashModule, ok := hashModules[strings.ToLower(params.Hash)]
	if !ok {
		return &UnsupportedHashError{Hash: params.Hash}
	}
	set.Add(hashModule)

	kdfModule, ok := kdfModules[strings.ToLower(params.KDF)]
	if !ok {
		return &luks.UnsupportedKDFError{KDF: params.KDF}
	}
	set.Add(kdfModule)

	return nil
}

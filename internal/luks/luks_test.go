package luks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDump = `LUKS header information
Version:       	2
Epoch:         	3
Metadata area: 	16384 [bytes]
Keyslots area: 	16744448 [bytes]
UUID:          	2206bbea-f74b-4e7b-87b1-aa7fa1db4da6
Label:         	(no label)
Subsystem:     	(no subsystem)
Flags:       	(no flags)

Data segments:
  0: crypt
	offset: 16777216 [bytes]
	length: (whole device)
	cipher: aes-xts-plain64
	sector: 512 [bytes]

Keyslots:
  0: luks2
	Key:        512 bits
	Priority:   normal
	Cipher:     aes-xts-plain64
	Cipher key: 512 bits
	PBKDF:      pbkdf2
	Hash:       sha256
	Iterations: 2048000
	Salt:       a3 05 9b f0 ...
	AF stripes: 4000
	AF hash:    sha256
Tokens: (none)
Digests:
  0: pbkdf2
	Hash:       sha256
	Iterations: 117448
`

func TestParseDump(t *testing.T) {
	params, err := ParseDump("/dev/sda2", sampleDump)
	require.NoError(t, err)

	assert.Equal(t, "2206bbea-f74b-4e7b-87b1-aa7fa1db4da6", params.UUID.String())
	assert.Equal(t, "aes-xts-plain64", params.Cipher)
	assert.Equal(t, "sha256", params.Hash)
	assert.Equal(t, "pbkdf2", params.KDF)
}

func TestParseDumpMissingUUID(t *testing.T) {
	_, err := ParseDump("/dev/sda2", "LUKS header information\nVersion: 2\n")

	var parseErr *MetadataParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "UUID", parseErr.Field)
}

func TestParseDumpMissingCipher(t *testing.T) {
	_, err := ParseDump("/dev/sda2", "UUID: 2206bbea-f74b-4e7b-87b1-aa7fa1db4da6\n")

	var parseErr *MetadataParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "cipher", parseErr.Field)
}

func TestParseDumpMalformedUUID(t *testing.T) {
	_, err := ParseDump("/dev/sda2", "UUID: not-a-uuid\n")
	assert.Error(t, err)
}

func TestUUIDNoDashes(t *testing.T) {
	params, err := ParseDump("/dev/sda2", sampleDump)
	require.NoError(t, err)

	assert.Equal(t, "2206bbeaf74b4e7b87b1aa7fa1db4da6", params.UUIDNoDashes())
}

func TestCompatibleKDF(t *testing.T) {
	params := Params{KDF: "pbkdf2"}
	assert.NoError(t, params.CompatibleKDF())

	params.KDF = "argon2id"
	err := params.CompatibleKDF()

	var kdfErr *UnsupportedKDFError
	require.ErrorAs(t, err, &kdfErr)
	assert.Equal(t, "argon2id", kdfErr.KDF)
	assert.Contains(t, err.Error(), "luksConvertKey")
}

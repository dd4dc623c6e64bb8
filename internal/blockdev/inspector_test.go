package blockdev

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleMDDetail = `/dev/md0:
           Version : 1.2
     Creation Time : Tue Mar  3 11:02:41 2026
        Raid Level : raid5
        Array Size : 1953257472 (1862.77 GiB 2000.14 GB)
     Used Dev Size : 976628736 (931.39 GiB 1000.07 GB)
      Raid Devices : 3
     Total Devices : 3
       Persistence : Superblock is persistent
              UUID : 8c9a3f21:77b0d4e2:1f3a5b6c:9d8e7f60
`

func TestParseRAIDDetail(t *testing.T) {
	info, err := ParseRAIDDetail("/dev/md0", sampleMDDetail)
	require.NoError(t, err)

	assert.Equal(t, "1.2", info.Metadata)
	assert.Equal(t, 5, info.Level)
}

func TestParseRAIDDetailLegacyMetadata(t *testing.T) {
	detail := "/dev/md1:\n        Version : 0.90\n        Raid Level : raid1\n"

	info, err := ParseRAIDDetail("/dev/md1", detail)
	require.NoError(t, err)

	assert.Equal(t, "0.90", info.Metadata)
	assert.Equal(t, 1, info.Level)
}

func TestParseRAIDDetailMissingVersion(t *testing.T) {
	_, err := ParseRAIDDetail("/dev/md0", "Raid Level : raid5\n")
	assert.Error(t, err)
}

func TestParseRAIDDetailMissingLevel(t *testing.T) {
	_, err := ParseRAIDDetail("/dev/md0", "Version : 1.2\n")
	assert.Error(t, err)
}

// Older util-linux emits lsblk JSON sizes as strings, newer as
// numbers; both shapes must parse.
func TestLsblkOutputSizeAsString(t *testing.T) {
	raw := `{"blockdevices": [{"name": "cryptroot", "path": "/dev/mapper/cryptroot", "type": "crypt", "size": "511705088"}]}`

	var out lsblkOutput
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	require.Len(t, out.Blockdevices, 1)

	node, err := NewInspector().classify(out.Blockdevices[0])
	require.NoError(t, err)
	assert.Equal(t, uint64(511705088), node.Size)
}

func TestLsblkOutputSizeAsNumber(t *testing.T) {
	raw := `{"blockdevices": [{"name": "sda", "path": "/dev/sda", "type": "disk", "size": 512110190592}]}`

	var out lsblkOutput
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	require.Len(t, out.Blockdevices, 1)

	node, err := NewInspector().classify(out.Blockdevices[0])
	require.NoError(t, err)
	assert.Equal(t, uint64(512110190592), node.Size)
}

func TestClassifyUnknownKind(t *testing.T) {
	i := NewInspector()

	_, err := i.classify(lsblkDevice{Path: "/dev/loop0", Type: "loop"})

	var kindErr *UnknownKindError
	require.ErrorAs(t, err, &kindErr)
	assert.Equal(t, "loop", kindErr.Type)
	assert.Contains(t, err.Error(), "/dev/loop0")
}

func TestClassifySimpleKinds(t *testing.T) {
	i := NewInspector()

	node, err := i.classify(lsblkDevice{Path: "/dev/sda", Type: "disk", Size: "512110190592"})
	require.NoError(t, err)
	assert.Equal(t, KindDisk, node.Kind)
	assert.Equal(t, uint64(512110190592), node.Size)

	node, err = i.classify(lsblkDevice{Path: "/dev/mapper/vg-root", Type: "lvm"})
	require.NoError(t, err)
	assert.Equal(t, KindLVM, node.Kind)

	node, err = i.classify(lsblkDevice{Path: "/dev/mapper/cryptroot", Type: "crypt"})
	require.NoError(t, err)
	assert.Equal(t, KindCrypt, node.Kind)
}

func TestSummary(t *testing.T) {
	stack := []Node{
		{Path: "/dev/mapper/cryptroot", Kind: KindCrypt, Size: 511000000000, FSType: "ext4"},
		{Path: "/dev/sda2", Kind: KindPart, Size: 511500000000, Scheme: SchemeGPT},
		{Path: "/dev/sda", Kind: KindDisk, Size: 512110190592},
	}

	lines := Summary(stack)
	require.Len(t, lines, 3)

	assert.Contains(t, lines[0], "/dev/mapper/cryptroot")
	assert.Contains(t, lines[0], "ext4")
	assert.Contains(t, lines[1], "table=gpt")
	assert.Contains(t, lines[2], "disk")
}

func TestSummaryRAIDLine(t *testing.T) {
	stack := []Node{
		{Path: "/dev/md0", Kind: KindRAID, Size: 2000000000000, RAID: &RAIDInfo{Metadata: "1.2", Level: 6}},
	}

	lines := Summary(stack)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "raid6 metadata=1.2")
}

func TestNodeString(t *testing.T) {
	n := Node{Path: "/dev/sda2", Kind: KindPart}
	assert.Equal(t, "/dev/sda2 (part)", n.String())
}

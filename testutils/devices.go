package testutils

import (
	"testing"

	"github.com/veronicapr/sofs14/common"
	"github.com/veronicapr/sofs14/device"
	"github.com/veronicapr/sofs14/mkfs"
	"github.com/veronicapr/sofs14/sofs"
)

// The geometry every test volume uses unless stated otherwise: a 200
// block device formatted with 56 inodes, which yields 7 inode table
// blocks and a 48 cluster data zone.
const (
	TestBlocks = 200
	TestInodes = 56
)

// NewTestDevice creates a zero-filled ramdisk of the given number of
// blocks.
func NewTestDevice(test *testing.T, blocks int) device.RandDevice {
	dev, err := device.NewRamdiskDeviceBlocks(blocks, common.BLOCK_SIZE)
	if err != nil {
		FatalHere(test, "Failed when creating ramdisk device: %s", err)
	}
	return dev
}

// FormatDevice creates a ramdisk and lays a fresh file system on it.
func FormatDevice(test *testing.T, blocks, inodes, uid, gid int) device.RandDevice {
	dev := NewTestDevice(test, blocks)
	err := mkfs.Format(dev, mkfs.Options{
		Name:   "testvol",
		Inodes: uint32(inodes),
		Uid:    uid,
		Gid:    gid,
	})
	if err != nil {
		FatalHere(test, "Failed when formatting device: %s", err)
	}
	return dev
}

// OpenVolume formats a ramdisk with the standard test geometry and
// mounts it with the given identity.
func OpenVolume(test *testing.T, uid, gid int) *sofs.Volume {
	dev := FormatDevice(test, TestBlocks, TestInodes, uid, gid)
	vol, err := sofs.Mount(dev, sofs.MountOptions{Uid: uid, Gid: gid})
	if err != nil {
		FatalHere(test, "Failed when mounting volume: %s", err)
	}
	return vol
}

// OpenRootVolume is OpenVolume for the superuser, the common case.
func OpenRootVolume(test *testing.T) *sofs.Volume {
	return OpenVolume(test, 0, 0)
}

// CheckClean fails the test when the exhaustive volume check reports
// any structural problem.
func CheckClean(test *testing.T, vol *sofs.Volume) {
	for _, p := range vol.CheckVolume() {
		ErrorHere(test, "volume inconsistency: %s", p)
	}
}

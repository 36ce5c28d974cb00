package sofs_test

import (
	"testing"

	"github.com/veronicapr/sofs14/common"
	"github.com/veronicapr/sofs14/sofs"
	. "github.com/veronicapr/sofs14/testutils"
)

// Test that a freshly formatted volume mounts with the expected
// geometry and passes the exhaustive structural check.
func TestMount(test *testing.T) {
	vol := OpenRootVolume(test)

	sb := vol.SuperBlock()
	if sb.NTotal != 200 {
		ErrorHere(test, "Data mismatch for nTotal got %d, expected %d", sb.NTotal, 200)
	}
	if sb.ITotal != 56 || sb.ITableSize != 7 {
		ErrorHere(test, "Bad inode table geometry: %d inodes in %d blocks", sb.ITotal, sb.ITableSize)
	}
	if sb.IFree != 55 {
		ErrorHere(test, "Data mismatch for iFree got %d, expected %d", sb.IFree, 55)
	}
	if sb.DZoneStart != 8 || sb.DZoneTotal != 48 || sb.DZoneFree != 47 {
		ErrorHere(test, "Bad data zone geometry: start %d total %d free %d",
			sb.DZoneStart, sb.DZoneTotal, sb.DZoneFree)
	}
	if !vol.WasCleanlyUnmounted() {
		ErrorHere(test, "Fresh volume reported an unclean shutdown")
	}

	CheckClean(test, vol)
}

// Test that the mount status round-trips: a clean unmount restores
// PRU, an abandoned mount leaves NPRU behind.
func TestMountStatus(test *testing.T) {
	dev := FormatDevice(test, TestBlocks, TestInodes, 0, 0)

	vol, err := sofs.Mount(dev, sofs.MountOptions{})
	if err != nil {
		FatalHere(test, "Failed when mounting: %s", err)
	}
	if err := vol.Unmount(); err != nil {
		FatalHere(test, "Failed when unmounting: %s", err)
	}

	vol, err = sofs.Mount(dev, sofs.MountOptions{})
	if err != nil {
		FatalHere(test, "Failed when remounting: %s", err)
	}
	if !vol.WasCleanlyUnmounted() {
		ErrorHere(test, "Clean unmount was not recorded")
	}

	// Walk away without unmounting; the next mount must notice.
	vol, err = sofs.Mount(dev, sofs.MountOptions{})
	if err != nil {
		FatalHere(test, "Failed when remounting: %s", err)
	}
	if vol.WasCleanlyUnmounted() {
		ErrorHere(test, "Unclean shutdown went unnoticed")
	}
}

// Test that an unformatted device is rejected.
func TestMountBadMagic(test *testing.T) {
	dev := NewTestDevice(test, TestBlocks)
	if _, err := sofs.Mount(dev, sofs.MountOptions{}); err != common.ELIBBAD {
		ErrorHere(test, "Expected ELIBBAD mounting garbage, got %v", err)
	}
}

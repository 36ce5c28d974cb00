package sofs_test

import (
	"testing"

	"github.com/veronicapr/sofs14/common"
	"github.com/veronicapr/sofs14/sofs"
	. "github.com/veronicapr/sofs14/testutils"
)

// Test that GET is pure and reports holes as NULL_CLUSTER.
func TestHandleFileClusterGet(test *testing.T) {
	vol := OpenRootVolume(test)
	nInode, _ := vol.AllocInode(common.INODE_FILE)

	for _, ind := range []uint32{0, common.N_DIRECT, common.N_DIRECT + common.RPC, common.MAX_FILE_CLUSTERS - 1} {
		got, err := vol.HandleFileCluster(nInode, ind, sofs.GET)
		if err != nil {
			FatalHere(test, "GET at %d failed: %s", ind, err)
		}
		if got != common.NULL_CLUSTER {
			ErrorHere(test, "GET at %d on an empty file got %d", ind, got)
		}
	}

	nClust, err := vol.HandleFileCluster(nInode, 0, sofs.ALLOC)
	if err != nil {
		FatalHere(test, "ALLOC at 0 failed: %s", err)
	}
	for i := 0; i < 3; i++ {
		got, _ := vol.HandleFileCluster(nInode, 0, sofs.GET)
		if got != nClust {
			ErrorHere(test, "Repeated GET got %d, expected %d", got, nClust)
		}
	}
	if _, err := vol.HandleFileCluster(nInode, common.MAX_FILE_CLUSTERS, sofs.GET); err != common.EINVAL {
		ErrorHere(test, "GET past the index ceiling got %v, expected EINVAL", err)
	}
}

// Test direct allocation: only d[0] and the cluster count change, a
// second allocation at the same index is refused.
func TestAllocDirect(test *testing.T) {
	vol := OpenRootVolume(test)
	nInode, _ := vol.AllocInode(common.INODE_FILE)

	nClust, err := vol.HandleFileCluster(nInode, 0, sofs.ALLOC)
	if err != nil {
		FatalHere(test, "ALLOC at 0 failed: %s", err)
	}

	ip := readInode(test, vol, nInode)
	if ip.D[0] != nClust || ip.CluCount != 1 {
		ErrorHere(test, "After ALLOC d[0] is %d, cluCount %d", ip.D[0], ip.CluCount)
	}
	for i := 1; i < common.N_DIRECT; i++ {
		if ip.D[i] != common.NULL_CLUSTER {
			ErrorHere(test, "ALLOC at 0 touched d[%d]", i)
		}
	}
	if ip.I1 != common.NULL_CLUSTER || ip.I2 != common.NULL_CLUSTER {
		ErrorHere(test, "ALLOC at 0 touched the indirect references")
	}

	if _, err := vol.HandleFileCluster(nInode, 0, sofs.ALLOC); err != common.EDCARDYIL {
		ErrorHere(test, "Second ALLOC at 0 got %v, expected EDCARDYIL", err)
	}

	CheckClean(test, vol)
}

// Test single-indirect allocation and the collapse of the reference
// cluster when its last slot clears.
func TestAllocSIndirect(test *testing.T) {
	vol := OpenRootVolume(test)
	nInode, _ := vol.AllocInode(common.INODE_FILE)

	nClust, err := vol.HandleFileCluster(nInode, common.N_DIRECT, sofs.ALLOC)
	if err != nil {
		FatalHere(test, "ALLOC at N_DIRECT failed: %s", err)
	}

	ip := readInode(test, vol, nInode)
	if ip.I1 == common.NULL_CLUSTER {
		ErrorHere(test, "ALLOC did not materialize i1")
	}
	if ip.CluCount != 2 {
		ErrorHere(test, "cluCount is %d, expected 2 (data + reference)", ip.CluCount)
	}
	got, _ := vol.HandleFileCluster(nInode, common.N_DIRECT, sofs.GET)
	if got != nClust {
		ErrorHere(test, "GET got %d, expected %d", got, nClust)
	}

	// FREE_CLEAN empties the only slot, so i1 must collapse.
	if _, err := vol.HandleFileCluster(nInode, common.N_DIRECT, sofs.FREE_CLEAN); err != nil {
		FatalHere(test, "FREE_CLEAN failed: %s", err)
	}
	ip = readInode(test, vol, nInode)
	if ip.I1 != common.NULL_CLUSTER || ip.CluCount != 0 {
		ErrorHere(test, "After FREE_CLEAN i1 is %d, cluCount %d", ip.I1, ip.CluCount)
	}

	if _, err := vol.HandleFileCluster(nInode, common.N_DIRECT, sofs.FREE_CLEAN); err != common.EDCNOTIL {
		ErrorHere(test, "FREE_CLEAN on a hole got %v, expected EDCNOTIL", err)
	}

	CheckClean(test, vol)
}

// Test the last addressable index: the double-indirect tree is built
// level by level and the data cluster links with prev only.
func TestAllocDoubleIndirectBoundary(test *testing.T) {
	vol := OpenRootVolume(test)
	nInode, _ := vol.AllocInode(common.INODE_FILE)

	last := uint32(common.MAX_FILE_CLUSTERS - 1)
	nClust, err := vol.HandleFileCluster(nInode, last, sofs.ALLOC)
	if err != nil {
		FatalHere(test, "ALLOC at the boundary failed: %s", err)
	}

	ip := readInode(test, vol, nInode)
	if ip.I2 == common.NULL_CLUSTER {
		ErrorHere(test, "ALLOC did not materialize i2")
	}
	// One data cluster, i2, and one inner reference cluster.
	if ip.CluCount != 3 {
		ErrorHere(test, "cluCount is %d, expected 3", ip.CluCount)
	}
	got, _ := vol.HandleFileCluster(nInode, last, sofs.GET)
	if got != nClust {
		ErrorHere(test, "GET got %d, expected %d", got, nClust)
	}

	if _, err := vol.HandleFileCluster(nInode, last, sofs.ALLOC); err != common.EDCARDYIL {
		ErrorHere(test, "Second ALLOC at the boundary got %v, expected EDCARDYIL", err)
	}

	// Tear the whole tree down again.
	if _, err := vol.HandleFileCluster(nInode, last, sofs.FREE_CLEAN); err != nil {
		FatalHere(test, "FREE_CLEAN at the boundary failed: %s", err)
	}
	ip = readInode(test, vol, nInode)
	if ip.I2 != common.NULL_CLUSTER || ip.CluCount != 0 {
		ErrorHere(test, "After FREE_CLEAN i2 is %d, cluCount %d", ip.I2, ip.CluCount)
	}

	CheckClean(test, vol)
}

// Test that a sparse file links clusters only across adjacent logical
// indices, and that filling the hole stitches the chain together. The
// chain shape itself is verified by the volume check.
func TestSparseChainStitching(test *testing.T) {
	vol := OpenRootVolume(test)
	nInode, _ := vol.AllocInode(common.INODE_FILE)

	if _, err := vol.HandleFileCluster(nInode, 0, sofs.ALLOC); err != nil {
		FatalHere(test, "ALLOC at 0 failed: %s", err)
	}
	if _, err := vol.HandleFileCluster(nInode, 2, sofs.ALLOC); err != nil {
		FatalHere(test, "ALLOC at 2 failed: %s", err)
	}
	CheckClean(test, vol)

	if _, err := vol.HandleFileCluster(nInode, 1, sofs.ALLOC); err != nil {
		FatalHere(test, "ALLOC at 1 failed: %s", err)
	}
	ip := readInode(test, vol, nInode)
	if ip.CluCount != 3 {
		ErrorHere(test, "cluCount is %d, expected 3", ip.CluCount)
	}
	CheckClean(test, vol)
}

// Test the bulk operation over a file spanning the direct and
// single-indirect regions.
func TestHandleFileClusters(test *testing.T) {
	vol := OpenRootVolume(test)
	nInode, _ := vol.AllocInode(common.INODE_FILE)

	for _, ind := range []uint32{0, 1, common.N_DIRECT, common.N_DIRECT + 1} {
		if _, err := vol.HandleFileCluster(nInode, ind, sofs.ALLOC); err != nil {
			FatalHere(test, "ALLOC at %d failed: %s", ind, err)
		}
	}
	ip := readInode(test, vol, nInode)
	if ip.CluCount != 5 {
		ErrorHere(test, "cluCount is %d, expected 5", ip.CluCount)
	}

	// Release everything from index 1 up; only d[0] survives.
	if err := vol.HandleFileClusters(nInode, 1, sofs.FREE_CLEAN); err != nil {
		FatalHere(test, "Bulk FREE_CLEAN failed: %s", err)
	}
	ip = readInode(test, vol, nInode)
	if ip.CluCount != 1 || ip.D[0] == common.NULL_CLUSTER {
		ErrorHere(test, "After bulk release cluCount %d, d[0] %d", ip.CluCount, ip.D[0])
	}
	if ip.I1 != common.NULL_CLUSTER {
		ErrorHere(test, "Bulk release left i1 = %d", ip.I1)
	}

	if err := vol.HandleFileClusters(nInode, 0, sofs.FREE_CLEAN); err != nil {
		FatalHere(test, "Final bulk FREE_CLEAN failed: %s", err)
	}
	ip = readInode(test, vol, nInode)
	if ip.CluCount != 0 {
		ErrorHere(test, "cluCount is %d after full release", ip.CluCount)
	}
	if vol.SuperBlock().DZoneFree != freeClusters {
		ErrorHere(test, "dZoneFree is %d, expected %d", vol.SuperBlock().DZoneFree, freeClusters)
	}

	CheckClean(test, vol)
}

package sofs_test

import (
	"bytes"
	"testing"

	"github.com/veronicapr/sofs14/common"
	. "github.com/veronicapr/sofs14/testutils"
)

// Test that a written payload reads back identical and that the write
// allocated the backing cluster lazily.
func TestWriteReadRoundTrip(test *testing.T) {
	vol := OpenRootVolume(test)
	nInode, _ := vol.AllocInode(common.INODE_FILE)

	var out common.DataClust
	for i := range out.Info {
		out.Info[i] = byte(i % 251)
	}
	if err := vol.WriteFileCluster(nInode, 0, &out); err != nil {
		FatalHere(test, "Failed writing file cluster: %s", err)
	}

	ip := readInode(test, vol, nInode)
	if ip.CluCount != 1 {
		ErrorHere(test, "Write did not allocate: cluCount %d", ip.CluCount)
	}

	var in common.DataClust
	if err := vol.ReadFileCluster(nInode, 0, &in); err != nil {
		FatalHere(test, "Failed reading file cluster: %s", err)
	}
	if !bytes.Equal(in.Info[:], out.Info[:]) {
		ErrorHere(test, "Payload mismatch after round trip")
	}

	CheckClean(test, vol)
}

// Test that holes read back as zeros without allocating anything.
func TestSparseRead(test *testing.T) {
	vol := OpenRootVolume(test)
	nInode, _ := vol.AllocInode(common.INODE_FILE)

	var dc common.DataClust
	dc.Info[0] = 0xAA
	if err := vol.ReadFileCluster(nInode, 3, &dc); err != nil {
		FatalHere(test, "Failed reading a hole: %s", err)
	}
	for i, b := range dc.Info {
		if b != 0 {
			ErrorHere(test, "Hole read returned %#x at offset %d", b, i)
			break
		}
	}
	if readInode(test, vol, nInode).CluCount != 0 {
		ErrorHere(test, "Reading a hole allocated a cluster")
	}
}

// Test a write landing in the single-indirect region: the reference
// cluster is materialized on the way.
func TestWriteIndirectRegion(test *testing.T) {
	vol := OpenRootVolume(test)
	nInode, _ := vol.AllocInode(common.INODE_FILE)

	var out common.DataClust
	copy(out.Info[:], "beyond the direct references")
	ind := uint32(common.N_DIRECT + 3)
	if err := vol.WriteFileCluster(nInode, ind, &out); err != nil {
		FatalHere(test, "Failed writing file cluster: %s", err)
	}

	ip := readInode(test, vol, nInode)
	if ip.I1 == common.NULL_CLUSTER || ip.CluCount != 2 {
		ErrorHere(test, "Indirect write: i1 %d, cluCount %d", ip.I1, ip.CluCount)
	}

	var in common.DataClust
	if err := vol.ReadFileCluster(nInode, ind, &in); err != nil {
		FatalHere(test, "Failed reading file cluster: %s", err)
	}
	if !bytes.Equal(in.Info[:], out.Info[:]) {
		ErrorHere(test, "Payload mismatch after round trip")
	}

	CheckClean(test, vol)
}

// Test argument validation on the cluster I/O surface.
func TestFileClusterIOValidation(test *testing.T) {
	vol := OpenRootVolume(test)
	var dc common.DataClust

	if err := vol.ReadFileCluster(TestInodes, 0, &dc); err != common.EINVAL {
		ErrorHere(test, "Bad inode number got %v, expected EINVAL", err)
	}
	if err := vol.ReadFileCluster(0, common.MAX_FILE_CLUSTERS, &dc); err != common.EINVAL {
		ErrorHere(test, "Bad cluster index got %v, expected EINVAL", err)
	}
	if err := vol.WriteFileCluster(0, common.MAX_FILE_CLUSTERS, &dc); err != common.EINVAL {
		ErrorHere(test, "Bad cluster index got %v, expected EINVAL", err)
	}
	if err := vol.ReadFileCluster(0, 0, nil); err != common.EINVAL {
		ErrorHere(test, "Nil buffer got %v, expected EINVAL", err)
	}

	// A free inode cannot be read through the file surface.
	if err := vol.ReadFileCluster(9, 0, &dc); err != common.EIUININVAL {
		ErrorHere(test, "Free inode got %v, expected EIUININVAL", err)
	}
}

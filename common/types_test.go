package common

import (
	"bytes"
	"testing"
)

// The layout constants are interlocked; if one drifts, the volume
// format silently changes.
func TestLayoutConstants(t *testing.T) {
	if CLUSTER_SIZE != 2048 {
		t.Errorf("CLUSTER_SIZE is %d", CLUSTER_SIZE)
	}
	if IPB != 8 {
		t.Errorf("IPB is %d", IPB)
	}
	if BSLPC != 2036 {
		t.Errorf("BSLPC is %d", BSLPC)
	}
	if RPC != 509 {
		t.Errorf("RPC is %d", RPC)
	}
	if DPC != 31 {
		t.Errorf("DPC is %d", DPC)
	}
	if MAX_NAME != 59 {
		t.Errorf("MAX_NAME is %d", MAX_NAME)
	}
	if MAX_FILE_CLUSTERS != 8+509+509*509 {
		t.Errorf("MAX_FILE_CLUSTERS is %d", MAX_FILE_CLUSTERS)
	}
}

// Test that the superblock codec is block sized and lossless.
func TestSuperBlockCodec(t *testing.T) {
	var sb SuperBlock
	sb.Magic = MAGIC_NUMBER
	sb.Version = VERSION_NUMBER
	sb.SetVolumeName("codec-test")
	sb.NTotal = 200
	sb.ITableStart = 1
	sb.ITableSize = 7
	sb.ITotal = 56
	sb.IFree = 55
	sb.IHead = 1
	sb.ITail = 55
	sb.DZoneStart = 8
	sb.DZoneTotal = 48
	sb.DZoneFree = 47
	sb.DHead = 1
	sb.DTail = 47
	sb.DZoneRetriev.CacheIdx = DZONE_CACHE_SIZE
	sb.DZoneInsert.CacheIdx = 3
	for i := range sb.DZoneInsert.Cache {
		sb.DZoneInsert.Cache[i] = NULL_CLUSTER
	}
	sb.DZoneInsert.Cache[0] = 12

	buf := EncodeSuperBlock(&sb)
	if len(buf) != BLOCK_SIZE {
		t.Fatalf("encoded superblock is %d bytes", len(buf))
	}

	var back SuperBlock
	if err := DecodeSuperBlock(&back, buf); err != nil {
		t.Fatalf("decoding: %s", err)
	}
	if back != sb {
		t.Errorf("superblock did not round trip")
	}
	if back.VolumeName() != "codec-test" {
		t.Errorf("volume name is %q", back.VolumeName())
	}
}

// Test that an inode block encodes to exactly one device block.
func TestInodeBlockCodec(t *testing.T) {
	var blk [IPB]Inode
	blk[0].Mode = INODE_DIR | 0755
	blk[0].RefCount = 2
	blk[0].Size = DPC * DIRENT_SIZE
	blk[3].Mode = INODE_FREE
	blk[3].VD1 = 4
	blk[3].VD2 = 2

	buf := EncodeInodeBlock(&blk)
	if len(buf) != BLOCK_SIZE {
		t.Fatalf("encoded inode block is %d bytes", len(buf))
	}

	var back [IPB]Inode
	if err := DecodeInodeBlock(&back, buf); err != nil {
		t.Fatalf("decoding: %s", err)
	}
	if back != blk {
		t.Errorf("inode block did not round trip")
	}
}

// Test the three views over a data cluster body.
func TestDataClustViews(t *testing.T) {
	var dc DataClust
	dc.Prev = 3
	dc.Next = NULL_CLUSTER
	dc.Stat = 7

	dc.FillRefs()
	if dc.Ref(0) != NULL_CLUSTER || dc.Ref(RPC-1) != NULL_CLUSTER {
		t.Errorf("FillRefs left populated slots")
	}
	dc.SetRef(5, 42)
	if dc.Ref(5) != 42 {
		t.Errorf("reference slot did not round trip")
	}

	var de DirEntry
	de.SetEntryName("hello")
	de.NInode = 9
	dc.PutDirEntryAt(2, de)
	got := dc.DirEntryAt(2)
	if got.EntryName() != "hello" || got.NInode != 9 {
		t.Errorf("directory entry did not round trip: %q -> %d", got.EntryName(), got.NInode)
	}

	buf := EncodeDataClust(&dc)
	if len(buf) != CLUSTER_SIZE {
		t.Fatalf("encoded cluster is %d bytes", len(buf))
	}
	var back DataClust
	DecodeDataClust(&back, buf)
	if back != dc {
		t.Errorf("cluster did not round trip")
	}
}

// Test the three states a directory entry moves through.
func TestDirEntryStates(t *testing.T) {
	var de DirEntry
	de.Clear()
	if !de.IsClean() || de.IsInUse() || de.IsDeleted() {
		t.Errorf("cleared entry has the wrong state")
	}
	if de.NInode != NULL_INODE {
		t.Errorf("cleared entry keeps inode %d", de.NInode)
	}

	de.SetEntryName("example")
	de.NInode = 5
	if !de.IsInUse() || de.IsClean() || de.IsDeleted() {
		t.Errorf("named entry has the wrong state")
	}

	de.MarkDeleted()
	if !de.IsDeleted() || de.IsInUse() || de.IsClean() {
		t.Errorf("deleted entry has the wrong state")
	}
	if de.Name[MAX_NAME] != 'e' {
		t.Errorf("deleted entry parked %q, expected 'e'", de.Name[MAX_NAME])
	}
	if de.NInode != 5 {
		t.Errorf("deleted entry lost its inode reference")
	}
	if de.EntryName() != "" {
		t.Errorf("deleted entry still reads as %q", de.EntryName())
	}

	// A name of the maximum length still terminates.
	long := bytes.Repeat([]byte{'z'}, MAX_NAME)
	de.Clear()
	de.SetEntryName(string(long))
	if de.EntryName() != string(long) {
		t.Errorf("max length name did not round trip")
	}
	if !de.IsInUse() {
		t.Errorf("max length entry not in use")
	}
}

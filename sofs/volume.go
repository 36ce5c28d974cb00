// Package sofs implements the SOFS14 storage engine: the superblock
// manager, the inode table with its free-inode list, the free-cluster
// repository with its retrieval and insertion caches, the file-cluster
// reference index, file cluster I/O and the directory operations built
// on top of those primitives.
//
// All state lives in a Volume, acquired with Mount and released with
// Unmount. Operations are single-threaded: a volume must not be shared
// between goroutines without external locking, and callers must not
// nest operations that mutate the same inode.
package sofs

import (
	"os"
	"time"

	"github.com/veronicapr/sofs14/bcache"
	"github.com/veronicapr/sofs14/common"
	"github.com/veronicapr/sofs14/device"
)

// Inode status selectors for ReadInode/WriteInode.
const (
	IUIN uint32 = 0 // inode in use
	FDIN uint32 = 1 // free inode in the dirty state
)

const noBlock = ^uint32(0)

// DefaultCacheSlots is the block cache size used when MountOptions
// leaves it unset.
const DefaultCacheSlots = 32

// MountOptions carries the caller identity and cache geometry for a
// mount. Uid and Gid are taken as given; the zero value is the
// superuser. CurrentUser fills them from the process credentials.
type MountOptions struct {
	Uid        int
	Gid        int
	CacheSlots int
}

// CurrentUser returns mount options holding the calling process uid
// and gid.
func CurrentUser() MountOptions {
	return MountOptions{Uid: os.Getuid(), Gid: os.Getgid()}
}

// Volume is the in-core state of a mounted SOFS14 volume: the device,
// the buffered block I/O facade, the single mutable superblock image
// and the one-block inode table cache.
type Volume struct {
	dev   device.RandDevice
	cache *bcache.LRUCache

	sb common.SuperBlock

	itBlk    [common.IPB]common.Inode // decoded inode table block
	itBlkNum uint32                   // table-relative block number, noBlock when empty

	prevMStat uint32 // mount status found on mount

	uid uint16
	gid uint16
}

// Mount reads and checks the superblock of dev and returns a Volume
// ready for operation. The mount status is set to NPRU on the device;
// a clean Unmount restores it.
func Mount(dev device.RandDevice, opts MountOptions) (*Volume, error) {
	slots := opts.CacheSlots
	if slots <= 0 {
		slots = DefaultCacheSlots
	}
	v := &Volume{
		dev:      dev,
		cache:    bcache.NewLRUCache(dev, slots),
		itBlkNum: noBlock,
		uid:      uint16(opts.Uid),
		gid:      uint16(opts.Gid),
	}

	if err := v.loadSuperBlock(); err != nil {
		return nil, err
	}
	if v.sb.Magic != common.MAGIC_NUMBER || v.sb.Version != common.VERSION_NUMBER {
		return nil, common.ELIBBAD
	}
	if err := v.qCheckSuperBlock(&v.sb); err != nil {
		return nil, err
	}

	v.prevMStat = v.sb.MStat
	v.sb.MStat = common.NPRU
	if err := v.storeSuperBlock(); err != nil {
		return nil, err
	}
	// The unclean-shutdown marker must be durable right away.
	if err := v.cache.Flush(); err != nil {
		return nil, err
	}
	return v, nil
}

// WasCleanlyUnmounted reports whether the volume carried the PRU flag
// when it was mounted; false signals a prior unclean shutdown.
func (v *Volume) WasCleanlyUnmounted() bool {
	return v.prevMStat == common.PRU
}

// Unmount marks the volume properly unmounted, flushes the block cache
// and closes the device.
func (v *Volume) Unmount() error {
	if err := v.loadSuperBlock(); err != nil {
		return err
	}
	v.sb.MStat = common.PRU
	if err := v.storeSuperBlock(); err != nil {
		return err
	}
	return v.cache.Close()
}

// SuperBlock yields the mutable in-memory superblock image. Callers
// that modify it must pair the modification with StoreSuperBlock.
func (v *Volume) SuperBlock() *common.SuperBlock {
	return &v.sb
}

// StoreSuperBlock writes the in-memory superblock image back to the
// device block 0.
func (v *Volume) StoreSuperBlock() error {
	return v.storeSuperBlock()
}

// loadSuperBlock refreshes the in-memory image from block 0. Unstored
// modifications are discarded, so every mutation must be followed by a
// store before the next load.
func (v *Volume) loadSuperBlock() error {
	buf := make([]byte, common.BLOCK_SIZE)
	if err := v.cache.ReadBlock(0, buf); err != nil {
		return err
	}
	return common.DecodeSuperBlock(&v.sb, buf)
}

func (v *Volume) storeSuperBlock() error {
	return v.cache.WriteBlock(0, common.EncodeSuperBlock(&v.sb))
}

// convertRefInT translates an inode number into the table-relative
// block number and the offset of the inode within that block.
func convertRefInT(nInode uint32) (nBlk uint32, offset uint32) {
	return nInode / common.IPB, nInode % common.IPB
}

// loadBlockInT loads and decodes the given table-relative inode block
// into the one-block cache. Pointers into the cache are invalidated by
// the next load.
func (v *Volume) loadBlockInT(nBlk uint32) error {
	buf := make([]byte, common.BLOCK_SIZE)
	if err := v.cache.ReadBlock(v.sb.ITableStart+nBlk, buf); err != nil {
		return err
	}
	if err := common.DecodeInodeBlock(&v.itBlk, buf); err != nil {
		return err
	}
	v.itBlkNum = nBlk
	return nil
}

// getBlockInT yields the currently loaded inode table block.
func (v *Volume) getBlockInT() *[common.IPB]common.Inode {
	return &v.itBlk
}

// storeBlockInT writes the currently loaded inode table block back.
func (v *Volume) storeBlockInT() error {
	if v.itBlkNum == noBlock {
		return common.ELIBBAD
	}
	return v.cache.WriteBlock(v.sb.ITableStart+v.itBlkNum, common.EncodeInodeBlock(&v.itBlk))
}

// clusterFBlock returns the physical number of the first block of the
// data cluster with the given logical number.
func (v *Volume) clusterFBlock(nClust uint32) uint32 {
	return v.sb.DZoneStart + nClust*common.BLOCKS_PER_CLUSTER
}

// readCacheCluster reads a whole data cluster, given the physical
// number of its first block.
func (v *Volume) readCacheCluster(fblock uint32, dc *common.DataClust) error {
	buf := make([]byte, common.CLUSTER_SIZE)
	if err := v.cache.ReadCluster(fblock, buf); err != nil {
		return err
	}
	common.DecodeDataClust(dc, buf)
	return nil
}

// writeCacheCluster writes a whole data cluster, given the physical
// number of its first block.
func (v *Volume) writeCacheCluster(fblock uint32, dc *common.DataClust) error {
	return v.cache.WriteCluster(fblock, common.EncodeDataClust(dc))
}

func now() uint32 {
	return uint32(time.Now().Unix())
}

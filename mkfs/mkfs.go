// Package mkfs writes a fresh SOFS14 layout onto a block device: the
// superblock, the table of inodes with every inode but the root free,
// the root directory content and the general repository of free data
// clusters.
package mkfs

import (
	"time"

	"github.com/google/uuid"
	"github.com/veronicapr/sofs14/bcache"
	"github.com/veronicapr/sofs14/common"
	"github.com/veronicapr/sofs14/device"
)

func now() uint32 {
	return uint32(time.Now().Unix())
}

// Options control a format run. A zero Inodes picks the default of one
// inode per eight blocks; an empty Name gets a generated volume name.
type Options struct {
	Name   string `yaml:"name"`
	Inodes uint32 `yaml:"inodes"`
	Zero   bool   `yaml:"zero"`

	Uid int `yaml:"-"`
	Gid int `yaml:"-"`
}

// Geometry is the computed on-disk arrangement for a device.
type Geometry struct {
	NTotal     uint32 // device size in blocks
	ITotal     uint32 // inodes, rounded up to whole table blocks
	ITableSize uint32 // inode table size in blocks
	DZoneTotal uint32 // data zone size in clusters
}

// ComputeGeometry derives the layout for a device of ntotal blocks and
// the requested number of inodes. The inode count is rounded up so the
// table occupies whole blocks; the data zone takes the remaining
// blocks in whole clusters.
func ComputeGeometry(ntotal uint32, itotal uint32) (Geometry, error) {
	if itotal == 0 {
		itotal = ntotal / 8
	}

	var iblktotal uint32
	if itotal%common.IPB == 0 {
		iblktotal = itotal / common.IPB
	} else {
		iblktotal = itotal/common.IPB + 1
	}
	itotal = iblktotal * common.IPB

	if ntotal < 1+iblktotal {
		return Geometry{}, common.EINVAL
	}
	nclusttotal := (ntotal - 1 - iblktotal) / common.BLOCKS_PER_CLUSTER

	// A volume needs at least two blocks of inodes and, besides the
	// root directory's cluster, at least one cluster to allocate.
	if itotal < 2*common.IPB || nclusttotal < 2 {
		return Geometry{}, common.EINVAL
	}

	return Geometry{
		NTotal:     ntotal,
		ITotal:     itotal,
		ITableSize: iblktotal,
		DZoneTotal: nclusttotal,
	}, nil
}

// Format lays a SOFS14 file system over the whole device. The magic
// number is written last, so an interrupted format leaves a volume
// that can never be mounted.
func Format(dev device.RandDevice, opts Options) error {
	size := dev.Size()
	if size <= 0 || size%common.BLOCK_SIZE != 0 {
		return common.EINVAL
	}
	ntotal := uint32(size / common.BLOCK_SIZE)

	geo, err := ComputeGeometry(ntotal, opts.Inodes)
	if err != nil {
		return err
	}

	name := opts.Name
	if name == "" {
		name = "sofs14-" + uuid.NewString()[:8]
	}

	cache := bcache.NewLRUCache(dev, 8)

	var sb common.SuperBlock
	fillInSuperBlock(&sb, geo, name)

	// Keep the magic invalid until the format completes.
	sb.Magic = 0xFFFF
	if err := cache.WriteBlock(0, common.EncodeSuperBlock(&sb)); err != nil {
		return err
	}

	if err := fillInINT(cache, &sb, opts); err != nil {
		return err
	}
	if err := fillInRootDir(cache, &sb); err != nil {
		return err
	}
	if err := fillInGenRep(cache, &sb, opts.Zero); err != nil {
		return err
	}

	sb.Magic = common.MAGIC_NUMBER
	if err := cache.WriteBlock(0, common.EncodeSuperBlock(&sb)); err != nil {
		return err
	}
	return cache.Flush()
}

func fillInSuperBlock(sb *common.SuperBlock, geo Geometry, name string) {
	sb.Magic = common.MAGIC_NUMBER
	sb.Version = common.VERSION_NUMBER
	sb.SetVolumeName(name)
	sb.NTotal = geo.NTotal
	sb.MStat = common.PRU

	sb.ITableStart = 1
	sb.ITableSize = geo.ITableSize
	sb.ITotal = geo.ITotal
	sb.IFree = geo.ITotal - 1
	sb.IHead = 1
	sb.ITail = geo.ITotal - 1

	sb.DZoneStart = 1 + geo.ITableSize
	sb.DZoneTotal = geo.DZoneTotal
	sb.DZoneFree = geo.DZoneTotal - 1
	sb.DHead = 1
	sb.DTail = geo.DZoneTotal - 1

	sb.DZoneRetriev.CacheIdx = common.DZONE_CACHE_SIZE
	for i := range sb.DZoneRetriev.Cache {
		sb.DZoneRetriev.Cache[i] = common.NULL_CLUSTER
	}
	sb.DZoneInsert.CacheIdx = 0
	for i := range sb.DZoneInsert.Cache {
		sb.DZoneInsert.Cache[i] = common.NULL_CLUSTER
	}
}

// fillInINT writes the table of inodes: inode 0 in use holding the
// root directory, every other inode free in the clean state and
// threaded into the double-linked free list.
func fillInINT(cache *bcache.LRUCache, sb *common.SuperBlock, opts Options) error {
	var blk [common.IPB]common.Inode
	ts := now()

	for nblk := uint32(0); nblk < sb.ITableSize; nblk++ {
		for i := 0; i < common.IPB; i++ {
			inode := nblk*common.IPB + uint32(i)

			blk[i] = common.Inode{Mode: common.INODE_FREE}
			for j := 0; j < common.N_DIRECT; j++ {
				blk[i].D[j] = common.NULL_CLUSTER
			}
			blk[i].I1 = common.NULL_CLUSTER
			blk[i].I2 = common.NULL_CLUSTER
			blk[i].VD1 = inode + 1
			blk[i].VD2 = inode - 1

			switch {
			case inode == 0:
				blk[i].Mode = common.INODE_DIR | common.INODE_PERM_MASK
				blk[i].RefCount = 2
				blk[i].Owner = uint16(opts.Uid)
				blk[i].Group = uint16(opts.Gid)
				blk[i].Size = common.DPC * common.DIRENT_SIZE
				blk[i].CluCount = 1
				blk[i].VD1 = ts
				blk[i].VD2 = ts
				blk[i].D[0] = 0
			case inode == 1:
				blk[i].VD2 = common.NULL_INODE
			}
			if inode == sb.ITotal-1 {
				blk[i].VD1 = common.NULL_INODE
			}
		}
		if err := cache.WriteBlock(sb.ITableStart+nblk, common.EncodeInodeBlock(&blk)); err != nil {
			return err
		}
	}
	return nil
}

// fillInRootDir writes the content of data cluster 0: the "." and ".."
// entries referring to inode 0 and every other entry clean.
func fillInRootDir(cache *bcache.LRUCache, sb *common.SuperBlock) error {
	var dc common.DataClust
	dc.Stat = 0
	dc.Prev = common.NULL_CLUSTER
	dc.Next = common.NULL_CLUSTER

	var de common.DirEntry
	de.SetEntryName(".")
	de.NInode = 0
	dc.PutDirEntryAt(0, de)
	de.SetEntryName("..")
	de.NInode = 0
	dc.PutDirEntryAt(1, de)
	for i := 2; i < common.DPC; i++ {
		de.Clear()
		dc.PutDirEntryAt(i, de)
	}

	return cache.WriteCluster(sb.DZoneStart, common.EncodeDataClust(&dc))
}

// fillInGenRep threads clusters 1 to DZoneTotal-1 into the double-
// linked general repository of free data clusters, all clean. With
// zero set the cluster bodies are wiped as well.
func fillInGenRep(cache *bcache.LRUCache, sb *common.SuperBlock, zero bool) error {
	var dc common.DataClust

	for n := uint32(1); n < sb.DZoneTotal; n++ {
		fblock := sb.DZoneStart + n*common.BLOCKS_PER_CLUSTER

		if !zero {
			buf := make([]byte, common.CLUSTER_SIZE)
			if err := cache.ReadCluster(fblock, buf); err != nil {
				return err
			}
			common.DecodeDataClust(&dc, buf)
		} else {
			dc = common.DataClust{}
		}

		dc.Stat = common.NULL_INODE
		if n == 1 {
			dc.Prev = common.NULL_CLUSTER
		} else {
			dc.Prev = n - 1
		}
		if n == sb.DZoneTotal-1 {
			dc.Next = common.NULL_CLUSTER
		} else {
			dc.Next = n + 1
		}

		if err := cache.WriteCluster(fblock, common.EncodeDataClust(&dc)); err != nil {
			return err
		}
	}
	return nil
}

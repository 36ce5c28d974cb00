package sofs

import "github.com/veronicapr/sofs14/common"

// Classification of a data cluster for reporting tools.
type ClusterClass uint8

const (
	ClusterFreeClean ClusterClass = iota
	ClusterFreeDirty
	ClusterData
	ClusterReference
)

// ClusterUsage classifies every cluster of the data zone: free clean,
// free dirty (still associated with a freed file), file data, or
// reference table. Reference clusters are found by walking the index
// of every inode that carries an indirect tree.
func (v *Volume) ClusterUsage() ([]ClusterClass, error) {
	if err := v.loadSuperBlock(); err != nil {
		return nil, err
	}
	sb := v.sb

	usage := make([]ClusterClass, sb.DZoneTotal)

	var dc common.DataClust
	for n := uint32(0); n < sb.DZoneTotal; n++ {
		if err := v.readCacheCluster(v.clusterFBlock(n), &dc); err != nil {
			return nil, err
		}
		switch {
		case dc.Stat == common.NULL_INODE:
			usage[n] = ClusterFreeClean
		default:
			usage[n] = ClusterData
		}
	}

	// Clusters parked in the caches or on the repository list with a
	// stat left behind are free in the dirty state, not data.
	markDirty := func(n uint32) {
		if n < sb.DZoneTotal && usage[n] == ClusterData {
			usage[n] = ClusterFreeDirty
		}
	}
	for i := sb.DZoneRetriev.CacheIdx; i < common.DZONE_CACHE_SIZE; i++ {
		markDirty(sb.DZoneRetriev.Cache[i])
	}
	for i := uint32(0); i < sb.DZoneInsert.CacheIdx; i++ {
		markDirty(sb.DZoneInsert.Cache[i])
	}
	for cur := sb.DHead; cur != common.NULL_CLUSTER && cur < sb.DZoneTotal; {
		if err := v.readCacheCluster(v.clusterFBlock(cur), &dc); err != nil {
			return nil, err
		}
		if dc.Stat != common.NULL_INODE {
			markDirty(cur)
		}
		cur = dc.Next
	}

	// Reference clusters: the indirect trees of inodes, in use or
	// freed but still dirty.
	markRef := func(n uint32) {
		if n < sb.DZoneTotal {
			usage[n] = ClusterReference
		}
	}
	for nInode := uint32(0); nInode < sb.ITotal; nInode++ {
		nBlk, offset := convertRefInT(nInode)
		if err := v.loadBlockInT(nBlk); err != nil {
			return nil, err
		}
		ip := v.getBlockInT()[offset]
		if ip.IsFree() && ip.CluCount == 0 {
			continue
		}
		if ip.I1 != common.NULL_CLUSTER {
			markRef(ip.I1)
		}
		if ip.I2 != common.NULL_CLUSTER {
			markRef(ip.I2)
			if ip.I2 < sb.DZoneTotal {
				if err := v.readCacheCluster(v.clusterFBlock(ip.I2), &dc); err != nil {
					return nil, err
				}
				for j := 0; j < common.RPC; j++ {
					if ref := dc.Ref(j); ref != common.NULL_CLUSTER {
						markRef(ref)
					}
				}
			}
		}
	}

	return usage, nil
}

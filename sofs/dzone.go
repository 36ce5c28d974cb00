package sofs

import (
	"github.com/veronicapr/sofs14/common"
	"github.com/veronicapr/sofs14/debug"
)

// AllocDataCluster allocates a free data cluster and associates it to
// the given inode. The cluster comes out of the retrieval cache, which
// is replenished from the general repository when empty; a cluster
// still dirty from a deferred free is cleaned first. On return the
// cluster header holds prev = next = NULL_CLUSTER and stat = nInode.
func (v *Volume) AllocDataCluster(nInode uint32) (uint32, error) {
	debug.Probe(613, "07;33", "AllocDataCluster (%d)\n", nInode)

	if err := v.loadSuperBlock(); err != nil {
		return common.NULL_CLUSTER, err
	}
	if err := v.qCheckDZ(&v.sb); err != nil {
		return common.NULL_CLUSTER, err
	}
	if nInode >= v.sb.ITotal {
		return common.NULL_CLUSTER, common.EINVAL
	}
	if v.sb.DZoneFree == 0 {
		return common.NULL_CLUSTER, common.ENOSPC
	}

	nBlk, offset := convertRefInT(nInode)
	if err := v.loadBlockInT(nBlk); err != nil {
		return common.NULL_CLUSTER, err
	}
	if err := v.qCheckInodeIU(&v.getBlockInT()[offset]); err != nil {
		return common.NULL_CLUSTER, err
	}

	if v.sb.DZoneRetriev.CacheIdx == common.DZONE_CACHE_SIZE {
		if err := v.replenish(); err != nil {
			return common.NULL_CLUSTER, err
		}
		if err := v.loadSuperBlock(); err != nil {
			return common.NULL_CLUSTER, err
		}
	}

	nClust := v.sb.DZoneRetriev.Cache[v.sb.DZoneRetriev.CacheIdx]

	if _, err := v.qCheckStatDC(nClust); err != nil {
		return common.NULL_CLUSTER, err
	}

	var dc common.DataClust
	if err := v.readCacheCluster(v.clusterFBlock(nClust), &dc); err != nil {
		return common.NULL_CLUSTER, err
	}

	// A dirty cluster still belongs to the reference index of the
	// (freed) inode it came from; dissociate it there first.
	if dc.Stat != common.NULL_INODE {
		if err := v.cleanDataCluster(dc.Stat, nClust); err != nil {
			return common.NULL_CLUSTER, err
		}
		if err := v.loadSuperBlock(); err != nil {
			return common.NULL_CLUSTER, err
		}
		if err := v.readCacheCluster(v.clusterFBlock(nClust), &dc); err != nil {
			return common.NULL_CLUSTER, err
		}
	}

	dc.Prev = common.NULL_CLUSTER
	dc.Next = common.NULL_CLUSTER
	dc.Stat = nInode

	v.sb.DZoneRetriev.Cache[v.sb.DZoneRetriev.CacheIdx] = common.NULL_CLUSTER
	v.sb.DZoneRetriev.CacheIdx++
	v.sb.DZoneFree--

	if err := v.writeCacheCluster(v.clusterFBlock(nClust), &dc); err != nil {
		return common.NULL_CLUSTER, err
	}
	if err := v.storeSuperBlock(); err != nil {
		return common.NULL_CLUSTER, err
	}
	return nClust, nil
}

// FreeDataCluster inserts the referenced data cluster into the
// insertion cache, depleting the cache into the general repository
// first when full. The cluster enters the dirty state: its stat field
// keeps the owning inode while prev and next are cleared. Cluster 0,
// which holds the root directory, can never be freed.
func (v *Volume) FreeDataCluster(nClust uint32) error {
	debug.Probe(614, "07;33", "FreeDataCluster (%d)\n", nClust)

	if err := v.loadSuperBlock(); err != nil {
		return err
	}
	if nClust == 0 || nClust >= v.sb.DZoneTotal {
		return common.EINVAL
	}

	stat, err := v.qCheckStatDC(nClust)
	if err != nil {
		return err
	}
	if stat == common.FREE_CLT {
		return common.EDCNALINVAL
	}

	if err := v.qCheckDZ(&v.sb); err != nil {
		return err
	}
	if err := v.qCheckSuperBlock(&v.sb); err != nil {
		return err
	}

	fblock := v.clusterFBlock(nClust)
	var dc common.DataClust
	if err := v.readCacheCluster(fblock, &dc); err != nil {
		return err
	}
	dc.Prev = common.NULL_CLUSTER
	dc.Next = common.NULL_CLUSTER
	if err := v.writeCacheCluster(fblock, &dc); err != nil {
		return err
	}

	if v.sb.DZoneInsert.CacheIdx == common.DZONE_CACHE_SIZE {
		if err := v.deplete(); err != nil {
			return err
		}
		if err := v.loadSuperBlock(); err != nil {
			return err
		}
	}

	v.sb.DZoneInsert.Cache[v.sb.DZoneInsert.CacheIdx] = nClust
	v.sb.DZoneInsert.CacheIdx++
	v.sb.DZoneFree++

	return v.storeSuperBlock()
}

// replenish refills the retrieval cache up to its capacity (bounded by
// the number of free clusters) by walking the general repository
// forward from its head. If the on-disk list runs out before the
// target is met, the insertion cache is depleted onto the list and the
// walk resumes.
func (v *Volume) replenish() error {
	if err := v.qCheckSuperBlock(&v.sb); err != nil {
		return err
	}

	nctt := v.sb.DZoneFree
	if nctt > common.DZONE_CACHE_SIZE {
		nctt = common.DZONE_CACHE_SIZE
	}

	nLClust := v.sb.DHead
	var dc common.DataClust

	n := uint32(common.DZONE_CACHE_SIZE) - nctt
	for ; n < common.DZONE_CACHE_SIZE; n++ {
		if nLClust == common.NULL_CLUSTER {
			break
		}
		if err := v.readCacheCluster(v.clusterFBlock(nLClust), &dc); err != nil {
			return err
		}
		v.sb.DZoneRetriev.Cache[n] = nLClust
		next := dc.Next
		dc.Prev = common.NULL_CLUSTER
		dc.Next = common.NULL_CLUSTER
		if err := v.writeCacheCluster(v.clusterFBlock(nLClust), &dc); err != nil {
			return err
		}
		nLClust = next
	}

	if n != common.DZONE_CACHE_SIZE {
		// The repository ran dry; move the buffered insertions onto it
		// and keep walking.
		v.sb.DHead = common.NULL_CLUSTER
		v.sb.DTail = common.NULL_CLUSTER
		if err := v.deplete(); err != nil {
			return err
		}
		nLClust = v.sb.DHead

		for ; n < common.DZONE_CACHE_SIZE; n++ {
			if nLClust == common.NULL_CLUSTER {
				return common.EFCDLLINVAL
			}
			if err := v.readCacheCluster(v.clusterFBlock(nLClust), &dc); err != nil {
				return err
			}
			v.sb.DZoneRetriev.Cache[n] = nLClust
			next := dc.Next
			dc.Prev = common.NULL_CLUSTER
			dc.Next = common.NULL_CLUSTER
			if err := v.writeCacheCluster(v.clusterFBlock(nLClust), &dc); err != nil {
				return err
			}
			nLClust = next
		}
	}

	// The survivor at the front of the repository loses its back link.
	if nLClust != common.NULL_CLUSTER {
		if err := v.readCacheCluster(v.clusterFBlock(nLClust), &dc); err != nil {
			return err
		}
		dc.Prev = common.NULL_CLUSTER
		if err := v.writeCacheCluster(v.clusterFBlock(nLClust), &dc); err != nil {
			return err
		}
	}

	v.sb.DZoneRetriev.CacheIdx = uint32(common.DZONE_CACHE_SIZE) - nctt
	v.sb.DHead = nLClust
	if nLClust == common.NULL_CLUSTER {
		v.sb.DTail = common.NULL_CLUSTER
	}

	return v.storeSuperBlock()
}

// deplete appends the whole insertion cache, in order, to the tail of
// the general repository of free data clusters and resets the cache.
func (v *Volume) deplete() error {
	if err := v.qCheckSuperBlock(&v.sb); err != nil {
		return err
	}

	count := v.sb.DZoneInsert.CacheIdx
	if count == 0 {
		return nil
	}

	var dc common.DataClust

	if v.sb.DTail != common.NULL_CLUSTER {
		if err := v.readCacheCluster(v.clusterFBlock(v.sb.DTail), &dc); err != nil {
			return err
		}
		dc.Next = v.sb.DZoneInsert.Cache[0]
		if err := v.writeCacheCluster(v.clusterFBlock(v.sb.DTail), &dc); err != nil {
			return err
		}
	}

	for i := uint32(0); i < count; i++ {
		nClust := v.sb.DZoneInsert.Cache[i]
		if err := v.readCacheCluster(v.clusterFBlock(nClust), &dc); err != nil {
			return err
		}
		if i == 0 {
			dc.Prev = v.sb.DTail
		} else {
			dc.Prev = v.sb.DZoneInsert.Cache[i-1]
		}
		if i == count-1 {
			dc.Next = common.NULL_CLUSTER
		} else {
			dc.Next = v.sb.DZoneInsert.Cache[i+1]
		}
		if err := v.writeCacheCluster(v.clusterFBlock(nClust), &dc); err != nil {
			return err
		}
	}

	v.sb.DTail = v.sb.DZoneInsert.Cache[count-1]
	if v.sb.DHead == common.NULL_CLUSTER {
		v.sb.DHead = v.sb.DZoneInsert.Cache[0]
	}

	for i := uint32(0); i < count; i++ {
		v.sb.DZoneInsert.Cache[i] = common.NULL_CLUSTER
	}
	v.sb.DZoneInsert.CacheIdx = 0

	return v.storeSuperBlock()
}

// cleanDataCluster turns a data cluster that is free in the dirty
// state into a clean one: the reference to it is removed from the
// index of the inode it once belonged to and its stat field is reset.
func (v *Volume) cleanDataCluster(nInode uint32, nClust uint32) error {
	if err := v.loadSuperBlock(); err != nil {
		return err
	}
	if nInode >= v.sb.ITotal || nClust >= v.sb.DZoneTotal {
		return common.EINVAL
	}

	var dc common.DataClust
	if err := v.readCacheCluster(v.clusterFBlock(nClust), &dc); err != nil {
		return err
	}
	if dc.Stat != nInode {
		return common.EWGINODENB
	}

	// Only a free inode in the dirty state can still carry a reference
	// to the cluster. A cluster freed behind an in-use inode's back
	// (or behind an already cleaned one) just loses its association.
	nBlk, offset := convertRefInT(nInode)
	if err := v.loadBlockInT(nBlk); err != nil {
		return err
	}
	if v.getBlockInT()[offset].IsFree() {
		clustInd, found, err := v.searchIndex(nInode, nClust)
		if err != nil {
			return err
		}
		if found {
			// CLEAN dissociates the cluster and repairs the
			// bookkeeping of the dirty inode in one step.
			_, err := v.HandleFileCluster(nInode, clustInd, CLEAN)
			return err
		}
	}

	dc.Stat = common.NULL_INODE
	return v.writeCacheCluster(v.clusterFBlock(nClust), &dc)
}

// searchIndex locates the logical cluster index through which the
// (dirty) inode references nClust.
func (v *Volume) searchIndex(nInode uint32, nClust uint32) (uint32, bool, error) {
	ip, err := v.ReadInode(nInode, FDIN)
	if err != nil {
		return 0, false, err
	}

	for i := uint32(0); i < common.N_DIRECT; i++ {
		if ip.D[i] == nClust {
			return i, true, nil
		}
	}

	var refs common.DataClust
	if ip.I1 != common.NULL_CLUSTER {
		if err := v.readCacheCluster(v.clusterFBlock(ip.I1), &refs); err != nil {
			return 0, false, err
		}
		for i := 0; i < common.RPC; i++ {
			if refs.Ref(i) == nClust {
				return common.N_DIRECT + uint32(i), true, nil
			}
		}
	}

	if ip.I2 != common.NULL_CLUSTER {
		if err := v.readCacheCluster(v.clusterFBlock(ip.I2), &refs); err != nil {
			return 0, false, err
		}
		var inner common.DataClust
		for j := 0; j < common.RPC; j++ {
			ref := refs.Ref(j)
			if ref == common.NULL_CLUSTER {
				continue
			}
			if err := v.readCacheCluster(v.clusterFBlock(ref), &inner); err != nil {
				return 0, false, err
			}
			for i := 0; i < common.RPC; i++ {
				if inner.Ref(i) == nClust {
					return common.N_DIRECT + common.RPC + uint32(j)*common.RPC + uint32(i), true, nil
				}
			}
		}
	}

	return 0, false, nil
}

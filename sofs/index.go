package sofs

import (
	"github.com/veronicapr/sofs14/common"
	"github.com/veronicapr/sofs14/debug"
)

// Operations on the file-cluster reference index.
const (
	GET uint32 = iota
	ALLOC
	FREE
	FREE_CLEAN
	CLEAN
)

// HandleFileCluster operates on the data cluster referenced by the
// given logical cluster index of a file:
//
//	GET        yields the logical cluster number (NULL_CLUSTER if absent)
//	ALLOC      allocates a data cluster for the index, materializing any
//	           missing reference clusters on the way, and links it to its
//	           logical neighbours
//	FREE       frees the data cluster, keeping the reference in the index
//	FREE_CLEAN frees the data cluster and removes the reference
//	CLEAN      removes the reference from a free inode in the dirty state
//
// The inode must be in use, except for CLEAN, which operates on a free
// inode in the dirty state. The returned cluster number is meaningful
// for GET and ALLOC only.
func (v *Volume) HandleFileCluster(nInode uint32, clustInd uint32, op uint32) (uint32, error) {
	debug.Probe(413, "07;31", "HandleFileCluster (%d, %d, %d)\n", nInode, clustInd, op)

	if clustInd >= common.MAX_FILE_CLUSTERS {
		return common.NULL_CLUSTER, common.EINVAL
	}
	if op > CLEAN {
		return common.NULL_CLUSTER, common.EINVAL
	}

	if err := v.loadSuperBlock(); err != nil {
		return common.NULL_CLUSTER, err
	}
	if nInode >= v.sb.ITotal {
		return common.NULL_CLUSTER, common.EINVAL
	}

	status := IUIN
	if op == CLEAN {
		status = FDIN
	}
	ip, err := v.ReadInode(nInode, status)
	if err != nil {
		return common.NULL_CLUSTER, err
	}

	var outVal uint32
	switch {
	case clustInd < common.N_DIRECT:
		outVal, err = v.handleDirect(&ip, nInode, clustInd, op)
	case clustInd < common.N_DIRECT+common.RPC:
		outVal, err = v.handleSIndirect(&ip, nInode, clustInd, op)
	default:
		outVal, err = v.handleDIndirect(&ip, nInode, clustInd, op)
	}
	if err != nil {
		return common.NULL_CLUSTER, err
	}

	switch op {
	case ALLOC, FREE, FREE_CLEAN:
		if err := v.WriteInode(&ip, nInode, IUIN); err != nil {
			return common.NULL_CLUSTER, err
		}
	case CLEAN:
		if err := v.WriteInode(&ip, nInode, FDIN); err != nil {
			return common.NULL_CLUSTER, err
		}
	}

	if op == GET || op == ALLOC {
		return outVal, nil
	}
	return common.NULL_CLUSTER, nil
}

// handleDirect operates on a reference held directly in the inode.
func (v *Volume) handleDirect(ip *common.Inode, nInode, clustInd, op uint32) (uint32, error) {
	switch op {
	case GET:
		return ip.D[clustInd], nil

	case ALLOC:
		if ip.D[clustInd] != common.NULL_CLUSTER {
			return common.NULL_CLUSTER, common.EDCARDYIL
		}
		nLClust, err := v.AllocDataCluster(nInode)
		if err != nil {
			return common.NULL_CLUSTER, err
		}
		if err := v.attachLogicalCluster(nInode, clustInd, nLClust); err != nil {
			return common.NULL_CLUSTER, err
		}
		ip.D[clustInd] = nLClust
		ip.CluCount++
		return nLClust, nil

	case FREE:
		if ip.D[clustInd] == common.NULL_CLUSTER {
			return common.NULL_CLUSTER, common.EDCNOTIL
		}
		return common.NULL_CLUSTER, v.FreeDataCluster(ip.D[clustInd])

	case CLEAN:
		if ip.D[clustInd] == common.NULL_CLUSTER {
			return common.NULL_CLUSTER, common.EDCNOTIL
		}
		if err := v.cleanLogicalCluster(nInode, ip.D[clustInd]); err != nil {
			return common.NULL_CLUSTER, err
		}
		ip.D[clustInd] = common.NULL_CLUSTER
		ip.CluCount--
		return common.NULL_CLUSTER, nil

	case FREE_CLEAN:
		if ip.D[clustInd] == common.NULL_CLUSTER {
			return common.NULL_CLUSTER, common.EDCNOTIL
		}
		if err := v.FreeDataCluster(ip.D[clustInd]); err != nil {
			return common.NULL_CLUSTER, err
		}
		if err := v.cleanLogicalCluster(nInode, ip.D[clustInd]); err != nil {
			return common.NULL_CLUSTER, err
		}
		ip.D[clustInd] = common.NULL_CLUSTER
		ip.CluCount--
		return common.NULL_CLUSTER, nil
	}
	return common.NULL_CLUSTER, common.EINVAL
}

// allocRefCluster allocates a reference cluster for the inode and
// NULL-fills its slots. The caller accounts for it in cluCount.
func (v *Volume) allocRefCluster(nInode uint32) (uint32, error) {
	nClust, err := v.AllocDataCluster(nInode)
	if err != nil {
		return common.NULL_CLUSTER, err
	}
	var dc common.DataClust
	if err := v.readCacheCluster(v.clusterFBlock(nClust), &dc); err != nil {
		return common.NULL_CLUSTER, err
	}
	dc.FillRefs()
	if err := v.writeCacheCluster(v.clusterFBlock(nClust), &dc); err != nil {
		return common.NULL_CLUSTER, err
	}
	return nClust, nil
}

// releaseRefCluster frees a fully empty reference cluster and severs
// its association with the inode. The caller clears the reference to
// it and accounts for it in cluCount.
func (v *Volume) releaseRefCluster(nInode uint32, nClust uint32) error {
	if err := v.FreeDataCluster(nClust); err != nil {
		return err
	}
	return v.cleanLogicalCluster(nInode, nClust)
}

// handleSIndirect operates on a reference held in the single-indirect
// reference cluster i1.
func (v *Volume) handleSIndirect(ip *common.Inode, nInode, clustInd, op uint32) (uint32, error) {
	slot := int(clustInd - common.N_DIRECT)

	if ip.I1 == common.NULL_CLUSTER {
		switch op {
		case GET:
			return common.NULL_CLUSTER, nil

		case ALLOC:
			refClust, err := v.allocRefCluster(nInode)
			if err != nil {
				return common.NULL_CLUSTER, err
			}
			ip.I1 = refClust
			ip.CluCount++

			nLClust, err := v.AllocDataCluster(nInode)
			if err != nil {
				return common.NULL_CLUSTER, err
			}
			if err := v.attachLogicalCluster(nInode, clustInd, nLClust); err != nil {
				return common.NULL_CLUSTER, err
			}

			var dc common.DataClust
			if err := v.readCacheCluster(v.clusterFBlock(ip.I1), &dc); err != nil {
				return common.NULL_CLUSTER, err
			}
			dc.SetRef(slot, nLClust)
			if err := v.writeCacheCluster(v.clusterFBlock(ip.I1), &dc); err != nil {
				return common.NULL_CLUSTER, err
			}
			ip.CluCount++
			return nLClust, nil

		default:
			return common.NULL_CLUSTER, common.EDCNOTIL
		}
	}

	var dc common.DataClust
	if err := v.readCacheCluster(v.clusterFBlock(ip.I1), &dc); err != nil {
		return common.NULL_CLUSTER, err
	}

	switch op {
	case GET:
		return dc.Ref(slot), nil

	case ALLOC:
		if dc.Ref(slot) != common.NULL_CLUSTER {
			return common.NULL_CLUSTER, common.EDCARDYIL
		}
		nLClust, err := v.AllocDataCluster(nInode)
		if err != nil {
			return common.NULL_CLUSTER, err
		}
		if err := v.attachLogicalCluster(nInode, clustInd, nLClust); err != nil {
			return common.NULL_CLUSTER, err
		}
		dc.SetRef(slot, nLClust)
		ip.CluCount++
		if err := v.writeCacheCluster(v.clusterFBlock(ip.I1), &dc); err != nil {
			return common.NULL_CLUSTER, err
		}
		return nLClust, nil

	case FREE, FREE_CLEAN, CLEAN:
		ref := dc.Ref(slot)
		if ref == common.NULL_CLUSTER {
			return common.NULL_CLUSTER, common.EDCNOTIL
		}
		if op != CLEAN {
			if err := v.FreeDataCluster(ref); err != nil {
				return common.NULL_CLUSTER, err
			}
		}
		if op == FREE {
			return common.NULL_CLUSTER, nil
		}

		if err := v.cleanLogicalCluster(nInode, ref); err != nil {
			return common.NULL_CLUSTER, err
		}
		dc.SetRef(slot, common.NULL_CLUSTER)
		ip.CluCount--
		if err := v.writeCacheCluster(v.clusterFBlock(ip.I1), &dc); err != nil {
			return common.NULL_CLUSTER, err
		}

		// Collapse the reference cluster once its last slot clears.
		for i := 0; i < common.RPC; i++ {
			if dc.Ref(i) != common.NULL_CLUSTER {
				return common.NULL_CLUSTER, nil
			}
		}
		if err := v.releaseRefCluster(nInode, ip.I1); err != nil {
			return common.NULL_CLUSTER, err
		}
		ip.I1 = common.NULL_CLUSTER
		ip.CluCount--
		return common.NULL_CLUSTER, nil
	}
	return common.NULL_CLUSTER, common.EINVAL
}

// handleDIndirect operates on a reference reachable through the
// two-level tree rooted at i2.
func (v *Volume) handleDIndirect(ip *common.Inode, nInode, clustInd, op uint32) (uint32, error) {
	outer := int((clustInd - common.N_DIRECT - common.RPC) / common.RPC)
	inner := int((clustInd - common.N_DIRECT - common.RPC) % common.RPC)

	var outerDC, innerDC common.DataClust

	switch op {
	case GET:
		if ip.I2 == common.NULL_CLUSTER {
			return common.NULL_CLUSTER, nil
		}
		if err := v.readCacheCluster(v.clusterFBlock(ip.I2), &outerDC); err != nil {
			return common.NULL_CLUSTER, err
		}
		if outerDC.Ref(outer) == common.NULL_CLUSTER {
			return common.NULL_CLUSTER, nil
		}
		if err := v.readCacheCluster(v.clusterFBlock(outerDC.Ref(outer)), &innerDC); err != nil {
			return common.NULL_CLUSTER, err
		}
		return innerDC.Ref(inner), nil

	case ALLOC:
		if ip.I2 == common.NULL_CLUSTER {
			refClust, err := v.allocRefCluster(nInode)
			if err != nil {
				return common.NULL_CLUSTER, err
			}
			ip.I2 = refClust
			ip.CluCount++
		}
		if err := v.readCacheCluster(v.clusterFBlock(ip.I2), &outerDC); err != nil {
			return common.NULL_CLUSTER, err
		}

		innerClust := outerDC.Ref(outer)
		if innerClust == common.NULL_CLUSTER {
			refClust, err := v.allocRefCluster(nInode)
			if err != nil {
				return common.NULL_CLUSTER, err
			}
			innerClust = refClust
			ip.CluCount++
		}

		if err := v.readCacheCluster(v.clusterFBlock(innerClust), &innerDC); err != nil {
			return common.NULL_CLUSTER, err
		}
		if innerDC.Ref(inner) != common.NULL_CLUSTER {
			return common.NULL_CLUSTER, common.EDCARDYIL
		}

		nLClust, err := v.AllocDataCluster(nInode)
		if err != nil {
			return common.NULL_CLUSTER, err
		}
		if err := v.attachLogicalCluster(nInode, clustInd, nLClust); err != nil {
			return common.NULL_CLUSTER, err
		}

		if err := v.readCacheCluster(v.clusterFBlock(innerClust), &innerDC); err != nil {
			return common.NULL_CLUSTER, err
		}
		innerDC.SetRef(inner, nLClust)
		ip.CluCount++
		if err := v.writeCacheCluster(v.clusterFBlock(innerClust), &innerDC); err != nil {
			return common.NULL_CLUSTER, err
		}

		outerDC.SetRef(outer, innerClust)
		if err := v.writeCacheCluster(v.clusterFBlock(ip.I2), &outerDC); err != nil {
			return common.NULL_CLUSTER, err
		}
		return nLClust, nil

	case FREE, FREE_CLEAN, CLEAN:
		if ip.I2 == common.NULL_CLUSTER {
			return common.NULL_CLUSTER, common.EDCNOTIL
		}
		if err := v.readCacheCluster(v.clusterFBlock(ip.I2), &outerDC); err != nil {
			return common.NULL_CLUSTER, err
		}
		innerClust := outerDC.Ref(outer)
		if innerClust == common.NULL_CLUSTER {
			return common.NULL_CLUSTER, common.EDCNOTIL
		}
		if err := v.readCacheCluster(v.clusterFBlock(innerClust), &innerDC); err != nil {
			return common.NULL_CLUSTER, err
		}
		ref := innerDC.Ref(inner)
		if ref == common.NULL_CLUSTER {
			return common.NULL_CLUSTER, common.EDCNOTIL
		}

		if op != CLEAN {
			if err := v.FreeDataCluster(ref); err != nil {
				return common.NULL_CLUSTER, err
			}
		}
		if op == FREE {
			return common.NULL_CLUSTER, nil
		}

		if err := v.cleanLogicalCluster(nInode, ref); err != nil {
			return common.NULL_CLUSTER, err
		}
		innerDC.SetRef(inner, common.NULL_CLUSTER)
		ip.CluCount--
		if err := v.writeCacheCluster(v.clusterFBlock(innerClust), &innerDC); err != nil {
			return common.NULL_CLUSTER, err
		}

		for i := 0; i < common.RPC; i++ {
			if innerDC.Ref(i) != common.NULL_CLUSTER {
				return common.NULL_CLUSTER, nil
			}
		}
		if err := v.releaseRefCluster(nInode, innerClust); err != nil {
			return common.NULL_CLUSTER, err
		}
		outerDC.SetRef(outer, common.NULL_CLUSTER)
		ip.CluCount--
		if err := v.writeCacheCluster(v.clusterFBlock(ip.I2), &outerDC); err != nil {
			return common.NULL_CLUSTER, err
		}

		for i := 0; i < common.RPC; i++ {
			if outerDC.Ref(i) != common.NULL_CLUSTER {
				return common.NULL_CLUSTER, nil
			}
		}
		if err := v.releaseRefCluster(nInode, ip.I2); err != nil {
			return common.NULL_CLUSTER, err
		}
		ip.I2 = common.NULL_CLUSTER
		ip.CluCount--
		return common.NULL_CLUSTER, nil
	}
	return common.NULL_CLUSTER, common.EINVAL
}

// attachLogicalCluster links a freshly allocated data cluster into the
// doubly-linked chain the file's clusters form in logical index order.
// Neighbour references are always fetched through GET, never cached,
// so a sparse hole on either side yields a NULL link.
func (v *Volume) attachLogicalCluster(nInode uint32, clustInd uint32, nLClust uint32) error {
	var dc common.DataClust
	if err := v.readCacheCluster(v.clusterFBlock(nLClust), &dc); err != nil {
		return err
	}
	if dc.Stat != nInode {
		return common.EWGINODENB
	}

	prev := common.NULL_CLUSTER
	next := common.NULL_CLUSTER

	if clustInd > 0 {
		p, err := v.HandleFileCluster(nInode, clustInd-1, GET)
		if err != nil {
			return err
		}
		prev = p
		dc.Prev = p
	}
	if clustInd < common.MAX_FILE_CLUSTERS-1 {
		n, err := v.HandleFileCluster(nInode, clustInd+1, GET)
		if err != nil {
			return err
		}
		next = n
		dc.Next = n
	}

	if err := v.writeCacheCluster(v.clusterFBlock(nLClust), &dc); err != nil {
		return err
	}

	if prev != common.NULL_CLUSTER {
		if err := v.readCacheCluster(v.clusterFBlock(prev), &dc); err != nil {
			return err
		}
		dc.Next = nLClust
		if err := v.writeCacheCluster(v.clusterFBlock(prev), &dc); err != nil {
			return err
		}
	}
	if next != common.NULL_CLUSTER {
		if err := v.readCacheCluster(v.clusterFBlock(next), &dc); err != nil {
			return err
		}
		dc.Prev = nLClust
		if err := v.writeCacheCluster(v.clusterFBlock(next), &dc); err != nil {
			return err
		}
	}
	return nil
}

// cleanLogicalCluster severs the association between a data cluster
// and the inode recorded in its stat field.
func (v *Volume) cleanLogicalCluster(nInode uint32, nLClust uint32) error {
	var dc common.DataClust
	if err := v.readCacheCluster(v.clusterFBlock(nLClust), &dc); err != nil {
		return err
	}
	if dc.Stat != nInode {
		return common.EWGINODENB
	}
	dc.Stat = common.NULL_INODE
	return v.writeCacheCluster(v.clusterFBlock(nLClust), &dc)
}

// HandleFileClusters applies FREE, FREE_CLEAN or CLEAN to every
// populated index at or after clustIndIn, processing the double-
// indirect region first, then the single-indirect one, then the direct
// references.
func (v *Volume) HandleFileClusters(nInode uint32, clustIndIn uint32, op uint32) error {
	debug.Probe(414, "07;31", "HandleFileClusters (%d, %d, %d)\n", nInode, clustIndIn, op)

	if err := v.loadSuperBlock(); err != nil {
		return err
	}
	if nInode >= v.sb.ITotal {
		return common.EINVAL
	}
	if clustIndIn >= common.MAX_FILE_CLUSTERS {
		return common.EINVAL
	}
	if op != FREE && op != FREE_CLEAN && op != CLEAN {
		return common.EINVAL
	}

	status := IUIN
	if op == CLEAN {
		status = FDIN
	}
	ip, err := v.ReadInode(nInode, status)
	if err != nil {
		return err
	}

	if ip.I2 != common.NULL_CLUSTER {
		var outerDC common.DataClust
		if err := v.readCacheCluster(v.clusterFBlock(ip.I2), &outerDC); err != nil {
			return err
		}

		i, j := 0, 0
		if clustIndIn >= common.N_DIRECT+common.RPC {
			i = int((clustIndIn - common.N_DIRECT - common.RPC) % common.RPC)
			j = int((clustIndIn - common.N_DIRECT - common.RPC) / common.RPC)
		}

		for ; j < common.RPC; j++ {
			if outerDC.Ref(j) == common.NULL_CLUSTER {
				i = 0
				continue
			}
			var innerDC common.DataClust
			if err := v.readCacheCluster(v.clusterFBlock(outerDC.Ref(j)), &innerDC); err != nil {
				return err
			}
			for ; i < common.RPC; i++ {
				if innerDC.Ref(i) == common.NULL_CLUSTER {
					continue
				}
				ind := common.N_DIRECT + common.RPC + uint32(j)*common.RPC + uint32(i)
				if _, err := v.HandleFileCluster(nInode, ind, op); err != nil {
					return err
				}
			}
			i = 0
		}
	}

	if clustIndIn < common.N_DIRECT+common.RPC && ip.I1 != common.NULL_CLUSTER {
		var refDC common.DataClust
		if err := v.readCacheCluster(v.clusterFBlock(ip.I1), &refDC); err != nil {
			return err
		}

		i := 0
		if clustIndIn >= common.N_DIRECT {
			i = int(clustIndIn - common.N_DIRECT)
		}
		for ; i < common.RPC; i++ {
			if refDC.Ref(i) == common.NULL_CLUSTER {
				continue
			}
			if _, err := v.HandleFileCluster(nInode, common.N_DIRECT+uint32(i), op); err != nil {
				return err
			}
		}
	}

	if clustIndIn < common.N_DIRECT {
		for i := clustIndIn; i < common.N_DIRECT; i++ {
			if ip.D[i] == common.NULL_CLUSTER {
				continue
			}
			if _, err := v.HandleFileCluster(nInode, i, op); err != nil {
				return err
			}
		}
	}

	return nil
}

package sofs

import (
	"github.com/veronicapr/sofs14/common"
	"github.com/veronicapr/sofs14/debug"
)

// ReadFileCluster reads the data cluster at the given logical index of
// a file into buff. A hole in the file (no cluster allocated for the
// index) reads back as zeros.
func (v *Volume) ReadFileCluster(nInode uint32, clustInd uint32, buff *common.DataClust) error {
	debug.Probe(411, "07;31", "ReadFileCluster (%d, %d)\n", nInode, clustInd)

	if err := v.loadSuperBlock(); err != nil {
		return err
	}
	if clustInd >= common.MAX_FILE_CLUSTERS || buff == nil || nInode >= v.sb.ITotal {
		return common.EINVAL
	}

	nLClust, err := v.HandleFileCluster(nInode, clustInd, GET)
	if err != nil {
		return err
	}

	nBlk, offset := convertRefInT(nInode)
	if err := v.loadBlockInT(nBlk); err != nil {
		return err
	}
	ip := &v.getBlockInT()[offset]
	if err := v.qCheckInodeIU(ip); err != nil {
		return err
	}
	if !ip.LegalType() {
		return common.EIUININVAL
	}

	if nLClust != common.NULL_CLUSTER {
		if err := v.readCacheCluster(v.clusterFBlock(nLClust), buff); err != nil {
			return err
		}
	} else {
		*buff = common.DataClust{}
	}

	return v.storeSuperBlock()
}

// WriteFileCluster writes the payload of buff to the data cluster at
// the given logical index of a file, allocating the cluster (and any
// missing reference clusters) if the index is still a hole. Only the
// byte stream is written; the cluster header stays untouched.
func (v *Volume) WriteFileCluster(nInode uint32, clustInd uint32, buff *common.DataClust) error {
	debug.Probe(412, "07;31", "WriteFileCluster (%d, %d)\n", nInode, clustInd)

	if err := v.loadSuperBlock(); err != nil {
		return err
	}
	if clustInd >= common.MAX_FILE_CLUSTERS || buff == nil || nInode >= v.sb.ITotal {
		return common.EINVAL
	}

	nBlk, offset := convertRefInT(nInode)
	if err := v.loadBlockInT(nBlk); err != nil {
		return err
	}
	ip := &v.getBlockInT()[offset]
	if err := v.qCheckInodeIU(ip); err != nil {
		return err
	}
	if !ip.LegalType() {
		return common.EIUININVAL
	}

	nLClust, err := v.HandleFileCluster(nInode, clustInd, GET)
	if err != nil {
		return err
	}
	if nLClust == common.NULL_CLUSTER {
		if nLClust, err = v.HandleFileCluster(nInode, clustInd, ALLOC); err != nil {
			return err
		}
	}

	var dc common.DataClust
	if err := v.readCacheCluster(v.clusterFBlock(nLClust), &dc); err != nil {
		return err
	}
	dc.Info = buff.Info
	if err := v.writeCacheCluster(v.clusterFBlock(nLClust), &dc); err != nil {
		return err
	}

	// Bump the modification time of the inode.
	inode, err := v.ReadInode(nInode, IUIN)
	if err != nil {
		return err
	}
	if err := v.WriteInode(&inode, nInode, IUIN); err != nil {
		return err
	}

	return v.storeSuperBlock()
}

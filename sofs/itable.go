package sofs

import (
	"github.com/veronicapr/sofs14/common"
	"github.com/veronicapr/sofs14/debug"
)

// ReadInode reads the inode record for nInode from the table of
// inodes. The inode must either be in use and belong to one of the
// legal file types (status IUIN) or be free in the dirty state (status
// FDIN). When read in use, the time of last access is refreshed.
func (v *Volume) ReadInode(nInode uint32, status uint32) (common.Inode, error) {
	debug.Probe(511, "07;31", "ReadInode (%d, %d)\n", nInode, status)

	var out common.Inode

	if err := v.loadSuperBlock(); err != nil {
		return out, err
	}
	if nInode >= v.sb.ITotal {
		return out, common.EINVAL
	}
	if status != IUIN && status != FDIN {
		return out, common.EINVAL
	}

	nBlk, offset := convertRefInT(nInode)
	if err := v.loadBlockInT(nBlk); err != nil {
		return out, err
	}
	ip := &v.getBlockInT()[offset]

	if status == IUIN {
		if err := v.qCheckInodeIU(ip); err != nil {
			return out, err
		}
		ip.VD1 = now()
	} else {
		if err := v.qCheckFDInode(ip); err != nil {
			return out, err
		}
	}

	out = *ip

	if err := v.storeBlockInT(); err != nil {
		return out, err
	}
	if err := v.storeSuperBlock(); err != nil {
		return out, err
	}
	return out, nil
}

// WriteInode writes the inode record for nInode back to the table of
// inodes. When written in use, the times of last access and last
// modification are refreshed.
func (v *Volume) WriteInode(ip *common.Inode, nInode uint32, status uint32) error {
	debug.Probe(512, "07;31", "WriteInode (%d, %d)\n", nInode, status)

	if ip == nil {
		return common.EINVAL
	}
	if err := v.loadSuperBlock(); err != nil {
		return err
	}
	if nInode >= v.sb.ITotal {
		return common.EINVAL
	}
	if status != IUIN && status != FDIN {
		return common.EINVAL
	}

	if status == IUIN {
		if err := v.qCheckInodeIU(ip); err != nil {
			return err
		}
	} else {
		if err := v.qCheckFDInode(ip); err != nil {
			return err
		}
	}

	nBlk, offset := convertRefInT(nInode)
	if err := v.loadBlockInT(nBlk); err != nil {
		return err
	}
	slot := &v.getBlockInT()[offset]
	*slot = *ip

	if status == IUIN {
		slot.VD1 = now()
		slot.VD2 = slot.VD1
	}

	return v.storeBlockInT()
}

// CleanInode turns a free inode in the dirty state into a free inode in
// the clean state: every data cluster still attached to it is
// dissociated and its reference index collapses back to empty. Inode 0
// can never be cleaned.
func (v *Volume) CleanInode(nInode uint32) error {
	debug.Probe(513, "07;31", "CleanInode (%d)\n", nInode)

	if err := v.loadSuperBlock(); err != nil {
		return err
	}
	if nInode == 0 || nInode >= v.sb.ITotal {
		return common.EINVAL
	}

	// The read doubles as the dirty state validation.
	if _, err := v.ReadInode(nInode, FDIN); err != nil {
		return err
	}

	if err := v.HandleFileClusters(nInode, 0, CLEAN); err != nil {
		return err
	}

	return v.storeSuperBlock()
}

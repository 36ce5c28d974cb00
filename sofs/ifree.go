package sofs

import (
	"github.com/veronicapr/sofs14/common"
	"github.com/veronicapr/sofs14/debug"
)

// AllocInode takes an inode from the head of the free list, cleans it
// first if it is free in the dirty state, and initializes it for the
// given file type with the caller's uid and gid. It returns the number
// of the allocated inode.
func (v *Volume) AllocInode(typ uint16) (uint32, error) {
	debug.Probe(611, "07;31", "AllocInode (%d)\n", typ)

	if typ != common.INODE_DIR && typ != common.INODE_FILE && typ != common.INODE_SYMLINK {
		return common.NULL_INODE, common.EINVAL
	}

	if err := v.loadSuperBlock(); err != nil {
		return common.NULL_INODE, err
	}
	if err := v.qCheckSuperBlock(&v.sb); err != nil {
		return common.NULL_INODE, err
	}
	if err := v.qCheckInT(&v.sb); err != nil {
		return common.NULL_INODE, err
	}

	if v.sb.IFree == 0 {
		return common.NULL_INODE, common.ENOSPC
	}

	nInode := v.sb.IHead

	nBlk, offset := convertRefInT(nInode)
	if err := v.loadBlockInT(nBlk); err != nil {
		return common.NULL_INODE, err
	}
	ip := &v.getBlockInT()[offset]

	// A dirty head still references its former clusters; clean it
	// before reuse.
	if err := v.qCheckFCInode(ip); err != nil {
		if err := v.CleanInode(nInode); err != nil {
			return common.NULL_INODE, err
		}
		if err := v.loadSuperBlock(); err != nil {
			return common.NULL_INODE, err
		}
		if err := v.loadBlockInT(nBlk); err != nil {
			return common.NULL_INODE, err
		}
		ip = &v.getBlockInT()[offset]
	}

	next := ip.VD1

	ip.Mode = typ
	ip.RefCount = 0
	ip.Owner = v.uid
	ip.Group = v.gid
	ip.Size = 0
	ip.CluCount = 0
	ip.VD1 = now()
	ip.VD2 = ip.VD1
	for i := 0; i < common.N_DIRECT; i++ {
		ip.D[i] = common.NULL_CLUSTER
	}
	ip.I1 = common.NULL_CLUSTER
	ip.I2 = common.NULL_CLUSTER

	if err := v.storeBlockInT(); err != nil {
		return common.NULL_INODE, err
	}

	// Unlink the head from the free list.
	if v.sb.IFree == 1 {
		v.sb.IHead = common.NULL_INODE
		v.sb.ITail = common.NULL_INODE
	} else {
		v.sb.IHead = next
		nBlk, offset = convertRefInT(next)
		if err := v.loadBlockInT(nBlk); err != nil {
			return common.NULL_INODE, err
		}
		v.getBlockInT()[offset].VD2 = common.NULL_INODE
		if err := v.storeBlockInT(); err != nil {
			return common.NULL_INODE, err
		}
	}
	v.sb.IFree--

	if err := v.storeSuperBlock(); err != nil {
		return common.NULL_INODE, err
	}
	return nInode, nil
}

// FreeInode inserts the referenced inode at the tail of the free list
// in the dirty state. The inode must be in use, belong to a legal file
// type and have no directory entries associated with it. Its cluster
// references are left untouched; releasing them is the job of the
// subsequent CleanInode. Inode 0 can never be freed.
func (v *Volume) FreeInode(nInode uint32) error {
	debug.Probe(612, "07;31", "FreeInode (%d)\n", nInode)

	if err := v.loadSuperBlock(); err != nil {
		return err
	}
	if nInode == 0 || nInode >= v.sb.ITotal {
		return common.EINVAL
	}
	if err := v.qCheckInT(&v.sb); err != nil {
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
	if ip.RefCount != 0 {
		return common.EINVAL
	}

	ip.Mode |= common.INODE_FREE

	if v.sb.IFree == 0 {
		ip.VD2 = common.NULL_INODE
		ip.VD1 = common.NULL_INODE
		if err := v.storeBlockInT(); err != nil {
			return err
		}
		v.sb.IHead = nInode
		v.sb.ITail = nInode
	} else {
		ip.VD2 = v.sb.ITail
		ip.VD1 = common.NULL_INODE
		if err := v.storeBlockInT(); err != nil {
			return err
		}

		// Patch the old tail to point at the newcomer.
		nBlk, offset = convertRefInT(v.sb.ITail)
		if err := v.loadBlockInT(nBlk); err != nil {
			return err
		}
		v.getBlockInT()[offset].VD1 = nInode
		if err := v.storeBlockInT(); err != nil {
			return err
		}

		v.sb.ITail = nInode
	}
	v.sb.IFree++

	return v.storeSuperBlock()
}

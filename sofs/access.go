package sofs

import (
	"github.com/veronicapr/sofs14/common"
	"github.com/veronicapr/sofs14/debug"
)

// AccessGranted checks the requested operations (a mask of R, W and X)
// against the permission bits of the inode for the identity the volume
// was mounted with. The superuser obtains R and W unconditionally and
// X whenever any of the three execute bits is set.
func (v *Volume) AccessGranted(nInode uint32, opRequested uint32) error {
	debug.Probe(514, "07;31", "AccessGranted (%d, %d)\n", nInode, opRequested)

	if opRequested < 1 || opRequested > 7 {
		return common.EINVAL
	}
	if err := v.loadSuperBlock(); err != nil {
		return err
	}
	if nInode >= v.sb.ITotal {
		return common.EINVAL
	}

	ip, err := v.ReadInode(nInode, IUIN)
	if err != nil {
		return err
	}

	if v.uid == 0 {
		if opRequested&common.X != 0 {
			anyX := common.INODE_EX_USR | common.INODE_EX_GRP | common.INODE_EX_OTH
			if ip.Mode&anyX == 0 {
				return common.EACCES
			}
		}
		return nil
	}

	var rd, wr, ex uint16
	switch {
	case v.uid == ip.Owner:
		rd, wr, ex = common.INODE_RD_USR, common.INODE_WR_USR, common.INODE_EX_USR
	case v.gid == ip.Group:
		rd, wr, ex = common.INODE_RD_GRP, common.INODE_WR_GRP, common.INODE_EX_GRP
	default:
		rd, wr, ex = common.INODE_RD_OTH, common.INODE_WR_OTH, common.INODE_EX_OTH
	}

	if opRequested&common.R != 0 && ip.Mode&rd == 0 {
		return common.EACCES
	}
	if opRequested&common.W != 0 && ip.Mode&wr == 0 {
		return common.EACCES
	}
	if opRequested&common.X != 0 && ip.Mode&ex == 0 {
		return common.EACCES
	}
	return nil
}

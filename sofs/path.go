package sofs

import (
	"path"

	"github.com/veronicapr/sofs14/common"
	"github.com/veronicapr/sofs14/debug"
)

// resolver carries the per-call state of one path resolution. Keeping
// the symbolic link budget here, rather than in volume-wide state,
// makes consecutive resolutions independent of each other.
type resolver struct {
	nSymLinks int
}

// How many symbolic link expansions a single resolution may perform.
const maxSymLinks = 1

// GetDirEntryByPath resolves an absolute path and returns the inode of
// the directory holding the final entry together with the inode of the
// entry itself. Symbolic links found along the way, including one in
// the final position, are expanded; a chain needing more than one
// expansion fails with ELOOP. Resolving "/" yields inode 0 twice.
func (v *Volume) GetDirEntryByPath(ePath string) (uint32, uint32, error) {
	debug.Probe(311, "07;31", "GetDirEntryByPath (%q)\n", ePath)

	if ePath == "" {
		return common.NULL_INODE, common.NULL_INODE, common.EINVAL
	}
	if ePath[0] != '/' {
		return common.NULL_INODE, common.NULL_INODE, common.ERELPATH
	}
	if len(ePath) > common.MAX_PATH {
		return common.NULL_INODE, common.NULL_INODE, common.ENAMETOOLONG
	}

	var res resolver
	return v.traversePath(ePath, &res)
}

// traversePath recursively resolves ePath: the directory prefix first,
// then the final component inside it.
func (v *Volume) traversePath(ePath string, res *resolver) (uint32, uint32, error) {
	dirPath := path.Dir(ePath)
	name := path.Base(ePath)

	var nInodeDir uint32
	if dirPath == "/" {
		if name == "/" {
			name = "."
		}
		nInodeDir = 0
	} else {
		_, ent, err := v.traversePath(dirPath, res)
		if err != nil {
			return common.NULL_INODE, common.NULL_INODE, err
		}
		nInodeDir = ent
	}

	if len(name) > common.MAX_NAME {
		return common.NULL_INODE, common.NULL_INODE, common.ENAMETOOLONG
	}

	ip, err := v.ReadInode(nInodeDir, IUIN)
	if err != nil {
		return common.NULL_INODE, common.NULL_INODE, err
	}
	if !ip.IsDirectory() {
		return common.NULL_INODE, common.NULL_INODE, common.ENOTDIR
	}
	if err := v.qCheckDirCont(nInodeDir, &ip); err != nil {
		return common.NULL_INODE, common.NULL_INODE, err
	}
	if err := v.AccessGranted(nInodeDir, common.X); err != nil {
		return common.NULL_INODE, common.NULL_INODE, err
	}

	nInodeEnt, _, err := v.GetDirEntryByName(nInodeDir, name)
	if err != nil {
		return common.NULL_INODE, common.NULL_INODE, err
	}

	entIp, err := v.ReadInode(nInodeEnt, IUIN)
	if err != nil {
		return common.NULL_INODE, common.NULL_INODE, err
	}
	if entIp.IsSymlink() {
		if res.nSymLinks >= maxSymLinks {
			return common.NULL_INODE, common.NULL_INODE, common.ELOOP
		}
		res.nSymLinks++

		target, err := v.readSymlinkTarget(nInodeEnt, &entIp)
		if err != nil {
			return common.NULL_INODE, common.NULL_INODE, err
		}
		if target == "" {
			return common.NULL_INODE, common.NULL_INODE, common.EDEINVAL
		}
		if target[0] != '/' {
			target = path.Join(dirPath, target)
		}
		if len(target) > common.MAX_PATH {
			return common.NULL_INODE, common.NULL_INODE, common.ENAMETOOLONG
		}
		return v.traversePath(target, res)
	}

	return nInodeDir, nInodeEnt, nil
}

// readSymlinkTarget reads the target path stored in the single data
// cluster of a symbolic link inode.
func (v *Volume) readSymlinkTarget(nInode uint32, ip *common.Inode) (string, error) {
	if ip.Size == 0 || ip.Size > common.BSLPC {
		return "", common.EDEINVAL
	}
	var dc common.DataClust
	if err := v.ReadFileCluster(nInode, 0, &dc); err != nil {
		return "", err
	}
	return string(dc.Info[:ip.Size]), nil
}

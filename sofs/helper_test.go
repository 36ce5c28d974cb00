package sofs_test

import (
	"testing"

	"github.com/veronicapr/sofs14/common"
	"github.com/veronicapr/sofs14/sofs"
	. "github.com/veronicapr/sofs14/testutils"
)

// makeNode allocates an inode of the given type with the given
// permission bits.
func makeNode(test *testing.T, vol *sofs.Volume, typ uint16, perm uint16) uint32 {
	nInode, err := vol.AllocInode(typ)
	if err != nil {
		FatalHere(test, "Failed allocating inode: %s", err)
	}
	ip, err := vol.ReadInode(nInode, sofs.IUIN)
	if err != nil {
		FatalHere(test, "Failed reading fresh inode: %s", err)
	}
	ip.Mode |= perm
	if err := vol.WriteInode(&ip, nInode, sofs.IUIN); err != nil {
		FatalHere(test, "Failed setting permissions: %s", err)
	}
	return nInode
}

// makeDir creates a directory with mode 0755 and binds it under the
// parent.
func makeDir(test *testing.T, vol *sofs.Volume, parent uint32, name string) uint32 {
	nInode := makeNode(test, vol, common.INODE_DIR, 0755)
	if err := vol.AddAttDirEntry(parent, name, nInode, sofs.ADD); err != nil {
		FatalHere(test, "Failed adding directory %q: %s", name, err)
	}
	return nInode
}

// makeFile creates a regular file with mode 0644 and binds it under
// the parent.
func makeFile(test *testing.T, vol *sofs.Volume, parent uint32, name string) uint32 {
	nInode := makeNode(test, vol, common.INODE_FILE, 0644)
	if err := vol.AddAttDirEntry(parent, name, nInode, sofs.ADD); err != nil {
		FatalHere(test, "Failed adding file %q: %s", name, err)
	}
	return nInode
}

// makeSymlink creates a symbolic link holding target and binds it
// under the parent.
func makeSymlink(test *testing.T, vol *sofs.Volume, parent uint32, name, target string) uint32 {
	nInode := makeNode(test, vol, common.INODE_SYMLINK, 0777)

	var dc common.DataClust
	copy(dc.Info[:], target)
	if err := vol.WriteFileCluster(nInode, 0, &dc); err != nil {
		FatalHere(test, "Failed writing symlink target: %s", err)
	}
	ip, err := vol.ReadInode(nInode, sofs.IUIN)
	if err != nil {
		FatalHere(test, "Failed reading symlink inode: %s", err)
	}
	ip.Size = uint32(len(target))
	if err := vol.WriteInode(&ip, nInode, sofs.IUIN); err != nil {
		FatalHere(test, "Failed setting symlink size: %s", err)
	}

	if err := vol.AddAttDirEntry(parent, name, nInode, sofs.ADD); err != nil {
		FatalHere(test, "Failed adding symlink %q: %s", name, err)
	}
	return nInode
}

// readInode fetches an inode in use or dies.
func readInode(test *testing.T, vol *sofs.Volume, nInode uint32) common.Inode {
	ip, err := vol.ReadInode(nInode, sofs.IUIN)
	if err != nil {
		FatalHere(test, "Failed reading inode %d: %s", nInode, err)
	}
	return ip
}

package sofs

import (
	"strings"

	"github.com/veronicapr/sofs14/common"
	"github.com/veronicapr/sofs14/debug"
)

// Operations for AddAttDirEntry.
const (
	ADD uint32 = iota
	ATTACH
)

// Operations for RemDetachDirEntry.
const (
	REM uint32 = iota
	DETACH
)

func checkEntryName(name string) error {
	if name == "" || strings.ContainsRune(name, '/') {
		return common.EINVAL
	}
	if len(name) > common.MAX_NAME {
		return common.ENAMETOOLONG
	}
	return nil
}

// GetDirEntryByName scans the directory for an entry with the given
// name and returns the inode it references together with the entry
// index. When the name is absent it returns ENOENT and, as the index,
// the first clean slot found during the scan (or one past the current
// end of the directory when no clean slot exists), so the caller can
// place a new entry without a second scan.
func (v *Volume) GetDirEntryByName(nInodeDir uint32, name string) (uint32, uint32, error) {
	debug.Probe(312, "07;31", "GetDirEntryByName (%d, %q)\n", nInodeDir, name)

	if err := v.loadSuperBlock(); err != nil {
		return common.NULL_INODE, 0, err
	}
	if nInodeDir >= v.sb.ITotal {
		return common.NULL_INODE, 0, common.EINVAL
	}
	if err := checkEntryName(name); err != nil {
		return common.NULL_INODE, 0, err
	}

	ip, err := v.ReadInode(nInodeDir, IUIN)
	if err != nil {
		return common.NULL_INODE, 0, err
	}
	if !ip.IsDirectory() {
		return common.NULL_INODE, 0, common.ENOTDIR
	}
	if err := v.qCheckDirCont(nInodeDir, &ip); err != nil {
		return common.NULL_INODE, 0, err
	}
	if err := v.AccessGranted(nInodeDir, common.X); err != nil {
		return common.NULL_INODE, 0, err
	}

	var dc common.DataClust
	freeIdx := uint32(0)
	haveFree := false

	nClusters := ip.Size / (common.DPC * common.DIRENT_SIZE)
	for idxCluster := uint32(0); idxCluster < nClusters; idxCluster++ {
		if err := v.ReadFileCluster(nInodeDir, idxCluster, &dc); err != nil {
			return common.NULL_INODE, 0, err
		}
		for idxEntry := 0; idxEntry < common.DPC; idxEntry++ {
			de := dc.DirEntryAt(idxEntry)
			if de.IsInUse() && de.EntryName() == name {
				return de.NInode, idxCluster*common.DPC + uint32(idxEntry), nil
			}
			if de.IsClean() && !haveFree {
				haveFree = true
				freeIdx = idxCluster*common.DPC + uint32(idxEntry)
			}
		}
	}

	if !haveFree {
		freeIdx = ip.CluCount * common.DPC
	}
	return common.NULL_INODE, freeIdx, common.ENOENT
}

// AddAttDirEntry adds (ADD) or attaches (ATTACH) a directory entry
// binding name to nInodeEnt inside nInodeDir. Adding a directory
// initializes its first cluster with the "." and ".." entries; both
// variants adjust the reference counts of the entry inode and, for
// directories, of the parent.
func (v *Volume) AddAttDirEntry(nInodeDir uint32, name string, nInodeEnt uint32, op uint32) error {
	debug.Probe(313, "07;31", "AddAttDirEntry (%d, %q, %d, %d)\n", nInodeDir, name, nInodeEnt, op)

	if op != ADD && op != ATTACH {
		return common.EINVAL
	}
	if err := v.loadSuperBlock(); err != nil {
		return err
	}
	if nInodeDir >= v.sb.ITotal || nInodeEnt >= v.sb.ITotal {
		return common.EINVAL
	}
	if err := checkEntryName(name); err != nil {
		return err
	}

	inodeDir, err := v.ReadInode(nInodeDir, IUIN)
	if err != nil {
		return err
	}
	if !inodeDir.IsDirectory() {
		return common.ENOTDIR
	}
	if inodeDir.RefCount >= common.MAX_DIR_LINKS {
		return common.EMLINK
	}
	if err := v.AccessGranted(nInodeDir, common.X); err != nil {
		return err
	}
	if err := v.AccessGranted(nInodeDir, common.W); err != nil {
		return err
	}

	_, idx, err := v.GetDirEntryByName(nInodeDir, name)
	if err == nil {
		return common.EEXIST
	}
	if err != common.ENOENT {
		return err
	}

	inodeEnt, err := v.ReadInode(nInodeEnt, IUIN)
	if err != nil {
		return err
	}

	switch inodeEnt.Type() {
	case common.INODE_DIR:
		if op == ATTACH && inodeEnt.RefCount >= common.MAX_DIR_LINKS {
			return common.EMLINK
		}

		var dcEnt common.DataClust
		if op == ATTACH {
			// Re-assert "." and ".." over the existing content.
			if err := v.ReadFileCluster(nInodeEnt, 0, &dcEnt); err != nil {
				return err
			}
		}
		var de common.DirEntry
		de.SetEntryName(".")
		de.NInode = nInodeEnt
		dcEnt.PutDirEntryAt(0, de)
		de.SetEntryName("..")
		de.NInode = nInodeDir
		dcEnt.PutDirEntryAt(1, de)
		if op == ADD {
			for i := 2; i < common.DPC; i++ {
				de.Clear()
				dcEnt.PutDirEntryAt(i, de)
			}
		}
		if err := v.WriteFileCluster(nInodeEnt, 0, &dcEnt); err != nil {
			return err
		}

		// The cluster write may have allocated the child's first
		// cluster; refresh the image before touching it.
		if inodeEnt, err = v.ReadInode(nInodeEnt, IUIN); err != nil {
			return err
		}
		inodeEnt.RefCount += 2
		if op == ADD {
			inodeEnt.Size = common.DPC * common.DIRENT_SIZE
		}
		inodeDir.RefCount++

	case common.INODE_FILE, common.INODE_SYMLINK:
		if inodeEnt.RefCount >= common.MAX_FILE_LINKS {
			return common.EMLINK
		}
		inodeEnt.RefCount++

	default:
		return common.EIUININVAL
	}

	clustInd := idx / common.DPC
	entInd := int(idx % common.DPC)

	var dc common.DataClust
	if err := v.ReadFileCluster(nInodeDir, clustInd, &dc); err != nil {
		return err
	}
	var de common.DirEntry
	de.SetEntryName(name)
	de.NInode = nInodeEnt
	dc.PutDirEntryAt(entInd, de)

	// A slot at the start of a cluster beyond the current end means a
	// freshly materialized cluster: clean-fill the remainder and grow
	// the directory by one cluster's worth of entries.
	if entInd == 0 && clustInd >= inodeDir.Size/(common.DPC*common.DIRENT_SIZE) {
		for j := 1; j < common.DPC; j++ {
			de.Clear()
			dc.PutDirEntryAt(j, de)
		}
		inodeDir.Size += common.DPC * common.DIRENT_SIZE
	}

	if err := v.WriteInode(&inodeDir, nInodeDir, IUIN); err != nil {
		return err
	}
	if err := v.WriteFileCluster(nInodeDir, clustInd, &dc); err != nil {
		return err
	}
	return v.WriteInode(&inodeEnt, nInodeEnt, IUIN)
}

// RemDetachDirEntry removes (REM) or detaches (DETACH) the entry with
// the given name from the directory. REM leaves a deleted entry that
// still remembers its name and, when the last hard link goes away,
// frees the entry inode's cluster tree and the inode itself; DETACH
// resets the entry to the clean state and never releases storage.
func (v *Volume) RemDetachDirEntry(nInodeDir uint32, name string, op uint32) error {
	debug.Probe(314, "07;31", "RemDetachDirEntry (%d, %q, %d)\n", nInodeDir, name, op)

	if op != REM && op != DETACH {
		return common.EINVAL
	}
	if err := v.loadSuperBlock(); err != nil {
		return err
	}
	if nInodeDir >= v.sb.ITotal {
		return common.EINVAL
	}
	if err := checkEntryName(name); err != nil {
		return err
	}

	inodeDir, err := v.ReadInode(nInodeDir, IUIN)
	if err != nil {
		return err
	}
	if !inodeDir.IsDirectory() {
		return common.ENOTDIR
	}
	if err := v.qCheckDirCont(nInodeDir, &inodeDir); err != nil {
		return err
	}
	if err := v.AccessGranted(nInodeDir, common.X); err != nil {
		return common.EACCES
	}
	if err := v.AccessGranted(nInodeDir, common.W); err != nil {
		return common.EPERM
	}

	nInodeEnt, dirIdx, err := v.GetDirEntryByName(nInodeDir, name)
	if err != nil {
		return err
	}
	inodeEnt, err := v.ReadInode(nInodeEnt, IUIN)
	if err != nil {
		return err
	}

	clustInd := dirIdx / common.DPC
	entInd := int(dirIdx % common.DPC)

	if op == REM && inodeEnt.IsDirectory() {
		if err := v.CheckDirectoryEmptiness(nInodeEnt); err != nil {
			return err
		}
	}

	var dc common.DataClust
	if err := v.ReadFileCluster(nInodeDir, clustInd, &dc); err != nil {
		return err
	}
	de := dc.DirEntryAt(entInd)
	if op == REM {
		de.MarkDeleted()
	} else {
		de.Clear()
	}
	dc.PutDirEntryAt(entInd, de)
	if err := v.WriteFileCluster(nInodeDir, clustInd, &dc); err != nil {
		return err
	}

	if inodeEnt.IsDirectory() {
		inodeEnt.RefCount -= 2
		inodeDir.RefCount--
	} else {
		inodeEnt.RefCount--
	}

	if err := v.WriteInode(&inodeEnt, nInodeEnt, IUIN); err != nil {
		return err
	}

	// The last link is gone: release the cluster tree into the dirty
	// state and park the inode on the free list.
	if op == REM && inodeEnt.RefCount == 0 {
		if err := v.HandleFileClusters(nInodeEnt, 0, FREE); err != nil {
			return err
		}
		if err := v.FreeInode(nInodeEnt); err != nil {
			return err
		}
	}

	return v.WriteInode(&inodeDir, nInodeDir, IUIN)
}

// RenameDirEntry changes the name of the entry holding oldName to
// newName, which must not be present in the directory yet.
func (v *Volume) RenameDirEntry(nInodeDir uint32, oldName string, newName string) error {
	debug.Probe(315, "07;31", "RenameDirEntry (%d, %q, %q)\n", nInodeDir, oldName, newName)

	if err := v.loadSuperBlock(); err != nil {
		return err
	}
	if nInodeDir >= v.sb.ITotal {
		return common.EINVAL
	}
	if err := checkEntryName(oldName); err != nil {
		return err
	}
	if err := checkEntryName(newName); err != nil {
		return err
	}

	inodeDir, err := v.ReadInode(nInodeDir, IUIN)
	if err != nil {
		return err
	}
	if !inodeDir.IsDirectory() {
		return common.ENOTDIR
	}
	if err := v.AccessGranted(nInodeDir, common.X); err != nil {
		return common.EACCES
	}
	if err := v.AccessGranted(nInodeDir, common.W); err != nil {
		return common.EPERM
	}

	_, idx, err := v.GetDirEntryByName(nInodeDir, oldName)
	if err != nil {
		return err
	}
	if _, _, err := v.GetDirEntryByName(nInodeDir, newName); err == nil {
		return common.EEXIST
	} else if err != common.ENOENT {
		return err
	}

	clustInd := idx / common.DPC
	entInd := int(idx % common.DPC)

	var dc common.DataClust
	if err := v.ReadFileCluster(nInodeDir, clustInd, &dc); err != nil {
		return err
	}
	de := dc.DirEntryAt(entInd)
	de.SetEntryName(newName)
	dc.PutDirEntryAt(entInd, de)
	return v.WriteFileCluster(nInodeDir, clustInd, &dc)
}

// CheckDirectoryEmptiness reports ENOTEMPTY unless every entry beyond
// "." and ".." is clean or deleted.
func (v *Volume) CheckDirectoryEmptiness(nInodeDir uint32) error {
	debug.Probe(316, "07;31", "CheckDirectoryEmptiness (%d)\n", nInodeDir)

	if err := v.loadSuperBlock(); err != nil {
		return err
	}
	if nInodeDir >= v.sb.ITotal {
		return common.EINVAL
	}

	ip, err := v.ReadInode(nInodeDir, IUIN)
	if err != nil {
		return err
	}
	if !ip.IsDirectory() {
		return common.ENOTDIR
	}
	if err := v.qCheckDirCont(nInodeDir, &ip); err != nil {
		return err
	}

	var dc common.DataClust
	nClusters := ip.Size / (common.DPC * common.DIRENT_SIZE)
	for idxCluster := uint32(0); idxCluster < nClusters; idxCluster++ {
		if err := v.ReadFileCluster(nInodeDir, idxCluster, &dc); err != nil {
			return err
		}
		first := 0
		if idxCluster == 0 {
			first = 2 // "." and ".."
		}
		for idxEntry := first; idxEntry < common.DPC; idxEntry++ {
			if de := dc.DirEntryAt(idxEntry); de.IsInUse() {
				return common.ENOTEMPTY
			}
		}
	}
	return nil
}

package sofs

import (
	"fmt"

	"github.com/veronicapr/sofs14/common"
)

// Quick structural checks. These are cheap predicates run at operation
// entry points; a failure means the volume is damaged and surfaces to
// the caller unchanged. The exhaustive walks live in CheckVolume.

func (v *Volume) qCheckSuperBlock(sb *common.SuperBlock) error {
	if sb == nil {
		return common.EINVAL
	}
	if sb.Magic != common.MAGIC_NUMBER || sb.Version != common.VERSION_NUMBER {
		return common.ESBHINVAL
	}
	if sb.MStat != common.PRU && sb.MStat != common.NPRU {
		return common.ESBHINVAL
	}
	if sb.ITableStart != 1 || sb.ITableSize == 0 || sb.ITotal != sb.ITableSize*common.IPB {
		return common.ESBTINPINVAL
	}
	if err := v.qCheckInT(sb); err != nil {
		return err
	}
	return v.qCheckDZ(sb)
}

func (v *Volume) qCheckInT(sb *common.SuperBlock) error {
	if sb.IFree > sb.ITotal-1 {
		return common.ESBTINPINVAL
	}
	if sb.IFree == 0 {
		if sb.IHead != common.NULL_INODE || sb.ITail != common.NULL_INODE {
			return common.ETINDLLINVAL
		}
		return nil
	}
	if sb.IHead >= sb.ITotal || sb.ITail >= sb.ITotal {
		return common.ETINDLLINVAL
	}
	return nil
}

func (v *Volume) qCheckDZ(sb *common.SuperBlock) error {
	if sb.DZoneStart != sb.ITableStart+sb.ITableSize {
		return common.ESBDZINVAL
	}
	if sb.DZoneFree > sb.DZoneTotal-1 {
		return common.ESBDZINVAL
	}

	retriev := &sb.DZoneRetriev
	if retriev.CacheIdx > common.DZONE_CACHE_SIZE {
		return common.ESBFCCINVAL
	}
	for i := retriev.CacheIdx; i < common.DZONE_CACHE_SIZE; i++ {
		if retriev.Cache[i] == common.NULL_CLUSTER || retriev.Cache[i] >= sb.DZoneTotal {
			return common.ESBFCCINVAL
		}
	}

	insert := &sb.DZoneInsert
	if insert.CacheIdx > common.DZONE_CACHE_SIZE {
		return common.ESBFCCINVAL
	}
	for i := uint32(0); i < insert.CacheIdx; i++ {
		if insert.Cache[i] == common.NULL_CLUSTER || insert.Cache[i] >= sb.DZoneTotal {
			return common.ESBFCCINVAL
		}
	}

	if sb.DHead == common.NULL_CLUSTER != (sb.DTail == common.NULL_CLUSTER) {
		return common.EFCDLLINVAL
	}
	if sb.DHead != common.NULL_CLUSTER && (sb.DHead >= sb.DZoneTotal || sb.DTail >= sb.DZoneTotal) {
		return common.EFCDLLINVAL
	}
	return nil
}

func refInRange(ref uint32, total uint32) bool {
	return ref == common.NULL_CLUSTER || ref < total
}

// qCheckInodeIU verifies an inode in use: free bit clear, a legal file
// type, a link count within the ceiling of its type and every cluster
// reference either NULL or inside the data zone.
func (v *Volume) qCheckInodeIU(ip *common.Inode) error {
	if ip == nil {
		return common.EINVAL
	}
	if ip.IsFree() || !ip.LegalType() {
		return common.EIUININVAL
	}
	if ip.IsDirectory() && ip.RefCount > common.MAX_DIR_LINKS {
		return common.EIUININVAL
	}
	if ip.CluCount > common.MAX_FILE_CLUSTERS {
		return common.EIUININVAL
	}
	for i := 0; i < common.N_DIRECT; i++ {
		if !refInRange(ip.D[i], v.sb.DZoneTotal) {
			return common.ELDCININVAL
		}
	}
	if !refInRange(ip.I1, v.sb.DZoneTotal) || !refInRange(ip.I2, v.sb.DZoneTotal) {
		return common.ELDCININVAL
	}
	return nil
}

// qCheckFInode verifies that an inode is free, in either state.
func (v *Volume) qCheckFInode(ip *common.Inode) error {
	if ip == nil {
		return common.EINVAL
	}
	if !ip.IsFree() {
		return common.EFININVAL
	}
	return nil
}

// qCheckFCInode verifies a free inode in the clean state: no cluster
// references left and nothing counted. A failure on a free inode means
// it is still dirty.
func (v *Volume) qCheckFCInode(ip *common.Inode) error {
	if err := v.qCheckFInode(ip); err != nil {
		return err
	}
	if ip.RefCount != 0 || ip.CluCount != 0 {
		return common.EFCININVAL
	}
	for i := 0; i < common.N_DIRECT; i++ {
		if ip.D[i] != common.NULL_CLUSTER {
			return common.EFCININVAL
		}
	}
	if ip.I1 != common.NULL_CLUSTER || ip.I2 != common.NULL_CLUSTER {
		return common.EFCININVAL
	}
	return nil
}

// qCheckFDInode verifies a free inode in the dirty state: the free bit
// set and the free-list link fields in range or NULL.
func (v *Volume) qCheckFDInode(ip *common.Inode) error {
	if err := v.qCheckFInode(ip); err != nil {
		return err
	}
	if ip.VD1 != common.NULL_INODE && ip.VD1 >= v.sb.ITotal {
		return common.EFDININVAL
	}
	if ip.VD2 != common.NULL_INODE && ip.VD2 >= v.sb.ITotal {
		return common.EFDININVAL
	}
	return nil
}

// qCheckStatDC classifies the allocation status of a data cluster:
// ALLOC_CLT for a cluster attached to a file, FREE_CLT for one that is
// free, whether clean or parked dirty in one of the caches.
func (v *Volume) qCheckStatDC(nClust uint32) (uint32, error) {
	if nClust >= v.sb.DZoneTotal {
		return 0, common.EINVAL
	}

	var dc common.DataClust
	if err := v.readCacheCluster(v.clusterFBlock(nClust), &dc); err != nil {
		return 0, err
	}
	if dc.Stat != common.NULL_INODE && dc.Stat >= v.sb.ITotal {
		return 0, common.EDCINVAL
	}

	if dc.Stat == common.NULL_INODE {
		return common.FREE_CLT, nil
	}

	// A dirty free cluster keeps its stat field; the caches tell it
	// apart from an allocated one.
	for i := v.sb.DZoneRetriev.CacheIdx; i < common.DZONE_CACHE_SIZE; i++ {
		if v.sb.DZoneRetriev.Cache[i] == nClust {
			return common.FREE_CLT, nil
		}
	}
	for i := uint32(0); i < v.sb.DZoneInsert.CacheIdx; i++ {
		if v.sb.DZoneInsert.Cache[i] == nClust {
			return common.FREE_CLT, nil
		}
	}
	return common.ALLOC_CLT, nil
}

// qCheckDirCont verifies the shape of a directory: a size that is a
// whole number of entry clusters and the "." and ".." entries in the
// first two slots.
func (v *Volume) qCheckDirCont(nInodeDir uint32, ip *common.Inode) error {
	if ip.Size%(common.DPC*common.DIRENT_SIZE) != 0 || ip.Size == 0 {
		return common.EDIRINVAL
	}

	nLClust, err := v.HandleFileCluster(nInodeDir, 0, GET)
	if err != nil {
		return err
	}
	if nLClust == common.NULL_CLUSTER {
		return common.EDIRINVAL
	}
	var dc common.DataClust
	if err := v.readCacheCluster(v.clusterFBlock(nLClust), &dc); err != nil {
		return err
	}

	dot := dc.DirEntryAt(0)
	dotdot := dc.DirEntryAt(1)
	if dot.EntryName() != "." || dot.NInode != nInodeDir {
		return common.EDIRINVAL
	}
	if dotdot.EntryName() != ".." || dotdot.NInode == common.NULL_INODE {
		return common.EDIRINVAL
	}
	return nil
}

// CheckVolume performs the exhaustive structural verification of the
// volume: superblock totals against real list lengths, the free-inode
// list, the free-cluster repository, and for every inode in use the
// whole reference index with its stat associations, cluster chain
// links, cluster count and directory shape. It returns a description
// of every violation found.
func (v *Volume) CheckVolume() []string {
	var problems []string
	report := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if err := v.loadSuperBlock(); err != nil {
		return []string{"superblock unreadable: " + err.Error()}
	}
	sb := v.sb
	if err := v.qCheckSuperBlock(&sb); err != nil {
		report("superblock: %s", err)
		return problems
	}

	// Free inode list walk.
	count := uint32(0)
	seen := make(map[uint32]bool)
	for cur := sb.IHead; cur != common.NULL_INODE; {
		if cur >= sb.ITotal || seen[cur] {
			report("free inode list: bad or repeated reference %d", cur)
			break
		}
		seen[cur] = true
		count++

		nBlk, offset := convertRefInT(cur)
		if err := v.loadBlockInT(nBlk); err != nil {
			report("free inode list: inode %d unreadable", cur)
			break
		}
		ip := v.getBlockInT()[offset]
		if !ip.IsFree() {
			report("free inode list: inode %d is not free", cur)
		}
		if ip.VD1 == common.NULL_INODE && cur != sb.ITail {
			report("free inode list: early tail at inode %d", cur)
		}
		cur = ip.VD1
	}
	if count != sb.IFree {
		report("iFree is %d but the free list holds %d inodes", sb.IFree, count)
	}

	// Free cluster repository walk.
	listLen := uint32(0)
	seenClust := make(map[uint32]bool)
	prev := common.NULL_CLUSTER
	for cur := sb.DHead; cur != common.NULL_CLUSTER; {
		if cur >= sb.DZoneTotal || seenClust[cur] {
			report("free cluster list: bad or repeated reference %d", cur)
			break
		}
		seenClust[cur] = true
		listLen++

		var dc common.DataClust
		if err := v.readCacheCluster(v.clusterFBlock(cur), &dc); err != nil {
			report("free cluster list: cluster %d unreadable", cur)
			break
		}
		if dc.Prev != prev {
			report("free cluster list: cluster %d has prev %d, want %d", cur, dc.Prev, prev)
		}
		if dc.Next == common.NULL_CLUSTER && cur != sb.DTail {
			report("free cluster list: early tail at cluster %d", cur)
		}
		prev = cur
		cur = dc.Next
	}

	retrievLive := uint32(common.DZONE_CACHE_SIZE) - sb.DZoneRetriev.CacheIdx
	insertLive := sb.DZoneInsert.CacheIdx
	if total := listLen + retrievLive + insertLive; total != sb.DZoneFree {
		report("dZoneFree is %d but repository+caches hold %d clusters",
			sb.DZoneFree, total)
	}

	// Per-inode reference index walks.
	for nInode := uint32(0); nInode < sb.ITotal; nInode++ {
		nBlk, offset := convertRefInT(nInode)
		if err := v.loadBlockInT(nBlk); err != nil {
			report("inode %d unreadable", nInode)
			continue
		}
		ip := v.getBlockInT()[offset]
		if ip.IsFree() {
			continue
		}
		if err := v.qCheckInodeIU(&ip); err != nil {
			report("inode %d: %s", nInode, err)
			continue
		}
		v.checkInodeIndex(nInode, &ip, report)
		if ip.IsDirectory() {
			if err := v.qCheckDirCont(nInode, &ip); err != nil {
				report("directory %d: %s", nInode, err)
			}
		}
	}

	return problems
}

// checkInodeIndex walks the whole reference index of an inode in use,
// verifying stat associations, the cluster count and the prev/next
// chain between logically adjacent clusters.
func (v *Volume) checkInodeIndex(nInode uint32, ip *common.Inode, report func(string, ...interface{})) {
	counted := uint32(0)

	type entry struct {
		ind    uint32
		nClust uint32
	}
	var data []entry

	checkStat := func(nClust uint32, what string) bool {
		var dc common.DataClust
		if err := v.readCacheCluster(v.clusterFBlock(nClust), &dc); err != nil {
			report("inode %d: %s cluster %d unreadable", nInode, what, nClust)
			return false
		}
		if dc.Stat != nInode {
			report("inode %d: %s cluster %d has stat %d", nInode, what, nClust, dc.Stat)
			return false
		}
		return true
	}

	for i := uint32(0); i < common.N_DIRECT; i++ {
		if ip.D[i] != common.NULL_CLUSTER {
			counted++
			if checkStat(ip.D[i], "data") {
				data = append(data, entry{i, ip.D[i]})
			}
		}
	}

	if ip.I1 != common.NULL_CLUSTER {
		counted++
		checkStat(ip.I1, "reference")
		var refs common.DataClust
		if err := v.readCacheCluster(v.clusterFBlock(ip.I1), &refs); err == nil {
			for i := 0; i < common.RPC; i++ {
				if refs.Ref(i) != common.NULL_CLUSTER {
					counted++
					if checkStat(refs.Ref(i), "data") {
						data = append(data, entry{common.N_DIRECT + uint32(i), refs.Ref(i)})
					}
				}
			}
		}
	}

	if ip.I2 != common.NULL_CLUSTER {
		counted++
		checkStat(ip.I2, "reference")
		var outer common.DataClust
		if err := v.readCacheCluster(v.clusterFBlock(ip.I2), &outer); err == nil {
			for j := 0; j < common.RPC; j++ {
				if outer.Ref(j) == common.NULL_CLUSTER {
					continue
				}
				counted++
				checkStat(outer.Ref(j), "reference")
				var inner common.DataClust
				if err := v.readCacheCluster(v.clusterFBlock(outer.Ref(j)), &inner); err != nil {
					continue
				}
				for i := 0; i < common.RPC; i++ {
					if inner.Ref(i) != common.NULL_CLUSTER {
						counted++
						if checkStat(inner.Ref(i), "data") {
							ind := common.N_DIRECT + common.RPC + uint32(j)*common.RPC + uint32(i)
							data = append(data, entry{ind, inner.Ref(i)})
						}
					}
				}
			}
		}
	}

	if counted != ip.CluCount {
		report("inode %d: cluCount is %d but the index holds %d clusters",
			nInode, ip.CluCount, counted)
	}

	// Adjacent logical indices must be chained; holes break the chain.
	byInd := make(map[uint32]uint32, len(data))
	for _, e := range data {
		byInd[e.ind] = e.nClust
	}
	for _, e := range data {
		var dc common.DataClust
		if err := v.readCacheCluster(v.clusterFBlock(e.nClust), &dc); err != nil {
			continue
		}
		wantPrev := common.NULL_CLUSTER
		if e.ind > 0 {
			if p, ok := byInd[e.ind-1]; ok {
				wantPrev = p
			}
		}
		wantNext := common.NULL_CLUSTER
		if p, ok := byInd[e.ind+1]; ok {
			wantNext = p
		}
		if dc.Prev != wantPrev {
			report("inode %d: cluster %d at index %d has prev %d, want %d",
				nInode, e.nClust, e.ind, dc.Prev, wantPrev)
		}
		if dc.Next != wantNext {
			report("inode %d: cluster %d at index %d has next %d, want %d",
				nInode, e.nClust, e.ind, dc.Next, wantNext)
		}
	}
}

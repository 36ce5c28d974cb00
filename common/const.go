package common

// On-disk layout constants. These must match between the formatter and
// the runtime; changing any of them produces a different, incompatible
// volume format.
const (
	BLOCK_SIZE         = 512 // smallest unit of device I/O, in bytes
	BLOCKS_PER_CLUSTER = 4   // blocks per allocation unit
	CLUSTER_SIZE       = BLOCK_SIZE * BLOCKS_PER_CLUSTER

	INODE_SIZE = 64                      // size of an inode record, in bytes
	IPB        = BLOCK_SIZE / INODE_SIZE // inodes per block

	N_DIRECT = 8 // direct cluster references in an inode

	// A data cluster carries a 12 byte header (prev, next, stat).
	CLUSTER_HEADER_SIZE = 12
	BSLPC               = CLUSTER_SIZE - CLUSTER_HEADER_SIZE // byte stream payload per cluster
	RPC                 = CLUSTER_SIZE/4 - 3                 // cluster references per cluster

	DIRENT_SIZE = 64           // size of a directory entry, in bytes
	DPC         = BSLPC / DIRENT_SIZE // directory entries per cluster

	MAX_FILE_CLUSTERS = N_DIRECT + RPC + RPC*RPC

	MAX_NAME = DIRENT_SIZE - 4 - 1 // bytes available for an entry name
	MAX_PATH = 255

	MAGIC_NUMBER   = 0x65FE
	VERSION_NUMBER = 0x2014

	PARTITION_NAME_SIZE = 23

	DZONE_CACHE_SIZE = 50 // entries in each free-cluster reference cache
)

// Sentinel references.
const (
	NULL_INODE   = ^uint32(0)
	NULL_CLUSTER = ^uint32(0)
)

// Superblock mount status values.
const (
	PRU  = 0 // properly unmounted
	NPRU = 1 // not properly unmounted
)

// Allocation status of a data cluster, as reported by the quick checks.
const (
	ALLOC_CLT = 0
	FREE_CLT  = 1
)

// Inode mode bits: the free flag, the type triad and the nine
// permission bits.
const (
	INODE_FREE    uint16 = 0x1000
	INODE_DIR     uint16 = 0x0800
	INODE_FILE    uint16 = 0x0400
	INODE_SYMLINK uint16 = 0x0200

	INODE_TYPE_MASK uint16 = INODE_DIR | INODE_FILE | INODE_SYMLINK

	INODE_RD_USR uint16 = 0400
	INODE_WR_USR uint16 = 0200
	INODE_EX_USR uint16 = 0100
	INODE_RD_GRP uint16 = 0040
	INODE_WR_GRP uint16 = 0020
	INODE_EX_GRP uint16 = 0010
	INODE_RD_OTH uint16 = 0004
	INODE_WR_OTH uint16 = 0002
	INODE_EX_OTH uint16 = 0001

	INODE_PERM_MASK uint16 = 0777
)

// Access operation masks for AccessGranted.
const (
	R uint32 = 0x4
	W uint32 = 0x2
	X uint32 = 0x1
)

// Hard-link ceilings. Directories stop two short of the refCount range
// so the pair of references gained on attach can never overflow.
const (
	MAX_FILE_LINKS = 0xFFFF
	MAX_DIR_LINKS  = 0xFFFF - 2
)

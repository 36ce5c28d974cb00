// Package debug provides the operation probes and structure dumps used
// while chasing volume corruption. Probes are numbered per operation
// and colour coded, and stay silent unless enabled.
package debug

import (
	"bytes"
	"fmt"
	"log"
	"os"

	"github.com/veronicapr/sofs14/common"
)

var (
	enabled = false
	out     = log.New(os.Stderr, "", 0)
)

// SetProbe turns probe output on or off.
func SetProbe(on bool) {
	enabled = on
}

// Probe logs one numbered, colour coded operation trace line.
func Probe(id int, color string, format string, args ...interface{}) {
	if !enabled {
		return
	}
	out.Printf("\x1b[%sm(%d)\x1b[0m %s", color, id, fmt.Sprintf(format, args...))
}

// PrintSuperBlock dumps the interesting superblock fields.
func PrintSuperBlock(sb *common.SuperBlock) {
	buf := bytes.NewBuffer(nil)
	fmt.Fprintf(buf, "Volume %q (magic %#x, version %#x)\n", sb.VolumeName(), sb.Magic, sb.Version)
	fmt.Fprintf(buf, "%d blocks, mstat %d\n", sb.NTotal, sb.MStat)
	fmt.Fprintf(buf, "inode table: start %d size %d total %d free %d head %d tail %d\n",
		sb.ITableStart, sb.ITableSize, sb.ITotal, sb.IFree, sb.IHead, sb.ITail)
	fmt.Fprintf(buf, "data zone: start %d total %d free %d head %d tail %d\n",
		sb.DZoneStart, sb.DZoneTotal, sb.DZoneFree, sb.DHead, sb.DTail)
	fmt.Fprintf(buf, "retrieval cache at %d, insertion cache at %d\n",
		sb.DZoneRetriev.CacheIdx, sb.DZoneInsert.CacheIdx)
	log.Printf("Superblock follows:\n%s", buf.String())
}

// PrintInode dumps one inode record.
func PrintInode(nInode uint32, ip *common.Inode) {
	buf := bytes.NewBuffer(nil)
	fmt.Fprintf(buf, "%8s %16s %8s %8s %8s\n", "INODE #", "MODE", "LINKS", "SIZE", "CLUSTERS")
	fmt.Fprintf(buf, "%8d %16b %8d %8d %8d\n", nInode, ip.Mode, ip.RefCount, ip.Size, ip.CluCount)
	fmt.Fprintf(buf, "d: %v i1: %d i2: %d\n", ip.D, ip.I1, ip.I2)
	log.Printf("Inode data follows:\n%s", buf.String())
}

// PrintDirCluster dumps the live entries of a directory cluster.
func PrintDirCluster(dc *common.DataClust) {
	buf := bytes.NewBuffer(nil)
	for i := 0; i < common.DPC; i++ {
		de := dc.DirEntryAt(i)
		if de.IsInUse() {
			fmt.Fprintf(buf, "Entry %8d: %q at inode %8d\n", i, de.EntryName(), de.NInode)
		}
	}
	log.Printf("Directory cluster follows:\n%s", buf.String())
}

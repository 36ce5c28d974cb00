// Package bcache implements the buffered block I/O facade: whole-block
// and whole-cluster reads and writes against a random access device,
// backed by a fixed-size write-back cache with an LRU eviction policy.
package bcache

import (
	"github.com/veronicapr/sofs14/common"
	"github.com/veronicapr/sofs14/device"
)

// A cache slot, decorated with the members needed for the LRU policy.
type lruBuf struct {
	blocknum uint32
	data     []byte
	dirty    bool
	valid    bool

	next *lruBuf // towards the most recently used slot
	prev *lruBuf // towards the least recently used slot
}

// LRUCache is a write-back block cache over a single device.
type LRUCache struct {
	dev device.RandDevice

	buf   []*lruBuf          // static list of cache slots
	index map[uint32]*lruBuf // block number to slot
	front *lruBuf            // least recently used slot
	rear  *lruBuf            // most recently used slot
}

// NewLRUCache creates a cache with the given number of slots over dev.
func NewLRUCache(dev device.RandDevice, numslots int) *LRUCache {
	cache := &LRUCache{
		dev:   dev,
		buf:   make([]*lruBuf, numslots),
		index: make(map[uint32]*lruBuf, numslots),
	}

	// Create all of the slots ahead of time and chain them up
	for i := 0; i < numslots; i++ {
		cache.buf[i] = &lruBuf{data: make([]byte, common.BLOCK_SIZE)}
	}
	for i := 1; i < numslots; i++ {
		cache.buf[i].prev = cache.buf[i-1]
		cache.buf[i-1].next = cache.buf[i]
	}
	cache.front = cache.buf[0]
	cache.rear = cache.buf[numslots-1]

	return cache
}

// unlink removes bp from the LRU chain.
func (c *LRUCache) unlink(bp *lruBuf) {
	if bp.prev != nil {
		bp.prev.next = bp.next
	} else {
		c.front = bp.next
	}
	if bp.next != nil {
		bp.next.prev = bp.prev
	} else {
		c.rear = bp.prev
	}
	bp.prev = nil
	bp.next = nil
}

// touch moves bp to the rear of the LRU chain (most recently used).
func (c *LRUCache) touch(bp *lruBuf) {
	if c.rear == bp {
		return
	}
	c.unlink(bp)
	bp.prev = c.rear
	c.rear.next = bp
	c.rear = bp
}

// getBlock fetches the slot holding bnum, loading it from the device
// and evicting the least recently used slot if necessary.
func (c *LRUCache) getBlock(bnum uint32, load bool) (*lruBuf, error) {
	if bp, ok := c.index[bnum]; ok {
		c.touch(bp)
		return bp, nil
	}

	// Not in the cache; reuse the least recently used slot
	bp := c.front
	if bp.valid {
		if bp.dirty {
			if err := c.writeback(bp); err != nil {
				return nil, err
			}
		}
		delete(c.index, bp.blocknum)
		bp.valid = false
	}

	if load {
		pos := int64(bnum) * common.BLOCK_SIZE
		if err := c.dev.Read(bp.data, pos); err != nil {
			return nil, common.EIO
		}
	}
	bp.blocknum = bnum
	bp.dirty = false
	bp.valid = true
	c.index[bnum] = bp
	c.touch(bp)
	return bp, nil
}

func (c *LRUCache) writeback(bp *lruBuf) error {
	pos := int64(bp.blocknum) * common.BLOCK_SIZE
	if err := c.dev.Write(bp.data, pos); err != nil {
		return common.EIO
	}
	bp.dirty = false
	return nil
}

// ReadBlock copies block bnum into buf, which must hold BLOCK_SIZE
// bytes.
func (c *LRUCache) ReadBlock(bnum uint32, buf []byte) error {
	if len(buf) != common.BLOCK_SIZE {
		return common.EINVAL
	}
	bp, err := c.getBlock(bnum, true)
	if err != nil {
		return err
	}
	copy(buf, bp.data)
	return nil
}

// WriteBlock replaces the contents of block bnum with buf. The write
// reaches the device on eviction or on Flush.
func (c *LRUCache) WriteBlock(bnum uint32, buf []byte) error {
	if len(buf) != common.BLOCK_SIZE {
		return common.EINVAL
	}
	bp, err := c.getBlock(bnum, false)
	if err != nil {
		return err
	}
	copy(bp.data, buf)
	bp.dirty = true
	return nil
}

// ReadCluster copies the cluster whose first block is fblock into buf,
// which must hold CLUSTER_SIZE bytes.
func (c *LRUCache) ReadCluster(fblock uint32, buf []byte) error {
	if len(buf) != common.CLUSTER_SIZE {
		return common.EINVAL
	}
	for i := 0; i < common.BLOCKS_PER_CLUSTER; i++ {
		off := i * common.BLOCK_SIZE
		if err := c.ReadBlock(fblock+uint32(i), buf[off:off+common.BLOCK_SIZE]); err != nil {
			return err
		}
	}
	return nil
}

// WriteCluster replaces the cluster whose first block is fblock.
func (c *LRUCache) WriteCluster(fblock uint32, buf []byte) error {
	if len(buf) != common.CLUSTER_SIZE {
		return common.EINVAL
	}
	for i := 0; i < common.BLOCKS_PER_CLUSTER; i++ {
		off := i * common.BLOCK_SIZE
		if err := c.WriteBlock(fblock+uint32(i), buf[off:off+common.BLOCK_SIZE]); err != nil {
			return err
		}
	}
	return nil
}

// Flush writes every dirty slot back to the device.
func (c *LRUCache) Flush() error {
	for _, bp := range c.buf {
		if bp.valid && bp.dirty {
			if err := c.writeback(bp); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close flushes the cache and closes the underlying device.
func (c *LRUCache) Close() error {
	if err := c.Flush(); err != nil {
		return err
	}
	return c.dev.Close()
}

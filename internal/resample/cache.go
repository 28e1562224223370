package resample

import (
	"math"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// planKey identifies an interpolation plan: the source axes, which source
// cells are valid, and the target axes.
func planKey(srcLat, srcLon []float64, valid []int, tgtLat, tgtLon []float64) uint64 {
	h := xxhash.New()
	var buf [8]byte
	writeInt := func(v uint64) {
		for i := range buf {
			buf[i] = byte(v >> (8 * i))
		}
		h.Write(buf[:]) //nolint:errcheck // xxhash writes never fail
	}
	for _, axis := range [][]float64{srcLat, srcLon, tgtLat, tgtLon} {
		writeInt(uint64(len(axis)))
		for _, v := range axis {
			writeInt(math.Float64bits(v))
		}
	}
	writeInt(uint64(len(valid)))
	for _, idx := range valid {
		writeInt(uint64(idx))
	}
	return h.Sum64()
}

// planCache is a simple thread-safe LRU cache of interpolation plans.
type planCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[uint64]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   uint64
	value *plan
	prev  *entry
	next  *entry
}

func newPlanCache(maxEntries int) *planCache {
	return &planCache{
		maxEntries: maxEntries,
		entries:    make(map[uint64]*entry),
	}
}

func (c *planCache) get(key uint64) (*plan, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *planCache) put(key uint64, value *plan) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *planCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *planCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *planCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *planCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *planCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}

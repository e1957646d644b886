package mockledger

import (
	"sort"
	"sync"

	"github.com/chenzhangda16/sol-transferpipe/internal/transferpipe/ledger"
)

// SlotStatus is what the chain knows about a slot.
type SlotStatus int

const (
	SlotProduced SlotStatus = iota
	SlotSkipped
	SlotPruned  // produced once, no longer retained
	SlotPending // beyond the head
)

// Chain is an in-memory ledger. Only the newest retain slots keep their
// blocks; older ones report SlotPruned.
type Chain struct {
	mu      sync.RWMutex
	genesis uint64
	head    uint64 // last slot decided (produced or skipped); genesis-1 when empty
	retain  int

	blocks  map[uint64]*ledger.Block
	skipped map[uint64]struct{}
	order   []uint64 // produced slots, ascending
}

func NewChain(genesis uint64, retain int) *Chain {
	if retain <= 0 {
		retain = 10_000
	}
	if genesis == 0 {
		genesis = 1
	}
	return &Chain{
		genesis: genesis,
		head:    genesis - 1,
		retain:  retain,
		blocks:  make(map[uint64]*ledger.Block),
		skipped: make(map[uint64]struct{}),
	}
}

// Head is the newest decided slot and whether anything exists yet.
func (c *Chain) Head() (uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.head, c.head >= c.genesis
}

// NextSlot is the slot the miner should decide next.
func (c *Chain) NextSlot() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.head + 1
}

// LastBlock returns the newest produced block, if any.
func (c *Chain) LastBlock() (*ledger.Block, uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.order) == 0 {
		return nil, 0, false
	}
	s := c.order[len(c.order)-1]
	return c.blocks[s], s, true
}

func (c *Chain) Append(slot uint64, blk *ledger.Block) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blocks[slot] = blk
	c.order = append(c.order, slot)
	c.head = slot
	for len(c.order) > c.retain {
		delete(c.blocks, c.order[0])
		c.order = c.order[1:]
	}
}

func (c *Chain) Skip(slot uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.skipped[slot] = struct{}{}
	c.head = slot
}

func (c *Chain) Block(slot uint64) (*ledger.Block, SlotStatus) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if slot > c.head || slot < c.genesis {
		return nil, SlotPending
	}
	if _, ok := c.skipped[slot]; ok {
		return nil, SlotSkipped
	}
	if b, ok := c.blocks[slot]; ok {
		return b, SlotProduced
	}
	return nil, SlotPruned
}

// Produced lists retained produced slots in [start, end], both inclusive,
// the way getBlocks does.
func (c *Chain) Produced(start, end uint64) []uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if end > c.head {
		end = c.head
	}
	i := sort.Search(len(c.order), func(i int) bool { return c.order[i] >= start })
	out := []uint64{}
	for ; i < len(c.order) && c.order[i] <= end; i++ {
		out = append(out, c.order[i])
	}
	return out
}

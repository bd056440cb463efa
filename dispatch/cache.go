package dispatch

import (
	osc "github.com/pfcm/oscsend"
)

// Policy decides what happens to a value that is still waiting to be flushed
// when a newer one arrives for the same address.
type Policy int

const (
	// Replace keeps only the newest value for each address, older unsent
	// values are dropped.
	Replace Policy = iota
	// Accumulate queues every value. Each flush sends the oldest one, so
	// nothing is dropped but a burst takes several flushes to drain.
	Accumulate
)

func (p Policy) String() string {
	switch p {
	case Replace:
		return "replace"
	case Accumulate:
		return "accumulate"
	}
	return "unknown"
}

// Cache holds pending values per address. Addresses are never removed, once
// set an address stays in the cache with an empty queue after it drains.
//
// A Cache is not safe for concurrent use.
type Cache struct {
	policy Policy
	queues map[string][]osc.Argument
	// order is the key set in the order addresses were first set.
	order []string
}

// NewCache returns an empty cache using the given policy.
func NewCache(p Policy) *Cache {
	return &Cache{
		policy: p,
		queues: make(map[string][]osc.Argument),
	}
}

// Policy returns the cache's write policy.
func (c *Cache) Policy() Policy { return c.policy }

// Set stores v for addr according to the cache's policy.
func (c *Cache) Set(addr string, v osc.Argument) {
	q, ok := c.queues[addr]
	if !ok {
		c.order = append(c.order, addr)
	}
	if c.policy == Replace && len(q) > 0 {
		q[0] = v
		q = q[:1]
	} else {
		q = append(q, v)
	}
	c.queues[addr] = q
}

// Pending returns how many values are waiting for addr.
func (c *Cache) Pending(addr string) int {
	return len(c.queues[addr])
}

// Addresses returns every address ever set, in the order first set.
func (c *Cache) Addresses() []string {
	return append([]string(nil), c.order...)
}

// Take removes the oldest pending value of every address and returns them as
// one immediate bundle, in the order addresses were first set. The bundle has
// no messages if nothing was pending.
func (c *Cache) Take() osc.Bundle {
	b := osc.Bundle{Time: osc.Immediate}
	for _, addr := range c.order {
		q := c.queues[addr]
		if len(q) == 0 {
			continue
		}
		b.Messages = append(b.Messages, osc.NewMessage(addr, q[0]))
		q[0] = nil
		c.queues[addr] = q[1:]
	}
	return b
}

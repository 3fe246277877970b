package cache

import (
	"sync"

	"github.com/OCAP2/awacs/pkg/core"
)

// UnitCache holds unit metadata registered by the host so weapon events,
// which only carry ids, can be stamped with sides and type names.
type UnitCache struct {
	m     sync.RWMutex
	Units map[core.EntityID]core.Unit
}

func NewUnitCache() *UnitCache {
	return &UnitCache{
		Units: make(map[core.EntityID]core.Unit),
	}
}

func (c *UnitCache) Reset() {
	c.m.Lock()
	defer c.m.Unlock()
	c.Units = make(map[core.EntityID]core.Unit)
}

// Add registers or replaces a unit.
func (c *UnitCache) Add(u core.Unit) {
	c.m.Lock()
	defer c.m.Unlock()
	c.Units[u.ID] = u
}

func (c *UnitCache) Get(id core.EntityID) (core.Unit, bool) {
	c.m.RLock()
	defer c.m.RUnlock()
	u, ok := c.Units[id]
	return u, ok
}

// Side returns the registered side of id. It matches ledger.SideResolver.
func (c *UnitCache) Side(id core.EntityID) (core.Side, bool) {
	u, ok := c.Get(id)
	if !ok {
		return core.SideUnknown, false
	}
	return u.Side, true
}

func (c *UnitCache) Len() int {
	c.m.RLock()
	defer c.m.RUnlock()
	return len(c.Units)
}

// SafeCounter is a thread-safe counter
type SafeCounter struct {
	mu sync.Mutex
	v  int
}

func (c *SafeCounter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

func (c *SafeCounter) Set(v int) {
	c.mu.Lock()
	c.v = v
	c.mu.Unlock()
}

func (c *SafeCounter) Inc() {
	c.mu.Lock()
	c.v++
	c.mu.Unlock()
}

package campaign

import (
	"sync"

	"github.com/OCAP2/awacs/pkg/core"
)

// Context holds the running campaign session.
type Context struct {
	mu       sync.RWMutex
	campaign *core.Campaign
}

// NewContext creates a Context with no campaign running.
func NewContext() *Context {
	return &Context{}
}

// Get returns the running campaign, or nil.
func (c *Context) Get() *core.Campaign {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.campaign
}

// Name returns the running campaign's name, or a placeholder.
func (c *Context) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.campaign == nil {
		return "No campaign running"
	}
	return c.campaign.Name
}

// Set replaces the running campaign. nil ends it.
func (c *Context) Set(cp *core.Campaign) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.campaign = cp
}

package layout

import "sync"

// Ownership records which logical component claimed each physical one.
// It lives beside the tree so frozen components are never written.
type Ownership struct {
	mu     sync.RWMutex
	owners map[*Component]Handle
}

// NewOwnership creates an empty ownership map.
func NewOwnership() *Ownership {
	return &Ownership{owners: make(map[*Component]Handle)}
}

// Claim records h as the owner of c. Claiming again with the same handle
// is a no-op; a different handle fails with ErrClaimed.
func (o *Ownership) Claim(c *Component, h Handle) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if cur, ok := o.owners[c]; ok && cur != h {
		return ErrClaimed
	}
	o.owners[c] = h
	return nil
}

// Owner returns the claiming handle, 0 if unclaimed.
func (o *Ownership) Owner(c *Component) Handle {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.owners[c]
}

// Len returns the number of claimed components
func (o *Ownership) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.owners)
}

package tracker

import "sync"

// IDGenerator hands out track identities.  IDs start at 1, increase by one
// on every call and are never handed out twice.
type IDGenerator struct {
	id int
	sync.Mutex
}

// NewIDGenerator returns a generator whose first ID is 1
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

// GetNext returns the next incremental ID
func (g *IDGenerator) GetNext() int {
	g.Lock()
	defer g.Unlock()
	g.id++
	return g.id
}

// Last returns the most recently allocated ID, or 0 if none have been
func (g *IDGenerator) Last() int {
	g.Lock()
	defer g.Unlock()
	return g.id
}

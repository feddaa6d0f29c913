package raft

import "fmt"

// Configuration is an ordered roster of servers. It is treated as
// immutable between mutations: Replication and Election read a
// pointer to the active Configuration and must not observe a partial
// mutation mid-computation, so every mutating method returns a new
// slice rather than editing in place.
type Configuration struct {
	servers []Server
}

// NewConfiguration builds a Configuration from the given servers. At
// least one server is required; ids must be unique.
func NewConfiguration(servers ...Server) (*Configuration, error) {
	seen := make(map[uint64]struct{}, len(servers))
	for _, s := range servers {
		if _, ok := seen[s.ID]; ok {
			return nil, fmt.Errorf("%w: id %d", ErrDuplicateID, s.ID)
		}
		seen[s.ID] = struct{}{}
	}
	if len(servers) == 0 {
		return nil, fmt.Errorf("raft: configuration must have at least one server")
	}
	cp := make([]Server, len(servers))
	copy(cp, servers)
	return &Configuration{servers: cp}, nil
}

// Get returns the server with the given id, if present.
func (c *Configuration) Get(id uint64) (Server, bool) {
	for _, s := range c.servers {
		if s.ID == id {
			return s, true
		}
	}
	return Server{}, false
}

// Index returns the position of id within the roster, if present.
func (c *Configuration) Index(id uint64) (int, bool) {
	for i, s := range c.servers {
		if s.ID == id {
			return i, true
		}
	}
	return 0, false
}

// Servers returns a copy of the roster in roster order.
func (c *Configuration) Servers() []Server {
	cp := make([]Server, len(c.servers))
	copy(cp, c.servers)
	return cp
}

// NVoting returns the count of voting-eligible servers.
func (c *Configuration) NVoting() int {
	n := 0
	for _, s := range c.servers {
		if s.Voting {
			n++
		}
	}
	return n
}

// Quorum returns the voting quorum size: floor(n_voting/2) + 1.
func (c *Configuration) Quorum() int {
	return c.NVoting()/2 + 1
}

// Add returns a new Configuration with the given server appended. It
// fails with ErrDuplicateID if id is already present.
func (c *Configuration) Add(id uint64, address string, voting bool) (*Configuration, error) {
	if _, ok := c.Get(id); ok {
		return nil, fmt.Errorf("%w: id %d", ErrDuplicateID, id)
	}
	next := append(c.Servers(), Server{ID: id, Address: address, Voting: voting})
	return &Configuration{servers: next}, nil
}

// Remove returns a new Configuration with id removed. It fails with
// ErrNotFound if id is absent.
func (c *Configuration) Remove(id uint64) (*Configuration, error) {
	idx, ok := c.Index(id)
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	servers := c.Servers()
	next := append(servers[:idx], servers[idx+1:]...)
	return &Configuration{servers: next}, nil
}

// SetVoting returns a new Configuration with id's voting flag set to
// voting. It fails with ErrNotFound if id is absent.
func (c *Configuration) SetVoting(id uint64, voting bool) (*Configuration, error) {
	idx, ok := c.Index(id)
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	next := c.Servers()
	next[idx].Voting = voting
	return &Configuration{servers: next}, nil
}

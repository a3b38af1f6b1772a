package registry

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownPeer is returned when a peer id is not in the registry.
var ErrUnknownPeer = errors.New("unknown peer")

// PeerDescriptor describes a single peer. Created at startup from
// configuration, never mutated.
type PeerDescriptor struct {
	ID       int
	Addr     string
	TickRate int // ticks per second
}

// Registry is an immutable set of peer descriptors.
type Registry struct {
	peers map[int]PeerDescriptor
	order []int // ascending ids
}

// New builds a registry from the given descriptors. Duplicate ids and
// non-positive tick rates are rejected.
func New(peers []PeerDescriptor) (*Registry, error) {
	r := &Registry{
		peers: make(map[int]PeerDescriptor, len(peers)),
		order: make([]int, 0, len(peers)),
	}

	for _, p := range peers {
		if p.ID < 0 {
			return nil, fmt.Errorf("peer id must be non-negative, got %d", p.ID)
		}
		if p.Addr == "" {
			return nil, fmt.Errorf("peer %d has an empty address", p.ID)
		}
		if p.TickRate < 1 {
			return nil, fmt.Errorf("peer %d has tick rate %d, must be at least 1", p.ID, p.TickRate)
		}
		if _, exists := r.peers[p.ID]; exists {
			return nil, fmt.Errorf("duplicate peer id %d", p.ID)
		}
		r.peers[p.ID] = p
		r.order = append(r.order, p.ID)
	}

	sort.Ints(r.order)
	return r, nil
}

// Lookup returns the descriptor for a peer id.
func (r *Registry) Lookup(id int) (PeerDescriptor, error) {
	p, ok := r.peers[id]
	if !ok {
		return PeerDescriptor{}, fmt.Errorf("peer %d: %w", id, ErrUnknownPeer)
	}
	return p, nil
}

// Addr returns the network address for a peer id.
func (r *Registry) Addr(id int) (string, error) {
	p, err := r.Lookup(id)
	if err != nil {
		return "", err
	}
	return p.Addr, nil
}

// PeersOf returns every peer except the given one, in ascending id order.
// This is the neighbor list a peer sends to.
func (r *Registry) PeersOf(id int) []PeerDescriptor {
	peers := make([]PeerDescriptor, 0, len(r.order))
	for _, other := range r.order {
		if other == id {
			continue
		}
		peers = append(peers, r.peers[other])
	}
	return peers
}

// All returns every descriptor in ascending id order.
func (r *Registry) All() []PeerDescriptor {
	peers := make([]PeerDescriptor, 0, len(r.order))
	for _, id := range r.order {
		peers = append(peers, r.peers[id])
	}
	return peers
}

// Len returns the number of peers.
func (r *Registry) Len() int {
	return len(r.order)
}

package html

import "sync"

// Handles hands out stable integer identifiers for nodes so that code
// outside the renderer can refer to them without holding pointers.
type Handles struct {
	mu       sync.Mutex
	next     int
	byNode   map[*Node]int
	byHandle map[int]*Node
}

func NewHandles() *Handles {
	return &Handles{
		byNode:   map[*Node]int{},
		byHandle: map[int]*Node{},
	}
}

// Get returns the node's handle, allocating one on first use.
func (h *Handles) Get(node *Node) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if id, ok := h.byNode[node]; ok {
		return id
	}
	id := h.next
	h.next++
	h.byNode[node] = id
	h.byHandle[id] = node
	return id
}

func (h *Handles) Lookup(id int) (*Node, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n, ok := h.byHandle[id]
	return n, ok
}

// Package naming provides friendly display names for hardware components.
//
// Agents report physical identifiers (PCI bus addresses, IPMI sensor ids)
// that are stable but unreadable. LabelNamer maps each identifier to a
// sequential display index per prefix, so the first GPU ever seen becomes
// "GPU1" and keeps that name for the life of the process.
//
// The mapping is instance state: construct one LabelNamer per process and
// pass it wherever friendly formatting happens. There is deliberately no
// package-level instance.
package naming

import (
	"fmt"
	"sync"
)

// LabelNamer assigns sequential display names to physical identifiers.
// First-seen identifiers get the lowest free number for their prefix.
//
// LabelNamer is safe for concurrent use.
type LabelNamer struct {
	mu sync.Mutex

	// prefix -> physical id -> display index (1-based)
	assigned map[string]map[string]int
}

// NewLabelNamer creates an empty namer.
func NewLabelNamer() *LabelNamer {
	return &LabelNamer{
		assigned: make(map[string]map[string]int),
	}
}

// DisplayName returns the friendly name for a physical identifier under a
// prefix, e.g. DisplayName("GPU", "0000:3a:00.0") == "GPU1". The first
// call for an identifier assigns the next free index; later calls return
// the same name.
func (n *LabelNamer) DisplayName(prefix, physicalID string) string {
	n.mu.Lock()
	defer n.mu.Unlock()

	ids := n.assigned[prefix]
	if ids == nil {
		ids = make(map[string]int)
		n.assigned[prefix] = ids
	}

	idx, ok := ids[physicalID]
	if !ok {
		idx = len(ids) + 1
		ids[physicalID] = idx
	}

	return fmt.Sprintf("%s%d", prefix, idx)
}

// Index returns the assigned index for an identifier, or 0 when the
// identifier has never been seen.
func (n *LabelNamer) Index(prefix, physicalID string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.assigned[prefix][physicalID]
}

// Known returns how many identifiers have been named under a prefix.
func (n *LabelNamer) Known(prefix string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.assigned[prefix])
}

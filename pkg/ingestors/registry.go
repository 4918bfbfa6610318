// Package ingestors provides ingestor implementations for pentest tool
// outputs and the registry that exposes them to the knowledge base.
package ingestors

import (
	"sync"

	"github.com/redopsio/cyberkb/pkg/cyberdb"
	"github.com/redopsio/cyberkb/pkg/ingestors/bloodhound"
	"github.com/redopsio/cyberkb/pkg/ingestors/eyewitness"
	"github.com/redopsio/cyberkb/pkg/ingestors/hashcat"
	"github.com/redopsio/cyberkb/pkg/ingestors/masscan"
	"github.com/redopsio/cyberkb/pkg/ingestors/netexec"
	"github.com/redopsio/cyberkb/pkg/ingestors/ntds"
	"github.com/redopsio/cyberkb/pkg/ingestors/pingcastle"
	"github.com/redopsio/cyberkb/pkg/ingestors/smbfiles"
)

// =============================================================================
// Ingestor Registry - Plugin system for ingestors
// =============================================================================

// Registry manages registered ingestors. Registration order is preserved:
// the bulk walker probes ingestors in that order and the first match wins,
// so ingestors with cheap, specific detection should be registered before
// broader ones.
type Registry struct {
	order  []cyberdb.Ingestor
	byName map[string]cyberdb.Ingestor
	mu     sync.RWMutex
}

// NewRegistry creates an ingestor registry with the built-in ingestors,
// including the "all" bulk walker.
func NewRegistry() *Registry {
	r := &Registry{byName: make(map[string]cyberdb.Ingestor)}

	r.Register(masscan.New())
	r.Register(ntds.New())
	r.Register(hashcat.New())
	r.Register(bloodhound.New())
	r.Register(netexec.New())
	r.Register(pingcastle.NewUsers())
	r.Register(pingcastle.NewComputers())
	r.Register(smbfiles.New())
	r.Register(eyewitness.New())
	r.Register(NewBulk(r))

	return r
}

// Register adds an ingestor to the registry. A later registration with the
// same name replaces the earlier one in lookups but keeps its original
// position in the probe order.
func (r *Registry) Register(ing cyberdb.Ingestor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[ing.Name()]; !exists {
		r.order = append(r.order, ing)
	} else {
		for i, existing := range r.order {
			if existing.Name() == ing.Name() {
				r.order[i] = ing
				break
			}
		}
	}
	r.byName[ing.Name()] = ing
}

// Lookup returns the ingestor registered under name.
func (r *Registry) Lookup(name string) (cyberdb.Ingestor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ing, ok := r.byName[name]
	return ing, ok
}

// All returns the registered ingestors in registration order.
func (r *Registry) All() []cyberdb.Ingestor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]cyberdb.Ingestor, len(r.order))
	copy(out, r.order)
	return out
}

// Names returns the registered ingestor names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.order))
	for _, ing := range r.order {
		names = append(names, ing.Name())
	}
	return names
}

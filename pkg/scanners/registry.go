// Package scanners provides the control-evaluation scanners and the
// registry that exposes them to the knowledge base.
package scanners

import (
	"sync"

	"github.com/redopsio/cyberkb/pkg/cyberdb"
	"github.com/redopsio/cyberkb/pkg/scanners/auth"
	"github.com/redopsio/cyberkb/pkg/scanners/compromised"
	"github.com/redopsio/cyberkb/pkg/scanners/juicysmb"
	"github.com/redopsio/cyberkb/pkg/scanners/relations"
	"github.com/redopsio/cyberkb/pkg/scanners/weakpassword"
)

// =============================================================================
// Scanner Registry - Plugin system for scanners
// =============================================================================

// Registry manages registered scanners in registration order.
type Registry struct {
	order  []cyberdb.Scanner
	byName map[string]cyberdb.Scanner
	mu     sync.RWMutex
}

// NewRegistry creates a scanner registry with the built-in scanners.
func NewRegistry() *Registry {
	r := &Registry{byName: make(map[string]cyberdb.Scanner)}

	r.Register(relations.New())
	r.Register(auth.New())
	r.Register(weakpassword.New())
	r.Register(juicysmb.New())
	r.Register(compromised.New())

	return r
}

// Register adds a scanner to the registry, replacing any scanner already
// registered under the same name.
func (r *Registry) Register(sc cyberdb.Scanner) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[sc.Name()]; !exists {
		r.order = append(r.order, sc)
	} else {
		for i, existing := range r.order {
			if existing.Name() == sc.Name() {
				r.order[i] = sc
				break
			}
		}
	}
	r.byName[sc.Name()] = sc
}

// Lookup returns the scanner registered under name.
func (r *Registry) Lookup(name string) (cyberdb.Scanner, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sc, ok := r.byName[name]
	return sc, ok
}

// All returns the registered scanners in registration order.
func (r *Registry) All() []cyberdb.Scanner {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]cyberdb.Scanner, len(r.order))
	copy(out, r.order)
	return out
}

// RunDefault runs every scanner tagged "default" against db, each in its
// own failure domain: a failing scanner is logged and the sweep moves on.
// Relation propagation runs in registration order, so scanners that
// derive state (relations) are registered before scanners that read it.
func (r *Registry) RunDefault(db *cyberdb.CyberDB) {
	log := db.Logger()
	for _, sc := range r.All() {
		if !hasTag(sc, "default") {
			continue
		}
		if err := db.Scan(sc.Name()); err != nil {
			log.Error("scanner %s failed: %v", sc.Name(), err)
		}
	}
}

func hasTag(sc cyberdb.Scanner, tag string) bool {
	for _, t := range sc.Tags() {
		if t == tag {
			return true
		}
	}
	return false
}

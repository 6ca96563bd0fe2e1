package server

import (
	"sync"

	"github.com/jrsteele09/go-fleet-collect/assignment"
	"github.com/jrsteele09/go-fleet-collect/fleet"
	"github.com/jrsteele09/go-fleet-collect/token/refresh"
)

// sessionEntry is everything the gateway runs on behalf of one session.
type sessionEntry struct {
	id        string
	companyID int64
	manager   *refresh.Manager
	protocol  *assignment.Protocol
	catalog   *fleet.Catalog
}

type registry struct {
	lock    sync.RWMutex
	entries map[string]*sessionEntry
}

func newRegistry() *registry {
	return &registry{entries: make(map[string]*sessionEntry)}
}

func (r *registry) get(id string) (*sessionEntry, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	e, ok := r.entries[id]
	return e, ok
}

func (r *registry) put(e *sessionEntry) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.entries[e.id] = e
}

func (r *registry) remove(id string) (*sessionEntry, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	e, ok := r.entries[id]
	delete(r.entries, id)
	return e, ok
}

func (r *registry) drain() []*sessionEntry {
	r.lock.Lock()
	defer r.lock.Unlock()
	out := make([]*sessionEntry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	r.entries = make(map[string]*sessionEntry)
	return out
}

func (r *registry) len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.entries)
}

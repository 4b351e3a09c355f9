// Package registry provides a process-wide, name-addressable directory of
// actor references, grounded on the map-plus-RWMutex registry inside
// babyman-slug-lang's evaluator.ActorSystem (mailboxes/mailboxRegistry
// guarded by separate sync.RWMutex fields).
package registry

import (
	"sync"

	"github.com/arvostack/actorcore/actor"
	"github.com/google/uuid"
)

var (
	// ErrNameTaken is returned by Register when name is already bound to a
	// different reference.
	ErrNameTaken = registryError("registry: name already registered")
	// ErrNotFound is returned by Lookup/LookupByID when no reference matches.
	ErrNotFound = registryError("registry: reference not found")
)

type registryError string

func (e registryError) Error() string { return string(e) }

// Registry is a concurrent-safe directory keyed both by uuid and by an
// optional human-chosen name. It does not own the references it holds: a
// reference removed here keeps running until something calls Stop on it
// directly.
type Registry struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*actor.Reference
	byName  map[string]*actor.Reference
	namesOf map[uuid.UUID]string
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		byID:    make(map[uuid.UUID]*actor.Reference),
		byName:  make(map[string]*actor.Reference),
		namesOf: make(map[uuid.UUID]string),
	}
}

// Add indexes ref by its uuid only.
func (r *Registry) Add(ref *actor.Reference) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[ref.UUID()] = ref
}

// Register indexes ref by both uuid and name. Fails if name is already
// bound to a different reference.
func (r *Registry) Register(name string, ref *actor.Reference) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byName[name]; ok && existing.UUID() != ref.UUID() {
		return ErrNameTaken
	}
	r.byID[ref.UUID()] = ref
	r.byName[name] = ref
	r.namesOf[ref.UUID()] = name
	return nil
}

// Lookup returns the reference bound to name, if any.
func (r *Registry) Lookup(name string) (*actor.Reference, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ref, ok := r.byName[name]
	if !ok {
		return nil, ErrNotFound
	}
	return ref, nil
}

// LookupByID returns the reference with the given uuid, if any.
func (r *Registry) LookupByID(id uuid.UUID) (*actor.Reference, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ref, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return ref, nil
}

// Unregister removes id from the directory entirely. It does not stop the
// underlying reference.
func (r *Registry) Unregister(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
	if name, ok := r.namesOf[id]; ok {
		delete(r.byName, name)
		delete(r.namesOf, id)
	}
}

// List returns a snapshot of every registered reference, in no particular
// order.
func (r *Registry) List() []*actor.Reference {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*actor.Reference, 0, len(r.byID))
	for _, ref := range r.byID {
		out = append(out, ref)
	}
	return out
}

// NameOf returns the name a reference was registered under, if any.
func (r *Registry) NameOf(id uuid.UUID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.namesOf[id]
	return name, ok
}

// Len reports how many references are currently tracked.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

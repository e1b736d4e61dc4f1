package storage

import "sync"

// Overlay stages writes and deletes on top of a base database. An atomic
// group executes entirely against an overlay; Commit flushes the staged
// mutations only after every leg succeeded, Discard drops them all. This is
// what gives a group its all-or-nothing behaviour.
type Overlay struct {
	mu      sync.Mutex
	base    Database
	writes  map[string][]byte
	deletes map[string]struct{}
}

// NewOverlay wraps the base database with an empty staging layer.
func NewOverlay(base Database) *Overlay {
	return &Overlay{
		base:    base,
		writes:  make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
}

func (o *Overlay) Get(key []byte) ([]byte, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if value, ok := o.writes[string(key)]; ok {
		out := make([]byte, len(value))
		copy(out, value)
		return out, nil
	}
	if _, ok := o.deletes[string(key)]; ok {
		return nil, ErrNotFound
	}
	return o.base.Get(key)
}

func (o *Overlay) Put(key []byte, value []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	stored := make([]byte, len(value))
	copy(stored, value)
	delete(o.deletes, string(key))
	o.writes[string(key)] = stored
	return nil
}

func (o *Overlay) Delete(key []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.writes, string(key))
	o.deletes[string(key)] = struct{}{}
	return nil
}

func (o *Overlay) Has(key []byte) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.writes[string(key)]; ok {
		return true, nil
	}
	if _, ok := o.deletes[string(key)]; ok {
		return false, nil
	}
	return o.base.Has(key)
}

// Close is a no-op; the overlay does not own the base database.
func (o *Overlay) Close() error { return nil }

// Commit flushes the staged mutations into the base database.
func (o *Overlay) Commit() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for key := range o.deletes {
		if err := o.base.Delete([]byte(key)); err != nil {
			return err
		}
	}
	for key, value := range o.writes {
		if err := o.base.Put([]byte(key), value); err != nil {
			return err
		}
	}
	o.writes = make(map[string][]byte)
	o.deletes = make(map[string]struct{})
	return nil
}

// Discard drops every staged mutation without touching the base database.
func (o *Overlay) Discard() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.writes = make(map[string][]byte)
	o.deletes = make(map[string]struct{})
}

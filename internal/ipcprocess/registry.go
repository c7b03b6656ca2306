// Package ipcprocess implements the id→process and port-id→flow indexes
// that track live IPC Process instances and the flows they carry.
package ipcprocess

import (
	"fmt"
	"sync"

	"github.com/rinad/rinad/internal/errdefs"
	"github.com/rinad/rinad/internal/naming"
)

// Kind distinguishes a normal IPC Process from a shim that wraps an
// underlying non-RINA transport.
type Kind uint8

const (
	KindNormal Kind = iota
	KindShim
)

// Destroyer is the shim-instance lifecycle hook invoked before an entry is
// unlinked from the registry.
type Destroyer interface {
	Destroy() error
}

// Process is one registered IPC Process.
type Process struct {
	ID   uint16
	Name naming.ApplicationName
	Kind Kind
	Shim Destroyer // nil for KindNormal
}

// Registry holds two indexes: id→process, and (separately, via FlowIndex)
// port-id→flow. Both preserve insertion order on Iterate via a
// map-plus-key-slice bookkeeping idiom.
type Registry struct {
	mu      sync.Mutex
	byID    map[uint16]*Process
	order   []uint16
}

// New returns an empty process registry.
func New() *Registry {
	return &Registry{byID: make(map[uint16]*Process)}
}

// Create registers a new process under id. A duplicate id is rejected with
// errdefs.ErrAlreadyExists and the registry is left unchanged.
func (r *Registry) Create(name naming.ApplicationName, id uint16, kind Kind) (*Process, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; ok {
		return nil, fmt.Errorf("%w: ipc process id %d", errdefs.ErrAlreadyExists, id)
	}
	p := &Process{ID: id, Name: name, Kind: kind}
	r.byID[id] = p
	r.order = append(r.order, id)
	return p, nil
}

// Lookup returns the process registered under id, if any.
func (r *Registry) Lookup(id uint16) (*Process, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	return p, ok
}

// Destroy calls the process's shim destroy hook (if any), then unlinks it.
// Destroying an unknown id is a no-op.
func (r *Registry) Destroy(id uint16) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return nil
	}
	var err error
	if p.Shim != nil {
		err = p.Shim.Destroy()
	}
	delete(r.byID, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return err
}

// Iterate calls fn for every registered process in insertion order. fn must
// not call back into the registry.
func (r *Registry) Iterate(fn func(*Process)) {
	r.mu.Lock()
	ids := append([]uint16(nil), r.order...)
	r.mu.Unlock()
	for _, id := range ids {
		r.mu.Lock()
		p := r.byID[id]
		r.mu.Unlock()
		if p != nil {
			fn(p)
		}
	}
}

// FlowIndex is the port-id→flow mirror of Registry, used by the Flow
// Allocator (C5) to track which port-ids are currently in use. A port-id
// exists here iff its flow's FSM is in a non-terminal state (see flowallocator.FAIState).
type FlowIndex struct {
	mu    sync.Mutex
	byPID map[uint32]interface{}
	order []uint32
}

// NewFlowIndex returns an empty flow index.
func NewFlowIndex() *FlowIndex {
	return &FlowIndex{byPID: make(map[uint32]interface{})}
}

// Insert adds flow under portID. A duplicate portID is rejected: a port-id
// may not be reused until the registry has explicitly Removed it (after
// 2*MPL has elapsed).
func (f *FlowIndex) Insert(portID uint32, flow interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byPID[portID]; ok {
		return fmt.Errorf("%w: port-id %d already in use", errdefs.ErrAlreadyExists, portID)
	}
	f.byPID[portID] = flow
	f.order = append(f.order, portID)
	return nil
}

func (f *FlowIndex) Lookup(portID uint32) (interface{}, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.byPID[portID]
	return v, ok
}

func (f *FlowIndex) Remove(portID uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byPID, portID)
	for i, v := range f.order {
		if v == portID {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
}

func (f *FlowIndex) Iterate(fn func(portID uint32, flow interface{})) {
	f.mu.Lock()
	ids := append([]uint32(nil), f.order...)
	f.mu.Unlock()
	for _, id := range ids {
		f.mu.Lock()
		v, ok := f.byPID[id]
		f.mu.Unlock()
		if ok {
			fn(id, v)
		}
	}
}

package ipcprocess

import (
	"errors"
	"testing"

	"github.com/rinad/rinad/internal/errdefs"
	"github.com/rinad/rinad/internal/naming"
)

func TestCreateRejectsDuplicateID(t *testing.T) {
	r := New()
	name := naming.ApplicationName{ProcessName: "a"}

	if _, err := r.Create(name, 1, KindNormal); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	_, err := r.Create(name, 1, KindNormal)
	if !errors.Is(err, errdefs.ErrAlreadyExists) {
		t.Fatalf("got %v, want ErrAlreadyExists", err)
	}
}

func TestDestroyCallsShim(t *testing.T) {
	r := New()
	name := naming.ApplicationName{ProcessName: "shim-test"}
	p, err := r.Create(name, 2, KindShim)
	if err != nil {
		t.Fatal(err)
	}
	destroyed := false
	p.Shim = destroyerFunc(func() error { destroyed = true; return nil })

	if err := r.Destroy(2); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if !destroyed {
		t.Fatal("shim Destroy was not invoked")
	}
	if _, ok := r.Lookup(2); ok {
		t.Fatal("process still present after Destroy")
	}
}

func TestDestroyUnknownIDIsNoop(t *testing.T) {
	r := New()
	if err := r.Destroy(999); err != nil {
		t.Fatalf("Destroy of unknown id: %v", err)
	}
}

func TestIterateOrder(t *testing.T) {
	r := New()
	name := naming.ApplicationName{}
	for _, id := range []uint16{3, 1, 2} {
		if _, err := r.Create(name, id, KindNormal); err != nil {
			t.Fatal(err)
		}
	}
	var got []uint16
	r.Iterate(func(p *Process) { got = append(got, p.ID) })
	want := []uint16{3, 1, 2}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestFlowIndexRejectsDuplicatePortID(t *testing.T) {
	f := NewFlowIndex()
	if err := f.Insert(10, "flow-a"); err != nil {
		t.Fatal(err)
	}
	err := f.Insert(10, "flow-b")
	if !errors.Is(err, errdefs.ErrAlreadyExists) {
		t.Fatalf("got %v, want ErrAlreadyExists", err)
	}
}

func TestFlowIndexRemoveThenReinsert(t *testing.T) {
	f := NewFlowIndex()
	if err := f.Insert(10, "flow-a"); err != nil {
		t.Fatal(err)
	}
	f.Remove(10)
	if _, ok := f.Lookup(10); ok {
		t.Fatal("flow still present after Remove")
	}
	if err := f.Insert(10, "flow-b"); err != nil {
		t.Fatalf("reinsert after Remove: %v", err)
	}
}

type destroyerFunc func() error

func (d destroyerFunc) Destroy() error { return d() }

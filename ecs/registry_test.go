package ecs

import (
	"errors"
	"testing"
)

func TestRegisterNamedAndInsertDefault(t *testing.T) {
	w := NewWorld()
	RegisterNamed[health](w, "health")

	e := w.Spawn()
	if err := w.InsertDefaultByName(e, "health"); err != nil {
		t.Fatalf("insert default: %v", err)
	}
	if v, ok := Get[health](w, e); !ok || v.value != 0 {
		t.Fatalf("expected zero-value health, got %v (ok=%v)", v, ok)
	}
}

func TestByNameUnknown(t *testing.T) {
	w := NewWorld()
	e := w.Spawn()
	if err := w.InsertDefaultByName(e, "nope"); !errors.Is(err, ErrUnknownComponentName) {
		t.Fatalf("expected ErrUnknownComponentName, got %v", err)
	}
	if _, err := w.ExtractByName(e, "nope"); !errors.Is(err, ErrUnknownComponentName) {
		t.Fatalf("expected ErrUnknownComponentName, got %v", err)
	}
}

func TestExtractByName(t *testing.T) {
	w := NewWorld()
	RegisterNamed[health](w, "health")
	e := w.Spawn()
	Insert(w, e, health{value: 55})

	v, err := w.ExtractByName(e, "health")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	hp, ok := v.(health)
	if !ok || hp.value != 55 {
		t.Fatalf("expected boxed health{55}, got %#v", v)
	}
	if Has[health](w, e) {
		t.Fatalf("component still present after extract")
	}
	// Extracting again yields nothing, without error.
	v, err = w.ExtractByName(e, "health")
	if err != nil || v != nil {
		t.Fatalf("expected nil extract on absent component, got %v, %v", v, err)
	}
}

func TestRemoveByNameFiresRemoveTriggers(t *testing.T) {
	w := NewWorld()
	EnableRemoveTriggers[health](w)
	RegisterNamed[health](w, "health")
	e := w.Spawn()
	Insert(w, e, health{value: 1})
	if err := w.RemoveByName(e, "health"); err != nil {
		t.Fatalf("remove by name: %v", err)
	}
	w.FlushObservers()
	w.UpdateTriggers()
	ViewResource(w, func(tr *Triggers[OnRemove[health]]) {
		if tr.Len() != 1 {
			t.Fatalf("expected 1 remove trigger, got %d", tr.Len())
		}
	})
}

func TestInsertDefaultByNameOnDeadEntity(t *testing.T) {
	w := NewWorld()
	RegisterNamed[health](w, "health")
	e := w.Spawn()
	w.Despawn(e)
	if err := w.InsertDefaultByName(e, "health"); !errors.Is(err, ErrDeadEntity) {
		t.Fatalf("expected ErrDeadEntity, got %v", err)
	}
}

func TestComponentNames(t *testing.T) {
	w := NewWorld()
	RegisterNamed[health](w, "health")
	RegisterNamed[position](w, "position")
	names := w.ComponentNames()
	if len(names) != 2 {
		t.Fatalf("expected 2 names, got %v", names)
	}
	// Registering the same pair again must be idempotent.
	RegisterNamed[health](w, "health")
	if len(w.ComponentNames()) != 2 {
		t.Fatalf("duplicate registration changed the name table")
	}
}

func TestRegisterNamedConflictPanics(t *testing.T) {
	w := NewWorld()
	RegisterNamed[health](w, "health")
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for conflicting name registration")
		}
	}()
	RegisterNamed[position](w, "health")
}

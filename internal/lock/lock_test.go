package lock

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAcquire_SecondCallFails(t *testing.T) {
	stateFile := filepath.Join(t.TempDir(), "state.cbor")

	l1, err := Acquire(stateFile)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Acquire(stateFile); err == nil {
		t.Fatal("expected second acquire to fail while first is held")
	}
	if err := l1.Release(); err != nil {
		t.Fatal(err)
	}

	l2, err := Acquire(stateFile)
	if err != nil {
		t.Fatalf("expected acquire to succeed after release: %v", err)
	}
	_ = l2.Release()
}

func TestRelease_MissingFileIsNotAnError(t *testing.T) {
	stateFile := filepath.Join(t.TempDir(), "state.cbor")
	l, err := Acquire(stateFile)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(l.path); err != nil {
		t.Fatal(err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("expected no error releasing an already-removed lock, got %v", err)
	}
}

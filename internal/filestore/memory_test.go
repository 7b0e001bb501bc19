package filestore

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStoreSaveLoad(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if err := s.Save(ctx, "uploads/a.txt", "text/plain", []byte("hello")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load(ctx, "uploads/a.txt")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("Load = %q, want %q", got, "hello")
	}
}

func TestMemoryStoreLoadMissing(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.Load(context.Background(), "uploads/missing.txt")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if err := s.Save(ctx, "uploads/a.txt", "text/plain", []byte("hello")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	s.Delete("uploads/a.txt")

	if _, err := s.Load(ctx, "uploads/a.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err after delete = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreCopiesData(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	data := []byte("original")
	if err := s.Save(ctx, "uploads/a.txt", "text/plain", data); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data[0] = 'X'

	got, err := s.Load(ctx, "uploads/a.txt")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != "original" {
		t.Errorf("stored data aliased the caller's buffer: %q", got)
	}
}

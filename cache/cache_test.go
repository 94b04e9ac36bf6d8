package cache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/chazu/lya/compiler"
	"github.com/chazu/lya/compiler/hash"
	"github.com/chazu/lya/pkg/bytecode"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "cache.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func compile(t *testing.T, src string) (Key, *bytecode.Program) {
	t.Helper()
	c, err := compiler.Compile(src)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	return Key(hash.HashProgram(c.AST)), c.Program
}

func TestPutGet(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	key, prog := compile(t, `dcl x int = 2; print("x is ", x * 21);`)

	if _, ok, err := s.Get(ctx, key); err != nil || ok {
		t.Fatalf("Get on empty cache = %v, %v", ok, err)
	}
	if err := s.Put(ctx, key, "answer.lya", prog); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if got.Disassemble() != prog.Disassemble() {
		t.Errorf("cached program differs:\n%s\nwant:\n%s", got.Disassemble(), prog.Disassemble())
	}

	// Replacing an entry keeps a single row.
	if err := s.Put(ctx, key, "renamed.lya", prog); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}
	entries, err := s.Entries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name != "renamed.lya" || entries[0].Key != key {
		t.Errorf("entries = %+v", entries)
	}
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	oldKey, oldProg := compile(t, "dcl a int;")
	newKey, newProg := compile(t, "dcl b int;")
	if err := s.Put(ctx, oldKey, "old.lya", oldProg); err != nil {
		t.Fatal(err)
	}
	clock = clock.Add(48 * time.Hour)
	if err := s.Put(ctx, newKey, "new.lya", newProg); err != nil {
		t.Fatal(err)
	}

	n, err := s.Prune(ctx, clock.Add(-24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("pruned %d entries, want 1", n)
	}
	if _, ok, _ := s.Get(ctx, oldKey); ok {
		t.Error("old entry survived Prune")
	}
	if _, ok, _ := s.Get(ctx, newKey); !ok {
		t.Error("new entry was pruned")
	}
}

func TestGetDropsCorruptEntries(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	key, _ := compile(t, "dcl x int;")
	if _, err := s.db.Exec(`INSERT INTO programs VALUES (?, 'bad.lya', x'00010203', 0, 0)`, key.String()); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := s.Get(ctx, key); ok || err != nil {
		t.Fatalf("Get = %v, %v; want a clean miss", ok, err)
	}
	if entries, _ := s.Entries(ctx); len(entries) != 0 {
		t.Errorf("corrupt entry was not removed: %+v", entries)
	}
}

func TestReopenKeepsEntries(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")
	key, prog := compile(t, "print(1);")

	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, key, "one.lya", prog); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if _, ok, err := s.Get(ctx, key); !ok || err != nil {
		t.Errorf("Get after reopen = %v, %v", ok, err)
	}
}

func TestClosedStore(t *testing.T) {
	s := openStore(t)
	s.Close()
	if _, _, err := s.Get(context.Background(), Key{}); !errors.Is(err, ErrClosed) {
		t.Errorf("Get on closed store = %v, want ErrClosed", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
}

package fs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"valuegen/internal/blob/core"
)

func newStore(t *testing.T) (*Store, string) {
	t.Helper()
	root := t.TempDir()
	s, err := New(root)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return s, root
}

func TestPutGetOverwrite(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	if s.Driver() != core.DriverFilesystem {
		t.Fatalf("unexpected driver %s", s.Driver())
	}
	info, err := s.Put(ctx, "out/new_values.json", strings.NewReader(`{"m:a":1}`), core.PutOptions{ContentType: "application/json", Metadata: map[string]string{"run": "1"}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 9 || info.ETag == "" || info.Metadata["run"] != "1" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := s.Put(ctx, "out/new_values.json", strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if _, err := s.Put(ctx, "out/new_values.json", strings.NewReader(`{}`), core.PutOptions{Overwrite: true, ContentType: "application/json"}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, rc, err := s.Get(ctx, "out/new_values.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = rc.Close() }()
	body, _ := io.ReadAll(rc)
	if string(body) != `{}` || got.Size != 2 || got.ContentType != "application/json" {
		t.Fatalf("unexpected blob %q %+v", body, got)
	}
}

func TestPlainFilesAreReadable(t *testing.T) {
	ctx := context.Background()
	s, root := newStore(t)
	if err := os.WriteFile(filepath.Join(root, "hard.json"), []byte(`{"m:a":4}`), 0o600); err != nil {
		t.Fatalf("seed: %v", err)
	}
	info, rc, err := s.Get(ctx, "./hard.json")
	if err != nil {
		t.Fatalf("get plain file: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != `{"m:a":4}` || info.Size != 9 || info.ContentType != "application/json" {
		t.Fatalf("unexpected plain blob %q %+v", body, info)
	}
	head, err := s.Head(ctx, "hard.json")
	if err != nil || head.Size != 9 {
		t.Fatalf("head plain file: %+v %v", head, err)
	}
}

func TestMissingKeys(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	if _, _, err := s.Get(ctx, "nope.json"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from get, got %v", err)
	}
	if _, err := s.Head(ctx, "nope.json"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from head, got %v", err)
	}
}

func TestSidecarKeysAreNotAddressable(t *testing.T) {
	ctx := context.Background()
	s, root := newStore(t)
	if _, err := s.Put(ctx, "dumps/a.json", bytes.NewReader([]byte("{}")), core.PutOptions{ContentType: "application/json"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "dumps", "a.json.meta")); err != nil {
		t.Fatalf("expected sidecar next to blob: %v", err)
	}
	if _, _, err := s.Get(ctx, "dumps/a.json.meta"); err == nil {
		t.Fatalf("expected sidecar key to be rejected")
	}
}

func TestKeyValidation(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	for _, key := range []string{"", "  ", "/etc/passwd", "../escape", "a/../../b", "x.json.meta"} {
		if _, err := s.Put(ctx, key, strings.NewReader("x"), core.PutOptions{}); err == nil {
			t.Fatalf("expected key %q to be rejected", key)
		}
	}
	if _, err := s.Head(ctx, "../x"); err == nil {
		t.Fatalf("expected head to validate the key")
	}
}

func TestCorruptSidecar(t *testing.T) {
	ctx := context.Background()
	s, root := newStore(t)
	_ = os.WriteFile(filepath.Join(root, "a.json"), []byte("{}"), 0o600)
	_ = os.WriteFile(filepath.Join(root, "a.json.meta"), []byte("{"), 0o600)
	if _, err := s.Head(ctx, "a.json"); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestNewDefaultsRoot(t *testing.T) {
	s, err := New("")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if s.Root() != "." {
		t.Fatalf("expected default root '.', got %s", s.Root())
	}
}

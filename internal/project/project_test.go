package project

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInitAndResolve(t *testing.T) {
	t.Setenv("HOOKLOOP_ROOT", "")
	root := t.TempDir()

	marker, err := Init(root)
	if err != nil {
		t.Fatalf("init error: %v", err)
	}
	if marker.ID == "" {
		t.Fatal("marker has no id")
	}

	nested := filepath.Join(root, "internal", "deep", "pkg")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	got, err := Resolve(nested)
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}
	if got != root {
		t.Errorf("resolve = %q, want %q", got, root)
	}
}

func TestInit_Twice(t *testing.T) {
	root := t.TempDir()
	if _, err := Init(root); err != nil {
		t.Fatal(err)
	}
	if _, err := Init(root); err == nil {
		t.Fatal("re-initializing an existing root must fail")
	}
}

func TestResolve_GitFallback(t *testing.T) {
	t.Setenv("HOOKLOOP_ROOT", "")
	repo := t.TempDir()
	if err := os.MkdirAll(filepath.Join(repo, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(repo, "cmd", "tool")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := Resolve(nested)
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}
	if got != repo {
		t.Errorf("resolve = %q, want git root %q", got, repo)
	}
}

func TestResolve_MarkerBeatsGit(t *testing.T) {
	t.Setenv("HOOKLOOP_ROOT", "")
	repo := t.TempDir()
	if err := os.MkdirAll(filepath.Join(repo, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(repo, "services", "api")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := Init(sub); err != nil {
		t.Fatal(err)
	}

	got, err := Resolve(filepath.Join(sub, "handlers"))
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}
	if got != sub {
		t.Errorf("resolve = %q, want nearest marker %q", got, sub)
	}
}

func TestResolve_StartDirFallback(t *testing.T) {
	t.Setenv("HOOKLOOP_ROOT", "")
	dir := t.TempDir()
	got, err := Resolve(dir)
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}
	if got != dir {
		t.Errorf("resolve = %q, want start dir %q", got, dir)
	}
}

func TestResolve_EnvOverride(t *testing.T) {
	override := t.TempDir()
	t.Setenv("HOOKLOOP_ROOT", override)
	got, err := Resolve("/somewhere/else")
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}
	if got != override {
		t.Errorf("resolve = %q, want override %q", got, override)
	}
}

func TestReadMarker(t *testing.T) {
	root := t.TempDir()
	created, err := Init(root)
	if err != nil {
		t.Fatal(err)
	}
	read, err := ReadMarker(root)
	if err != nil {
		t.Fatalf("read marker: %v", err)
	}
	if read == nil || read.ID != created.ID {
		t.Errorf("read marker = %+v, want id %s", read, created.ID)
	}

	missing, err := ReadMarker(t.TempDir())
	if err != nil {
		t.Fatalf("read missing marker: %v", err)
	}
	if missing != nil {
		t.Errorf("marker at fallback root must be nil, got %+v", missing)
	}
}

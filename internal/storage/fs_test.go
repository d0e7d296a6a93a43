package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func tempRoot(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir, nil)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

type testDoc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestWriteAndReadJSON(t *testing.T) {
	s := tempRoot(t)
	in := testDoc{Name: "alpha", Count: 3}
	if err := s.WriteJSON("doc.json", &in); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	out, err := ReadJSON[testDoc](s, "doc.json")
	if err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if out == nil {
		t.Fatal("expected document, got absent")
	}
	if *out != in {
		t.Errorf("round-trip mismatch: got %+v, want %+v", *out, in)
	}
}

func TestReadJSON_AbsentFile(t *testing.T) {
	s := tempRoot(t)
	out, err := ReadJSON[testDoc](s, "missing.json")
	if err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if out != nil {
		t.Errorf("expected absent, got %+v", *out)
	}
}

func TestReadJSON_CorruptFile(t *testing.T) {
	s := tempRoot(t)
	if err := s.Write("bad.json", []byte("{not json at all")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out, err := ReadJSON[testDoc](s, "bad.json")
	if err != nil {
		t.Fatalf("corruption must not surface as an error: %v", err)
	}
	if out != nil {
		t.Errorf("expected absent for corrupt document, got %+v", *out)
	}
}

func TestWriteJSON_Greppable(t *testing.T) {
	s := tempRoot(t)
	if err := s.WriteJSON("doc.json", testDoc{Name: "alpha"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	data, err := s.Read("doc.json")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := "{\n  \"name\": \"alpha\",\n  \"count\": 0\n}\n"
	if string(data) != want {
		t.Errorf("serialized form = %q, want %q", data, want)
	}
}

func TestEnsureDir_Idempotent(t *testing.T) {
	s := tempRoot(t)
	for _i := 0; _i < 2; _i++ {
		if err := s.EnsureDir("a/b/c"); err != nil {
			t.Fatalf("EnsureDir: %v", err)
		}
	}
	ok, err := s.DirExists("a/b/c")
	if err != nil || !ok {
		t.Fatalf("DirExists = %v, %v", ok, err)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempRoot(t)
	if err := s.Write("a/b/c.json", []byte("deep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("a/b/c.json")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestWriteExisting_RequiresParentDir(t *testing.T) {
	s := tempRoot(t)
	if err := s.WriteExisting("gone/doc.json", []byte("x")); err == nil {
		t.Error("expected error writing into missing directory")
	}
	if ok, _ := s.DirExists("gone"); ok {
		t.Error("write recreated the missing directory")
	}

	if err := s.EnsureDir("present"); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteExisting("present/doc.json", []byte("x")); err != nil {
		t.Errorf("WriteExisting into existing dir: %v", err)
	}
}

func TestWriteJSONExisting_RequiresParentDir(t *testing.T) {
	s := tempRoot(t)
	if err := s.WriteJSONExisting("gone/doc.json", testDoc{Name: "a"}); err == nil {
		t.Error("expected error writing into missing directory")
	}
	if ok, _ := s.DirExists("gone"); ok {
		t.Error("write recreated the missing directory")
	}
}

func TestRemoveAndRename(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("old.json", []byte("data"))
	if err := s.Rename("old.json", "sub/new.json"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	got, err := s.Read("sub/new.json")
	if err != nil {
		t.Fatalf("Read after rename: %v", err)
	}
	if string(got) != "data" {
		t.Errorf("content = %q", got)
	}
	if err := s.Remove("sub/new.json"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := s.Read("sub/new.json"); err == nil {
		t.Error("expected error reading removed file")
	}
}

func TestListDir(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("dir/b.json", []byte("b"))
	_ = s.Write("dir/a.json", []byte("a"))

	names, err := s.ListDir("dir")
	if err != nil {
		t.Fatalf("ListDir: %v", err)
	}
	if len(names) != 2 || names[0] != "a.json" || names[1] != "b.json" {
		t.Errorf("names = %v, want sorted [a.json b.json]", names)
	}

	names, err = s.ListDir("no-such-dir")
	if err != nil {
		t.Fatalf("ListDir missing: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("missing dir should list empty, got %v", names)
	}
}

func TestCopyDir(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("src/meta.json", []byte("m"))
	_ = s.Write("src/nested/strokes.json", []byte("[]"))

	if err := s.CopyDir("src", "dst"); err != nil {
		t.Fatalf("CopyDir: %v", err)
	}
	got, err := s.Read("dst/nested/strokes.json")
	if err != nil {
		t.Fatalf("Read copy: %v", err)
	}
	if string(got) != "[]" {
		t.Errorf("content = %q", got)
	}
	// Source untouched.
	if _, err := s.Read("src/meta.json"); err != nil {
		t.Errorf("source missing after copy: %v", err)
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempRoot(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.json",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteNoCorruption(t *testing.T) {
	// Overwrites go through tmp → fsync → rename, so a reader never sees a
	// partial document and no temp files are left behind.
	s := tempRoot(t)
	original := []byte("original content")
	_ = s.Write("atomic.json", original)

	updated := []byte("updated content")
	if err := s.Write("atomic.json", updated); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.json")
	if string(got) != string(updated) {
		t.Errorf("expected updated content, got %q", got)
	}

	matches, _ := filepath.Glob(filepath.Join(s.root, ".inkwell-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS("/tmp/inkwell-does-not-exist-"+t.Name(), nil)
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "inkwell-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name(), nil)
	if err == nil {
		t.Error("expected error when root is a file")
	}
}

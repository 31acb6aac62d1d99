package scaffold

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGenerate(t *testing.T) {
	base := t.TempDir()
	dir, err := Generate(base, "zlib", "https://github.com/madler/zlib.git")
	if err != nil {
		t.Fatalf("Unexpected error occured, err=%+v", err)
	}
	if dir != filepath.Join(base, "zlib") {
		t.Fatalf("Unexpected dir: got=%s", dir)
	}

	conf, err := os.ReadFile(filepath.Join(dir, "project.yaml"))
	if err != nil {
		t.Fatalf("Failed to read project.yaml: %+v", err)
	}
	if !strings.Contains(string(conf), "name: zlib") {
		t.Errorf("project.yaml missing name, got:\n%s", string(conf))
	}

	dockerfile, err := os.ReadFile(filepath.Join(dir, "Dockerfile"))
	if err != nil {
		t.Fatalf("Failed to read Dockerfile: %+v", err)
	}
	if !strings.Contains(string(dockerfile), "git clone https://github.com/madler/zlib.git") {
		t.Errorf("Dockerfile missing clone, got:\n%s", string(dockerfile))
	}

	info, err := os.Stat(filepath.Join(dir, "build.sh"))
	if err != nil {
		t.Fatalf("Failed to stat build.sh: %+v", err)
	}
	if info.Mode()&0111 == 0 {
		t.Error("build.sh is not executable")
	}

	// Second generate for the same project must fail.
	if _, err := Generate(base, "zlib", "https://github.com/madler/zlib.git"); err == nil {
		t.Fatal("Unexpected no error")
	}
}

func TestGenerateInvalidName(t *testing.T) {
	if _, err := Generate(t.TempDir(), "../evil", ""); err == nil {
		t.Fatal("Unexpected no error")
	}
}

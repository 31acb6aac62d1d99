package fuzz

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Auxiliary files the builders drop next to the fuzz target binaries.
var skipSuffixes = []string{
	".dict",
	".options",
	".zip",
	".txt",
	".json",
	".xml",
	".log",
}

var skipNames = map[string]bool{
	"llvm-symbolizer": true,
}

// ListTargets returns the fuzz target binary names in outDir: executable
// regular files, auxiliary files excluded. The result is sorted for a stable
// run order.
func ListTargets(outDir string) ([]string, error) {
	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read out directory: dir=%s, err=%w", outDir, err)
	}
	var targets []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if skipNames[name] || hasSkipSuffix(name) {
			continue
		}
		info, err := os.Stat(filepath.Join(outDir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", name, err)
		}
		if info.Mode()&0111 == 0 {
			continue
		}
		targets = append(targets, name)
	}
	sort.Strings(targets)
	return targets, nil
}

func hasSkipSuffix(name string) bool {
	for _, s := range skipSuffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}

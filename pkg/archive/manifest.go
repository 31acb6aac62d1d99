package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ManifestFileName is packaged into every archive so a build artifact can be
// traced back to the exact source state it was built from.
const ManifestFileName = "revisions.json"

// RevisionRecord maps a repository URL to the commit SHA resolved at checkout
// time.
type RevisionRecord map[string]string

func WriteManifest(dir string, rec RevisionRecord) (string, error) {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal revision manifest: %w", err)
	}
	p := filepath.Join(dir, ManifestFileName)
	if err := os.WriteFile(p, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write revision manifest: path=%s, err=%w", p, err)
	}
	return p, nil
}

func ReadManifest(path string) (RevisionRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read revision manifest: path=%s, err=%w", path, err)
	}
	var rec RevisionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal revision manifest: path=%s, err=%w", path, err)
	}
	return rec, nil
}

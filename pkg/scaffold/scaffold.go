package scaffold

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fuzzops/builder/pkg/common"
)

// Generate creates a starter layout for a new fuzzing project: a pipeline
// config, a Dockerfile and a build.sh the project image runs at build time.
func Generate(baseDir, projectName, gitURL string) (string, error) {
	if !common.ValidProjectName(projectName) {
		return "", fmt.Errorf("invalid project name: %s", projectName)
	}
	dir := filepath.Join(baseDir, projectName)
	if _, err := os.Stat(dir); err == nil {
		return "", fmt.Errorf("%s already exists", dir)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create project directory: dir=%s, err=%w", dir, err)
	}

	files := []struct {
		name    string
		content string
		mode    os.FileMode
	}{
		{"project.yaml", fmt.Sprintf(projectTemplate, projectName, gitURL), 0644},
		{"Dockerfile", fmt.Sprintf(dockerTemplate, gitURL), 0644},
		{"build.sh", fmt.Sprintf(buildTemplate, projectName), 0755},
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f.name), []byte(f.content), f.mode); err != nil {
			return "", fmt.Errorf("failed to write %s: %w", f.name, err)
		}
	}
	return dir, nil
}

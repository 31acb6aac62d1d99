package common

import (
	"errors"
	"fmt"
	"os"
	"regexp"
)

var projectNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]*$`)

func ValidProjectName(name string) bool {
	return projectNamePattern.MatchString(name)
}

func CutString(input string, cut int) string {
	if len(input) > cut {
		return input[:cut] + " ..." // cut long text
	}
	return input
}

func CreateWorkDir(projectName string) (string, error) {
	if projectName == "" {
		return "", errors.New("invalid value: projectName is not empty")
	}

	dir, err := os.MkdirTemp("", projectName)
	if err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	return dir, nil
}

package message

import (
	"encoding/json"
	"fmt"

	"github.com/fuzzops/builder/pkg/common"
	"github.com/fuzzops/builder/pkg/config"
)

// BuildQueueMessage is one build request consumed from the queue.
type BuildQueueMessage struct {
	ProjectName    string   `json:"project_name"`
	GitURL         string   `json:"git_url"`
	DefinitionsURL string   `json:"definitions_url,omitempty"`
	Sanitizers     []string `json:"sanitizers,omitempty"`
	Dockerfile     string   `json:"dockerfile,omitempty"`
	ContextDir     string   `json:"context_dir,omitempty"`
	RunnerImage    string   `json:"runner_image,omitempty"`
	Registry       string   `json:"registry,omitempty"`
	PushImage      bool     `json:"push_image,omitempty"`
}

func ParseMessage(msg string) (*BuildQueueMessage, error) {
	var m BuildQueueMessage
	if err := json.Unmarshal([]byte(msg), &m); err != nil {
		return nil, fmt.Errorf("failed to parse build queue message: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *BuildQueueMessage) Validate() error {
	if m.ProjectName == "" {
		return fmt.Errorf("invalid build queue message: project_name is required")
	}
	if !common.ValidProjectName(m.ProjectName) {
		return fmt.Errorf("invalid build queue message: invalid project_name, project_name=%s", m.ProjectName)
	}
	if m.GitURL == "" {
		return fmt.Errorf("invalid build queue message: git_url is required, project_name=%s", m.ProjectName)
	}
	return nil
}

// ProjectConfig converts the message into an immutable pipeline configuration
// with defaults applied.
func (m *BuildQueueMessage) ProjectConfig() *config.ProjectConfig {
	conf := &config.ProjectConfig{
		Name:           m.ProjectName,
		GitURL:         m.GitURL,
		DefinitionsURL: m.DefinitionsURL,
		Sanitizers:     m.Sanitizers,
		Dockerfile:     m.Dockerfile,
		ContextDir:     m.ContextDir,
		RunnerImage:    m.RunnerImage,
		Registry:       m.Registry,
		PushImage:      m.PushImage,
	}
	conf.SetDefault()
	return conf
}

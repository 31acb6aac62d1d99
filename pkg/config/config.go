package config

import (
	"fmt"
	"path"
	"strings"

	"github.com/fuzzops/builder/pkg/common"
	"github.com/spf13/viper"
)

const (
	DefaultSanitizer   = "address"
	DefaultRunnerImage = "fuzzops/libfuzzer-runner"
	DefaultRegistry    = "fuzzops"
)

// ProjectConfig describes one fuzzing project. The pipeline treats it as
// immutable once a run starts.
type ProjectConfig struct {
	Name           string   `mapstructure:"name"`
	GitURL         string   `mapstructure:"git_url"`
	DefinitionsURL string   `mapstructure:"definitions_url"`
	Sanitizers     []string `mapstructure:"sanitizers"`
	CheckoutDir    string   `mapstructure:"checkout_dir"`
	Dockerfile     string   `mapstructure:"dockerfile"`
	ContextDir     string   `mapstructure:"context_dir"`
	RunnerImage    string   `mapstructure:"runner_image"`
	Registry       string   `mapstructure:"registry"`
	PushImage      bool     `mapstructure:"push_image"`
}

func Load(configPath string) (*ProjectConfig, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read project config: path=%s, err=%w", configPath, err)
	}
	var conf ProjectConfig
	if err := v.Unmarshal(&conf); err != nil {
		return nil, fmt.Errorf("failed to unmarshal project config: path=%s, err=%w", configPath, err)
	}
	conf.SetDefault()
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

func (c *ProjectConfig) SetDefault() {
	if len(c.Sanitizers) == 0 {
		c.Sanitizers = []string{DefaultSanitizer}
	}
	if c.CheckoutDir == "" {
		c.CheckoutDir = repoBaseName(c.GitURL)
	}
	if c.ContextDir == "" {
		c.ContextDir = c.Name
	}
	if c.Dockerfile == "" {
		c.Dockerfile = path.Join(c.ContextDir, "Dockerfile")
	}
	if c.RunnerImage == "" {
		c.RunnerImage = DefaultRunnerImage
	}
	if c.Registry == "" {
		c.Registry = DefaultRegistry
	}
}

func (c *ProjectConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("invalid project config: name is required")
	}
	if !common.ValidProjectName(c.Name) {
		return fmt.Errorf("invalid project config: invalid name, name=%s", c.Name)
	}
	if c.GitURL == "" {
		return fmt.Errorf("invalid project config: git_url is required, project=%s", c.Name)
	}
	for _, s := range c.Sanitizers {
		if s == "" {
			return fmt.Errorf("invalid project config: empty sanitizer, project=%s", c.Name)
		}
	}
	return nil
}

// ImageRef returns the image reference for the project build image.
func (c *ProjectConfig) ImageRef() string {
	return fmt.Sprintf("%s/%s", c.Registry, c.Name)
}

func repoBaseName(gitURL string) string {
	base := path.Base(strings.TrimSuffix(gitURL, "/"))
	return strings.TrimSuffix(base, ".git")
}

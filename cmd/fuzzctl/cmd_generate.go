package main

import (
	"fmt"

	"github.com/fuzzops/builder/pkg/scaffold"
	"github.com/spf13/cobra"
)

var (
	generateGitURL string
	generateDir    string
)

var generateCmd = &cobra.Command{
	Use:   "generate PROJECT",
	Short: "Generate a starter layout for a new fuzzing project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := scaffold.Generate(generateDir, args[0], generateGitURL)
		if err != nil {
			return err
		}
		fmt.Printf("Generated project in %s, edit build.sh and the Dockerfile to build your fuzzers.\n", dir)
		return nil
	},
}

func init() {
	generateCmd.Flags().StringVar(&generateGitURL, "git-url", "", "git URL of the project source")
	generateCmd.Flags().StringVar(&generateDir, "dir", ".", "directory to generate the project under")
}

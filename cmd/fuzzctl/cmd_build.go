package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	buildSanitizer string
	buildSrcDir    string
	buildOutDir    string
)

var buildImageCmd = &cobra.Command{
	Use:   "build-image",
	Short: "Build the project container image",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadProjectConfig()
		if err != nil {
			return err
		}
		baseDir, err := configBaseDir()
		if err != nil {
			return err
		}
		dockerfile := resolveConfigPath(baseDir, conf.Dockerfile)
		contextDir := resolveConfigPath(baseDir, conf.ContextDir)
		return newDockerClient().BuildImage(cmd.Context(), conf.ImageRef(), dockerfile, contextDir)
	},
}

var buildFuzzersCmd = &cobra.Command{
	Use:   "build-fuzzers",
	Short: "Build the project fuzzers for one sanitizer",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadProjectConfig()
		if err != nil {
			return err
		}
		sanitizer := buildSanitizer
		if sanitizer == "" {
			sanitizer = conf.Sanitizers[0]
		}
		outDir := buildOutDir
		if outDir == "" {
			outDir = filepath.Join("out", sanitizer)
		}
		outDir, err = ensureOutDir(outDir)
		if err != nil {
			return err
		}
		srcDir := buildSrcDir
		if srcDir != "" {
			if srcDir, err = filepath.Abs(srcDir); err != nil {
				return err
			}
		}
		if err := newDockerClient().BuildFuzzers(cmd.Context(), conf.ImageRef(), srcDir, outDir, sanitizer); err != nil {
			return err
		}
		fmt.Printf("Fuzzers built in %s\n", outDir)
		return nil
	},
}

func init() {
	buildFuzzersCmd.Flags().StringVar(&buildSanitizer, "sanitizer", "", "sanitizer to build with (default: first sanitizer in the project config)")
	buildFuzzersCmd.Flags().StringVar(&buildSrcDir, "src", "", "local source checkout to mount at /src instead of the image copy")
	buildFuzzersCmd.Flags().StringVar(&buildOutDir, "out", "", "output directory for built fuzzers (default: out/<sanitizer>)")
}

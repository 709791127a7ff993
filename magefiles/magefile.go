//go:build mage

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main contains Mage build targets for paper-curator developer tooling.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"

	"github.com/pdiddy/paper-curator/internal/catalog"
	"github.com/pdiddy/paper-curator/pkg/types"
)

// projectDirs lists the working directories the CLI expects.
var projectDirs = []string{
	".secrets",
	"data",
	"digests",
}

// Init creates the project directory structure. .secrets is private to the
// current user.
func Init() error {
	for _, dir := range projectDirs {
		mode := os.FileMode(0o755)
		if dir == ".secrets" {
			mode = 0o700
		}
		if err := os.MkdirAll(dir, mode); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
		fmt.Println("  ", dir)
	}
	fmt.Println("Project directories initialized.")
	return nil
}

const (
	binDir  = "bin"
	binName = "paper-curator"
	cmdPkg  = "./cmd/paper-curator"
)

// Build compiles the CLI binary into bin/, stamping the git version.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	version, err := sh.Output("git", "describe", "--tags", "--always", "--dirty")
	if err != nil {
		version = "dev"
	}
	out := filepath.Join(binDir, binName)
	ldflags := "-X main.version=" + strings.TrimSpace(version)
	if err := sh.RunV("go", "build", "-ldflags", ldflags, "-o", out, cmdPkg); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	fmt.Printf("Built %s\n", out)
	return nil
}

// Test runs the unit tests.
func Test() error {
	return sh.RunV("go", "test", "./...")
}

// Curate builds the CLI and runs one curate pass with the local config.
func Curate() error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binDir, binName), "curate")
}

// Stats prints project metrics: Go production/test LOC and, when the
// default catalog exists, how many papers it holds.
func Stats() error {
	prodLines, err := countGoLines(".", false)
	if err != nil {
		return err
	}
	testLines, err := countGoLines(".", true)
	if err != nil {
		return err
	}
	fmt.Printf("Lines of code (Go, production): %d\n", prodLines)
	fmt.Printf("Lines of code (Go, tests):      %d\n", testLines)

	cfg := types.DefaultConfig().Catalog
	if _, err := os.Stat(cfg.DSN); errors.Is(err, os.ErrNotExist) {
		fmt.Println("Catalog: none (run the curate target first)")
		return nil
	}
	store, err := catalog.Open(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	st, err := store.Stats(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("Catalog papers:                 %d (%d relevant, %d unclassified, %d curated)\n",
		st.Total, st.Relevant, st.Unclassified, st.Curated)
	return nil
}

// countGoLines walks the directory tree and counts non-blank lines in Go
// files, skipping underscore directories as the go tool does. If testOnly
// is true, only _test.go files count; otherwise only non-test .go files.
func countGoLines(root string, testOnly bool) (int, error) {
	total := 0
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), "_") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" {
			return nil
		}
		if strings.HasSuffix(path, "_test.go") != testOnly {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		for line := range strings.SplitSeq(string(data), "\n") {
			if strings.TrimSpace(line) != "" {
				total++
			}
		}
		return nil
	})
	return total, err
}

//go:build mage

// Package main provides build targets for the switchpoint project using Mage.
//
// Usage:
//
//	mage build      Compile the switchpoint binary to bin/
//	mage test       Run all tests
//	mage race       Run all tests with the race detector
//	mage cover      Write coverage to bin/coverage.out and print the summary
//	mage lint       Run golangci-lint
//	mage clean      Remove build artifacts
//	mage install    Install switchpoint to GOPATH/bin
package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binaryName = "switchpoint"
	binaryDir  = "bin"
	cmdDir     = "./cmd/switchpoint"
	modulePath = "github.com/mesh-intelligence/switchpoint"
)

// Build compiles the switchpoint binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	return sh.RunV("go", "build", "-v", "-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// Test runs all tests.
func Test() error {
	return sh.RunV("go", "test", "./...")
}

// Race runs all tests with the race detector. Mode scopes, pool creation and
// cache invalidation are exercised from concurrent goroutines.
func Race() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Cover writes a coverage profile and prints the per-function summary.
func Cover() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	profile := filepath.Join(binaryDir, "coverage.out")
	if err := sh.RunV("go", "test", "-coverprofile", profile, "-coverpkg", modulePath+"/...", "./..."); err != nil {
		return err
	}
	return sh.RunV("go", "tool", "cover", "-func", profile)
}

// Lint runs golangci-lint.
func Lint() error {
	return sh.RunV("golangci-lint", "run", "./...")
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	return sh.RunV("go", "clean")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output("go", "env", "GOPATH")
	if err != nil {
		return err
	}
	src := filepath.Join(binaryDir, binaryName)
	dst := filepath.Join(gopath, "bin", binaryName)
	return sh.Copy(dst, src)
}

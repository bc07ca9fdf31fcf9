package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/compose-network/ocean-deployer/internal/logger"
)

// Repository is a git repository checked out at a single ref
type Repository struct {
	URL string
	Ref string // branch or tag
}

type (
	commandRunner func(ctx context.Context, args ...string) error

	// Cloner fetches the contracts checkout used by the compile command
	Cloner struct {
		run    commandRunner
		logger *slog.Logger
	}
)

// NewCloner creates a new git cloner
func NewCloner() *Cloner {
	return &Cloner{
		run:    runGit,
		logger: logger.Named("git_cloner"),
	}
}

// Clone makes a shallow clone of repo into destDir. An existing checkout is left untouched.
func (c *Cloner) Clone(ctx context.Context, destDir string, repo Repository) error {
	if repo.URL == "" {
		return errors.New("repository url is required")
	}

	log := c.logger.With("url", repo.URL).With("ref", repo.Ref).With("path", destDir)

	if _, err := os.Stat(filepath.Join(destDir, ".git")); err == nil {
		log.Info("repository already cloned, skipping")
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(destDir), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	log.Info("cloning repository")

	args := []string{"clone", "--depth", "1", "--recurse-submodules"}
	if repo.Ref != "" {
		args = append(args, "--branch", repo.Ref)
	}
	args = append(args, repo.URL, destDir)

	if err := c.run(ctx, args...); err != nil {
		return fmt.Errorf("git clone failed: %w", err)
	}

	log.Info("repository cloned successfully")
	return nil
}

func runGit(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

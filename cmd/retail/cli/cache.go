package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/odyssey-erp/odyssey-retail/internal/analytics"
)

// Bumper invalidates every cached analytics result.
type Bumper interface {
	Bump(ctx context.Context, reason string) (string, error)
}

// CacheCLI exposes the analytics cache version from the command line.
type CacheCLI struct {
	bumper   Bumper
	versions analytics.VersionSource
	out      io.Writer
}

// NewCacheCLI constructs the helper.
func NewCacheCLI(bumper Bumper, versions analytics.VersionSource, out io.Writer) *CacheCLI {
	return &CacheCLI{bumper: bumper, versions: versions, out: out}
}

// Run executes `cache bump [reason...]` or `cache version`.
func (c *CacheCLI) Run(ctx context.Context, args []string) error {
	if c == nil || c.bumper == nil || c.versions == nil {
		return errors.New("cache cli: not configured")
	}
	if len(args) == 0 {
		return fmt.Errorf("cache cli: expected bump or version")
	}
	switch args[0] {
	case "bump":
		reason := strings.Join(args[1:], " ")
		if reason == "" {
			reason = "manual"
		}
		version, err := c.bumper.Bump(ctx, reason)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "analytics cache version bumped to %s\n", version)
		return nil
	case "version":
		version, err := c.versions.Version(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out, version)
		return nil
	}
	return fmt.Errorf("cache cli: unknown command %q", args[0])
}

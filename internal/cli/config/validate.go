package config

import (
	"fmt"
	"strings"

	intconfig "github.com/leapstack-labs/ctesplit/internal/config"
)

var outputFormats = []string{"auto", "text", "markdown", "json"}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Workspace) == "" {
		return fmt.Errorf("workspace is required")
	}
	if c.StatePath == "" {
		return fmt.Errorf("state_path is required")
	}
	if err := intconfig.ValidateDialect(c.Dialect); err != nil {
		return err
	}
	if err := intconfig.ValidateMaxDepth(c.MaxDepth); err != nil {
		return err
	}
	for _, f := range outputFormats {
		if c.OutputFormat == f {
			return nil
		}
	}
	return fmt.Errorf("unknown output format %q (expected one of: %s)", c.OutputFormat, strings.Join(outputFormats, ", "))
}

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/linkwatcher/internal/config"
)

func configInitCommand(c *cli.Context) error {
	format := c.String("format")
	output := c.String("output")

	switch format {
	case "kdl", "toml", "yaml", "json":
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}

	if output == "" {
		root := c.String("project-root")
		if root == "" {
			root = "."
		}
		output = filepath.Join(root, ".linkwatcher."+format)
	}

	// Check if file exists
	if !c.Bool("force") {
		if _, err := os.Stat(output); err == nil {
			return fmt.Errorf("configuration file %s already exists (use --force to overwrite)", output)
		}
	}

	cfg := config.Default()
	cfg.ProjectRoot = "."
	content, err := config.Marshal(cfg, format)
	if err != nil {
		return fmt.Errorf("failed to generate config: %w", err)
	}
	if err := os.WriteFile(output, content, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(c.App.Writer, "Configuration file created: %s\n", output)
	fmt.Fprintf(c.App.Writer, "Edit the file to customize settings for your project.\n")
	return nil
}

func configShowCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	content, err := config.Marshal(cfg, c.String("format"))
	if err != nil {
		return err
	}
	_, err = c.App.Writer.Write(content)
	return err
}

func configValidateCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	v := config.NewValidator()
	if err := v.ValidateAndSetDefaults(cfg); err != nil {
		return cli.Exit(fmt.Sprintf("configuration error: %v", err), 1)
	}
	if _, err := v.ValidateRoot(cfg.ProjectRoot); err != nil {
		return cli.Exit(fmt.Sprintf("invalid project root: %v", err), 1)
	}
	fmt.Fprintln(c.App.Writer, "Configuration is valid")
	return nil
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/relicta-tech/shipgate/internal/config"
	sgerrors "github.com/relicta-tech/shipgate/internal/errors"
)

var initOpts InitOptions

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a shipgate configuration with defaults",
	Long: `Initialize a shipgate configuration in the current directory.

This command writes .shipgate.yaml (or .json / .toml with --format) with
the default branch names, clusters, versioning rules and scanners.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initOpts.Force, "force", "f", false, "overwrite existing config file")
	initCmd.Flags().StringVar(&initOpts.Format, "format", "yaml", "config file format (yaml, json, toml)")
}

// runInit implements the init command.
func runInit(cmd *cobra.Command, args []string) error {
	const op = "cli.init"
	p := newPrinter(cmd.OutOrStdout())

	existing, _ := config.FindConfigFile(".")
	if existing != "" && !initOpts.Force {
		p.Warning(fmt.Sprintf("Config file already exists: %s", existing))
		p.Info("Use --force to overwrite")
		return nil
	}

	var path string
	switch initOpts.Format {
	case "yaml", "yml":
		path = ".shipgate.yaml"
	case "json":
		path = ".shipgate.json"
	case "toml":
		path = ".shipgate.toml"
	default:
		return sgerrors.Validation(op, fmt.Sprintf("unsupported config format %q", initOpts.Format))
	}

	if err := config.WriteDefaultConfig(path); err != nil {
		return err
	}

	p.Success(fmt.Sprintf("Created %s", path))
	p.Subtle("Edit refs, environments and scanners to match your pipeline.")
	return nil
}

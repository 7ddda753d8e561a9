// Package cli provides the command-line interface for shipgate.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/relicta-tech/shipgate/internal/config"
	sgerrors "github.com/relicta-tech/shipgate/internal/errors"
	"github.com/relicta-tech/shipgate/internal/infrastructure/ci"
	"github.com/relicta-tech/shipgate/internal/version"
)

// ErrGateBlocked is returned when the scan gate stops the run. It matches any
// policy error with errors.Is.
var ErrGateBlocked = &sgerrors.Error{Kind: sgerrors.KindPolicy}

var (
	// Version information set by main.
	versionInfo struct {
		Version string
		Commit  string
		Date    string
	}

	// Global flags
	cfgFile      string
	verbose      bool
	outputJSON   bool
	noColor      bool
	logLevel     string
	ciMode       bool // --ci flag for pipeline runs (JSON output, no color)
	outputFormat string
	logFilePath  string

	// Global config
	cfg *config.Config

	// CI environment of the current process
	ciEnv = ci.FromOS()

	// Logger
	logger *log.Logger

	// logFile holds the log file handle for cleanup
	logFile *os.File

	styles = DefaultStyles()
)

// SetVersionInfo sets the version information from main.
func SetVersionInfo(version, commit, date string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.Date = date
}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "shipgate",
	Short: "Deployment decisions and release gating for CI pipelines",
	Long: `shipgate decides where a pipeline run deploys and whether it may.

It turns the triggering ref and event into a target environment, enforces
the branch-to-environment policy, computes the version, image tag and chart
version of the artifact, and folds security scan results into one go/no-go
gate for image build, deploy and release creation.

Inputs come from flags, the GitHub Actions environment and the git
repository, in that order. Run 'shipgate init' to write a config file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with a context for graceful shutdown.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Assigned here rather than in the literal to avoid an initialization
	// cycle (rootCmd -> initConfig -> bindFlags -> rootCmd).
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Skip config loading for init and version commands
		if cmd.Name() == "init" || cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}
		return initConfig()
	}

	// JSON format and log level are configured in initConfig based on flags
	logger = newLogger()

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: .shipgate.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output results as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&ciMode, "ci", false, "CI mode: JSON output and logs, no color")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "output format (text, json, yaml, toml, github)")
	rootCmd.PersistentFlags().StringVar(&logFilePath, "log-file", "", "write logs to this file instead of stderr")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(nextVersionCmd)
	rootCmd.AddCommand(gateCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(graphCmd)
}

func newLogger() *log.Logger {
	return log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		ReportCaller:    false,
	})
}

// flagBindings maps config keys to the global flags that override them.
var flagBindings = map[string]string{
	"output.verbose":   "verbose",
	"output.log_level": "log-level",
	"output.format":    "output",
}

// bindFlags binds global flags to the loader so they take precedence over
// the config file and SHIPGATE_* variables.
func bindFlags(v *viper.Viper) {
	flags := rootCmd.PersistentFlags()
	for key, name := range flagBindings {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			logger.Debug("failed to bind flag", "flag", name, "key", key, "error", err)
		}
	}
}

// loadAndValidateConfig loads and validates the configuration.
func loadAndValidateConfig() ([]string, error) {
	loader := config.NewLoader()
	bindFlags(loader.Viper())

	if cfgFile != "" {
		loader.WithConfigPath(cfgFile)
	}

	var err error
	cfg, err = loader.Load()
	if err != nil {
		return nil, err
	}

	validator := config.NewValidator()
	if err := validator.Validate(cfg); err != nil {
		return nil, err
	}

	return validator.Warnings(), nil
}

// applyGlobalFlags applies global CLI flags to the configuration.
func applyGlobalFlags() {
	if verbose {
		cfg.Output.Verbose = true
	}

	if outputJSON && outputFormat == "" {
		cfg.Output.Format = config.FormatJSON
	}

	if noColor {
		cfg.Output.Color = false
	}
	if !cfg.Output.Color {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// applyCIModeFlag applies the --ci flag settings. A detected CI runner
// without --ci only loses color.
func applyCIModeFlag() {
	if !ciMode {
		if ciEnv.IsCI() {
			cfg.Output.Color = false
			lipgloss.SetColorProfile(termenv.Ascii)
		}
		return
	}

	outputJSON = true // Force JSON logs for machine parsing
	if outputFormat == "" {
		cfg.Output.Format = config.FormatJSON
	}
	noColor = true
	cfg.Output.Color = false
	lipgloss.SetColorProfile(termenv.Ascii)
}

// configureLoggerFormat configures the logger format based on settings.
func configureLoggerFormat() {
	if outputJSON || cfg.Output.Format == config.FormatJSON {
		logger.SetFormatter(log.JSONFormatter)
		logger.SetReportTimestamp(true)
	} else if !cfg.Output.Color {
		logger.SetFormatter(log.TextFormatter)
	}
}

// configureLogLevel sets the logger level based on configuration.
func configureLogLevel() {
	switch cfg.Output.LogLevel {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "warn":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}

	if cfg.Output.Verbose {
		logger.SetLevel(log.DebugLevel)
	}
}

// configureLogFile sets up log file output if specified.
func configureLogFile() error {
	const op = "cli.configureLogFile"

	if logFilePath == "" {
		return nil
	}

	var err error
	logFile, err = os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return sgerrors.IOWrap(err, op, "failed to open log file")
	}
	logger.SetOutput(logFile)
	return nil
}

// initConfig reads in config file and ENV variables if set.
func initConfig() error {
	warnings, err := loadAndValidateConfig()
	if err != nil {
		return err
	}

	applyGlobalFlags()
	applyCIModeFlag()

	configureLoggerFormat()
	configureLogLevel()
	if err := configureLogFile(); err != nil {
		return err
	}

	// Use cases log through slog; route them to the same logger.
	slog.SetDefault(slog.New(logger))

	for _, w := range warnings {
		logger.Warn("configuration", "warning", w)
	}
	return nil
}

// Cleanup closes any open resources. Should be called before program exit.
func Cleanup() {
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

// buildVersion returns the version set by main, falling back to the
// embedded release for builds without ldflags.
func buildVersion() string {
	return version.Resolve(versionInfo.Version)
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "shipgate %s\n", buildVersion())
		if verbose {
			fmt.Fprintf(out, "  commit: %s\n", versionInfo.Commit)
			fmt.Fprintf(out, "  built:  %s\n", versionInfo.Date)
		}
	},
}

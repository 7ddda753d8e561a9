package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/relicta-tech/shipgate/internal/infrastructure/ci"
)

// resetCLIState restores the package globals that flag parsing mutates, so
// every command execution starts from defaults.
func resetCLIState(t *testing.T) {
	t.Helper()

	cfgFile, verbose, outputJSON, noColor, ciMode = "", false, false, false, false
	logLevel, outputFormat, logFilePath = "info", "", ""
	cfg = nil

	classifyOpts = EventOptions{Repo: "."}
	resolveOpts = EventOptions{Repo: "."}
	nextVersionOpts = VersionOptions{EventOptions: EventOptions{Repo: "."}}
	planOpts = PlanOptions{VersionOptions: VersionOptions{EventOptions: EventOptions{Repo: "."}}}
	gateOpts = GateOptions{}
	graphOpts = GraphOptions{}
	initOpts = InitOptions{Format: "yaml"}

	for _, name := range []string{"config", "verbose", "json", "no-color", "log-level", "ci", "output", "log-file"} {
		rootCmd.PersistentFlags().Lookup(name).Changed = false
	}
	for _, cmd := range rootCmd.Commands() {
		if f := cmd.Flags().Lookup("report"); f != nil {
			f.Value.(interface{ Replace([]string) error }).Replace(nil)
			f.Changed = false
		}
	}

	prevEnv := ciEnv
	ciEnv = ci.NewEnv(nil)
	t.Cleanup(func() {
		ciEnv = prevEnv
		Cleanup()
	})
}

// executeCommand runs the root command with args and returns its stdout.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	logger.SetOutput(io.Discard)
	defer logger.SetOutput(os.Stderr)

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// noRepo returns a directory that is not inside a git repository.
func noRepo(t *testing.T) string {
	t.Helper()
	return t.TempDir()
}

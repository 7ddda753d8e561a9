// Package main is the entry point for the shipgate CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/relicta-tech/shipgate/internal/cli"
)

// Version information set by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Exit codes.
const (
	exitOK          = 0
	exitError       = 1
	exitGateBlocked = 2
	exitInterrupted = 130 // Standard exit code for SIGINT
)

// shutdownTimeout is the maximum time to wait for graceful shutdown.
const shutdownTimeout = 30 * time.Second

func main() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	cli.SetVersionInfo(version, commit, date)

	os.Exit(run(context.Background(), sigChan, cli.ExecuteContext, cli.Cleanup, os.Stderr, os.Exit))
}

// run executes the CLI and returns the process exit code. The first signal
// cancels the context; a second one, or the shutdown timeout, forces exit.
func run(
	parent context.Context,
	sigChan <-chan os.Signal,
	execute func(context.Context) error,
	cleanup func(),
	stderr io.Writer,
	exit func(int),
) int {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		watchSignals(sigChan, done, cancel, stderr, exit)
	}()

	code := exitCode(ctx, execute(ctx), stderr)

	close(done)
	wg.Wait()

	// Cleanup CLI resources (e.g., log file handles)
	cleanup()

	return code
}

func watchSignals(sigChan <-chan os.Signal, done <-chan struct{}, cancel context.CancelFunc, stderr io.Writer, exit func(int)) {
	var sig os.Signal
	select {
	case sig = <-sigChan:
	case <-done:
		return
	}

	fmt.Fprintf(stderr, "\nReceived signal %v, initiating graceful shutdown...\n", sig)
	cancel()

	shutdownTimer := time.NewTimer(shutdownTimeout)
	defer shutdownTimer.Stop()

	select {
	case sig = <-sigChan:
	case <-shutdownTimer.C:
		fmt.Fprintf(stderr, "\nShutdown timeout (%v) exceeded, forcing exit\n", shutdownTimeout)
		exit(exitError)
		return
	case <-done:
		// A second signal may race with completion.
		select {
		case sig = <-sigChan:
		default:
			return
		}
	}

	fmt.Fprintf(stderr, "\nReceived second signal %v, forcing exit\n", sig)
	exit(exitError)
}

func exitCode(ctx context.Context, err error, stderr io.Writer) int {
	switch {
	case err == nil:
		return exitOK
	case ctx.Err() != nil:
		fmt.Fprintln(stderr, "Operation canceled")
		return exitInterrupted
	case errors.Is(err, cli.ErrGateBlocked):
		fmt.Fprintf(stderr, "Blocked: %v\n", err)
		return exitGateBlocked
	default:
		// Print the error since SilenceErrors is enabled in cobra
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
}

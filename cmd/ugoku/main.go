// ugoku replays a photography session: a CSV task list of camera and
// turntable commands, executed strictly in order against the devices in a
// device list.
//
// Usage:
//
//	ugoku [run]      [-config path] [-tasks file] [-devices file] [-dry-run]
//	ugoku validate   [-config path] [-tasks file] [-devices file]
//	ugoku history    [-config path] [-limit n] [-run id]
//	ugoku token      [-config path] [-subject name] [-role viewer|operator] [-ttl minutes]
//
// Exit status is 0 when the run completed, 2 when it halted, and 1 when
// the inputs were rejected before anything executed.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// Version information, set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

// Exit codes.
const (
	exitOK       = 0
	exitRejected = 1
	exitHalted   = 2
)

// errHalted marks a run that started and stopped at a failing task.
var errHalted = errors.New("run halted")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// execute runs one subcommand and maps its error to an exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := "run"
	if len(args) > 0 && len(args[0]) > 0 && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "run":
		err = runCmd(ctx, args, stdout, false)
	case "validate":
		err = runCmd(ctx, args, stdout, true)
	case "history":
		err = historyCmd(ctx, args, stdout)
	case "token":
		err = tokenCmd(args, stdout)
	case "version":
		fmt.Fprintf(stdout, "ugoku %s (commit %s, built %s)\n", version, commit, date)
		return exitOK
	case "help", "-h", "--help":
		printUsage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", cmd)
		printUsage(stderr)
		return exitRejected
	}

	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errHalted):
		fmt.Fprintf(stderr, "Halted: %v\n", err)
		return exitHalted
	case errors.Is(err, flag.ErrHelp):
		return exitOK
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitRejected
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage:
  ugoku [run]    [-config path] [-tasks file] [-devices file] [-dry-run]
  ugoku validate [-config path] [-tasks file] [-devices file]
  ugoku history  [-config path] [-limit n] [-run id]
  ugoku token    [-config path] [-subject name] [-role viewer|operator] [-ttl minutes]
  ugoku version
`)
}

// configPath resolves -config, then UGOKU_CONFIG, then the default path.
// A missing default file is not an error; defaults and environment apply.
func configPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if path := os.Getenv("UGOKU_CONFIG"); path != "" {
		return path
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return defaultConfigPath
	}
	return ""
}

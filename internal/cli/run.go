package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"rdcp/internal/config"
	"rdcp/internal/global"
	"rdcp/internal/logctx"
)

// Exit codes for the process
const (
	ExitOK       int = 0
	ExitArgError int = 1
	ExitRuntime  int = 2
)

// Runs the program in the mode the options describe and returns the
// process exit code. Blocks until a signal or until the work finishes.
func Run(ctx context.Context, opts Options) (exitCode int) {
	ctx = logctx.AppendCtxTag(ctx, global.NSCLI)

	cfg, err := config.Load(ctx, opts.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exitCode = ExitRuntime
		return
	}

	if opts.SetPassword {
		err = SetupMode(cfg, opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitRuntime
		}
		return
	}

	if opts.ClientOnly && opts.Connect == "" {
		fmt.Fprintln(os.Stderr, "Error: --client without --connect leaves nothing to do")
		exitCode = ExitArgError
		return
	}

	runServer := !opts.ClientOnly
	runClient := opts.Connect != ""

	var stopServer func()
	if runServer {
		srv, startErr := StartServer(ctx, cfg, opts)
		if startErr != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", startErr)
			exitCode = ExitRuntime
			return
		}
		stopServer = func() { srv.Stop() }
	}

	var stopClient func()
	if runClient {
		reg, id, startErr := StartClient(ctx, cfg, opts)
		if startErr != nil {
			if stopServer != nil {
				stopServer()
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", startErr)
			exitCode = ExitRuntime
			return
		}
		logctx.LogEvent(ctx, global.VerbosityProgress, global.InfoLog, "outbound connection %s established", id)
		stopClient = func() { reg.DisconnectAll() }
	}

	// Run until interrupted
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	received := <-signals
	logctx.LogEvent(ctx, global.VerbosityStandard, global.InfoLog, "received %s, shutting down", received)

	if stopClient != nil {
		stopClient()
	}
	if stopServer != nil {
		stopServer()
	}
	return
}
